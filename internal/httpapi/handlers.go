package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/hoverwars-server/internal/arena"
	"github.com/DoyleJ11/hoverwars-server/internal/hub"
)

const queryTimeout = 2 * time.Second

type ClientConfig struct {
	LedgerURL   string `json:"ledgerUrl"`
	LedgerAppID string `json:"ledgerAppId"`
}

type RoomDetail struct {
	arena.Summary
	Roster map[string]arena.Player `json:"roster"`
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Config hands clients the ledger endpoint. The server never talks to it.
func Config(cc ClientConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cc)
	}
}

func ListRooms(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
		defer cancel()

		rooms, err := h.Rooms(ctx)
		if err != nil {
			log.Warn("list rooms failed", zap.Error(err))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}

		out := make([]arena.Summary, 0, len(rooms))
		for _, rm := range rooms {
			v, err := rm.State(ctx)
			if err != nil {
				continue // closed while we were asking
			}
			out = append(out, v.Summary)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].HostID < out[j].HostID })
		writeJSON(w, http.StatusOK, out)
	}
}

func GetRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
		defer cancel()

		hostID := chi.URLParam(r, "hostID")
		rm, err := h.Room(ctx, hostID)
		if err != nil {
			log.Warn("get room failed", zap.String("room", hostID), zap.Error(err))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		v, err := rm.State(ctx)
		if err != nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, RoomDetail{Summary: v.Summary, Roster: v.Players})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
