package ws

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/hoverwars-server/internal/arena"
	"github.com/DoyleJ11/hoverwars-server/internal/hub"
	"github.com/DoyleJ11/hoverwars-server/internal/types"
)

const (
	outboxSize   = 64
	writeTimeout = 3 * time.Second
	readLimit    = 64 << 10
)

// Handler upgrades the request and pumps frames between the socket and the
// player's room. origins are full origins such as "https://hoverwars.xyz".
func Handler(h *hub.Hub, log *zap.Logger, origins []string) http.HandlerFunc {
	patterns := OriginPatterns(origins)

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: patterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(readLimit)

		connID := uuid.NewString()
		clog := log.With(zap.String("conn", connID))
		clog.Info("client connected", zap.String("remote", r.RemoteAddr))

		// The room closes out once it has taken ownership of it.
		out := make(chan []byte, outboxSize)
		defer h.Disconnect(connID)

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case payload, ok := <-out:
					if !ok {
						// Room is gone; unblock the reader.
						conn.Close(websocket.StatusGoingAway, "room closed")
						return
					}
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					err := conn.Write(ctx, websocket.MessageText, payload)
					cancel()
					if err != nil {
						clog.Debug("write failed", zap.Error(err))
						return
					}
				}
			}
		}()

		// Reader loop
		joined := false
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					clog.Info("client disconnected")
				default:
					clog.Info("client dropped", zap.Error(err))
				}
				return
			}

			cmd, err := types.Decode(data)
			if err != nil {
				clog.Warn("dropping invalid message", zap.Error(err))
				continue
			}

			if join, ok := cmd.(arena.Join); ok {
				if joined {
					clog.Warn("dropping join", zap.Error(arena.ErrAlreadyJoined))
					continue
				}
				if _, err := h.Join(r.Context(), connID, join, out); err != nil {
					if errors.Is(err, hub.ErrClosed) {
						return
					}
					clog.Warn("join failed", zap.Error(err))
					continue
				}
				joined = true
				continue
			}

			if !joined {
				clog.Debug("dropping command before join")
				continue
			}
			if err := h.Dispatch(connID, cmd); err != nil {
				return
			}
		}
	}
}

// OriginPatterns turns configured origins into the host patterns
// websocket.AcceptOptions matches against.
func OriginPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			out = append(out, o)
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
