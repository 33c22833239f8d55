package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/hoverwars-server/internal/arena"
	"github.com/DoyleJ11/hoverwars-server/internal/hub"
)

func newRouter(t *testing.T) (http.Handler, *hub.Hub) {
	t.Helper()
	h := hub.NewHub(context.Background(), hub.Options{
		Rules:  arena.DefaultRules(),
		Clock:  clockwork.NewFakeClock(),
		Logger: zaptest.NewLogger(t),
	})
	t.Cleanup(h.Shutdown)
	return SetupRoutes(Deps{
		Hub:            h,
		Logger:         zaptest.NewLogger(t),
		AllowedOrigins: []string{"https://hoverwars.xyz"},
		Client:         ClientConfig{LedgerURL: "https://faucet.test", LedgerAppID: "app-1"},
	}), h
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	router, _ := newRouter(t)
	assert.Equal(t, http.StatusOK, get(t, router, "/healthz").Code)
}

func TestConfig(t *testing.T) {
	router, _ := newRouter(t)
	rec := get(t, router, "/config")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ledgerUrl":"https://faucet.test","ledgerAppId":"app-1"}`, rec.Body.String())
}

func TestRooms(t *testing.T) {
	router, h := newRouter(t)

	rec := get(t, router, "/rooms")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := h.Join(ctx, "c1", arena.Join{HostID: "bbb", Name: "Ace"}, make(chan []byte, 8))
	require.NoError(t, err)
	_, err = h.Join(ctx, "c2", arena.Join{HostID: "aaa"}, make(chan []byte, 8))
	require.NoError(t, err)

	rec = get(t, router, "/rooms")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []arena.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "aaa", list[0].HostID)
	assert.Equal(t, "bbb", list[1].HostID)
	assert.Equal(t, 1, list[1].Players)

	rec = get(t, router, "/rooms/bbb")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail RoomDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, arena.GameWaiting, detail.GameState)
	require.Contains(t, detail.Roster, "c1")
	assert.Equal(t, "Ace", detail.Roster["c1"].Name)

	assert.Equal(t, http.StatusNotFound, get(t, router, "/rooms/nope").Code)
}

func TestCORS(t *testing.T) {
	router, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://hoverwars.xyz")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "https://hoverwars.xyz", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
