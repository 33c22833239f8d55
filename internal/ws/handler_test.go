package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/hoverwars-server/internal/arena"
	"github.com/DoyleJ11/hoverwars-server/internal/hub"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newServer(t *testing.T) string {
	t.Helper()
	h := hub.NewHub(context.Background(), hub.Options{
		Rules:  arena.DefaultRules(),
		Clock:  clockwork.NewFakeClock(),
		Logger: zaptest.NewLogger(t),
	})
	// Handler goroutines can outlive the test, so they get a no-op logger.
	srv := httptest.NewServer(Handler(h, zap.NewNop(), nil))
	t.Cleanup(func() {
		srv.Close()
		h.Shutdown()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func send(t *testing.T, c *websocket.Conn, raw string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(raw)))
}

func read(t *testing.T, c *websocket.Conn) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func readUntil(t *testing.T, c *websocket.Conn, want arena.EventType) frame {
	t.Helper()
	for {
		if f := read(t, c); f.Type == string(want) {
			return f
		}
	}
}

func TestHandler_TwoPlayersPlay(t *testing.T) {
	url := newServer(t)
	blue := dial(t, url)
	red := dial(t, url)

	send(t, blue, `{"type":"joinGame","data":{"hostChainId":"host-a","name":"Ace"}}`)
	initBlue := read(t, blue)
	require.Equal(t, string(arena.EvtInitGame), initBlue.Type)

	var initMsg arena.InitGame
	require.NoError(t, json.Unmarshal(initBlue.Data, &initMsg))
	assert.Equal(t, "Ace", initMsg.MyPlayer.Name)
	assert.Equal(t, arena.TeamBlue, initMsg.MyPlayer.Team)

	send(t, red, `{"type":"joinGame","data":{"hostChainId":"host-a"}}`)
	assert.Equal(t, string(arena.EvtInitGame), read(t, red).Type)
	assert.Equal(t, string(arena.EvtPlayerJoined), read(t, blue).Type)
	assert.Equal(t, string(arena.EvtGameStart), read(t, blue).Type)
	assert.Equal(t, string(arena.EvtGameStart), read(t, red).Type)

	// Garbage is dropped without closing the socket.
	send(t, blue, `not json`)
	send(t, blue, `{"type":"teleport"}`)

	send(t, blue, `{"type":"playerMove","data":{"position":{"x":1,"y":0.5,"z":2},"rotation":0.25}}`)
	moved := readUntil(t, red, arena.EvtPlayerMoved)
	var pm arena.PlayerMoved
	require.NoError(t, json.Unmarshal(moved.Data, &pm))
	assert.Equal(t, arena.Vec3{X: 1, Y: 0.5, Z: 2}, pm.Position)
	assert.Equal(t, 0.25, pm.Rotation)

	send(t, blue, `{"type":"playerShoot"}`)
	assert.Equal(t, string(arena.EvtEnemyShoot), readUntil(t, red, arena.EvtEnemyShoot).Type)

	require.NoError(t, blue.Close(websocket.StatusNormalClosure, ""))
	left := readUntil(t, red, arena.EvtPlayerDisconnected)
	var leftID string
	require.NoError(t, json.Unmarshal(left.Data, &leftID))
	assert.Equal(t, pm.ID, leftID)
	readUntil(t, red, arena.EvtGameReset)
}

func TestHandler_CommandsBeforeJoinIgnored(t *testing.T) {
	url := newServer(t)
	c := dial(t, url)

	send(t, c, `{"type":"playerShoot"}`)
	send(t, c, `{"type":"oilPickedUp"}`)
	send(t, c, `{"type":"joinGame","data":{"hostChainId":"host-b"}}`)

	assert.Equal(t, string(arena.EvtInitGame), read(t, c).Type, "first frame is the join reply")
}

func TestOriginPatterns(t *testing.T) {
	got := OriginPatterns([]string{"http://localhost:3000", "https://hoverwars.xyz", "*.example.com"})
	assert.Equal(t, []string{"localhost:3000", "hoverwars.xyz", "*.example.com"}, got)
}
