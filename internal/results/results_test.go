package results

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/hoverwars-server/internal/arena"
)

type fakeConn struct {
	subject string
	data    []byte
	err     error
	drained bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return f.err
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func finishedState() *arena.State {
	s := arena.NewState("host-X", arena.DefaultRules())
	s.Players["c2"] = &arena.Player{ID: "c2", Name: "bob", Team: arena.TeamRed, Deaths: 2}
	s.Players["c1"] = &arena.Player{ID: "c1", Name: "alice", Team: arena.TeamBlue, Kills: 2, Goals: 3}
	s.Match.BlueScore = 3
	s.Match.RedScore = 1
	s.GameState = arena.GameOver
	return s
}

func TestFromState(t *testing.T) {
	ended := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	res := FromState(finishedState(), arena.FinishScore, ended)

	assert.Equal(t, "host-X", res.HostID)
	assert.Equal(t, arena.TeamBlue, res.Winner)
	assert.Equal(t, arena.FinishScore, res.Reason)
	assert.Equal(t, ended, res.EndedAt)
	require.Len(t, res.Players, 2)
	assert.Equal(t, "c1", res.Players[0].ID, "players are ordered by id")
	assert.Equal(t, 3, res.Players[0].Goals)
}

func TestFromState_Draw(t *testing.T) {
	s := finishedState()
	s.Match.RedScore = 3
	res := FromState(s, arena.FinishClock, time.Now())
	assert.Empty(t, res.Winner)
}

func TestNATSPublisher_Publish(t *testing.T) {
	conn := &fakeConn{}
	p := newNATSPublisher(conn, Subject, zaptest.NewLogger(t))

	res := FromState(finishedState(), arena.FinishClock, time.Now())
	require.NoError(t, p.Publish(res))
	assert.Equal(t, "arena.match.completed", conn.subject)

	var got MatchResult
	require.NoError(t, json.Unmarshal(conn.data, &got))
	assert.Equal(t, res.HostID, got.HostID)
	assert.Equal(t, res.Players, got.Players)

	require.NoError(t, p.Close())
	assert.True(t, conn.drained)
}

func TestNATSPublisher_PublishError(t *testing.T) {
	boom := errors.New("connection closed")
	p := newNATSPublisher(&fakeConn{err: boom}, Subject, zaptest.NewLogger(t))
	err := p.Publish(MatchResult{HostID: "X"})
	assert.ErrorIs(t, err, boom)
}
