// Package results announces finished matches to downstream consumers.
package results

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/DoyleJ11/hoverwars-server/internal/arena"
)

const Subject = "arena.match.completed"

type PlayerLine struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Team   arena.Team `json:"team"`
	Kills  int        `json:"kills"`
	Deaths int        `json:"deaths"`
	Goals  int        `json:"goals"`
}

type MatchResult struct {
	HostID    string             `json:"hostId"`
	BlueScore int                `json:"blueScore"`
	RedScore  int                `json:"redScore"`
	Winner    arena.Team         `json:"winner,omitempty"` // empty on a draw
	Reason    arena.FinishReason `json:"reason"`
	Players   []PlayerLine       `json:"players"`
	EndedAt   time.Time          `json:"endedAt"`
}

// FromState builds the result for a room that just reached game_over.
func FromState(s *arena.State, reason arena.FinishReason, endedAt time.Time) MatchResult {
	res := MatchResult{
		HostID:    s.HostID,
		BlueScore: s.Match.BlueScore,
		RedScore:  s.Match.RedScore,
		Winner:    s.Match.Winner(),
		Reason:    reason,
		EndedAt:   endedAt.UTC(),
	}
	for _, id := range slices.Sorted(maps.Keys(s.Players)) {
		p := s.Players[id]
		res.Players = append(res.Players, PlayerLine{
			ID: p.ID, Name: p.Name, Team: p.Team,
			Kills: p.Kills, Deaths: p.Deaths, Goals: p.Goals,
		})
	}
	return res
}

type Publisher interface {
	Publish(MatchResult) error
	Close() error
}

type discard struct{}

func (discard) Publish(MatchResult) error { return nil }
func (discard) Close() error              { return nil }

// Discard drops every result. Used when no broker is configured.
var Discard Publisher = discard{}

// natsConn is the part of *nats.Conn the publisher needs.
type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

type NATSPublisher struct {
	conn    natsConn
	subject string
	log     *zap.Logger
}

// NewNATS connects to url. nats.go buffers publishes, so Publish never
// waits on the network.
func NewNATS(url string, log *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("hoverwars-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return newNATSPublisher(nc, Subject, log), nil
}

func newNATSPublisher(conn natsConn, subject string, log *zap.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject, log: log}
}

func (p *NATSPublisher) Publish(res MatchResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal match result: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	p.log.Debug("match result published",
		zap.String("subject", p.subject),
		zap.String("room", res.HostID),
		zap.Int("bytes", len(data)))
	return nil
}

// Close flushes pending publishes and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
