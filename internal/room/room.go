package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/hoverwars-server/internal/arena"
	"github.com/DoyleJ11/hoverwars-server/internal/logging"
	"github.com/DoyleJ11/hoverwars-server/internal/results"
	"github.com/DoyleJ11/hoverwars-server/internal/types"
)

type Msg interface{ isRoomMsg() }

type Join struct {
	ConnID string
	Cmd    arena.Join
	Outbox chan []byte // encoded frames for this connection
}

func (Join) isRoomMsg() {}

type FromClient struct {
	ConnID string
	Cmd    arena.Command
}

func (FromClient) isRoomMsg() {}

type Leave struct{ ConnID string }

func (Leave) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type tick struct{ now time.Time }

func (tick) isRoomMsg() {}

type View struct {
	Summary      arena.Summary
	Players      map[string]arena.Player
	NumClients   int
	TickerActive bool
}

type Options struct {
	Rules   arena.Rules
	Clock   clockwork.Clock
	Logger  *zap.Logger
	Results results.Publisher
	// OnEmpty runs on the room goroutine when the last player leaves. It must
	// not block on the room.
	OnEmpty func(*Room)
}

// Room is the actor owning one match. Every message and tick is handled to
// completion on its goroutine, so arena.State needs no locking.
type Room struct {
	id      string
	inbox   chan Msg
	state   *arena.State
	clients map[string]chan []byte
	clock   clockwork.Clock
	ticker  clockwork.Ticker // non-nil iff the match is playing
	results results.Publisher
	onEmpty func(*Room)
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(parent context.Context, hostID string, opts Options) *Room {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Results == nil {
		opts.Results = results.Discard
	}
	ctx, cancel := context.WithCancel(parent)

	r := &Room{
		id:      hostID,
		inbox:   make(chan Msg, 64),
		state:   arena.NewState(hostID, opts.Rules),
		clients: make(map[string]chan []byte),
		clock:   opts.Clock,
		results: opts.Results,
		onEmpty: opts.OnEmpty,
		log:     opts.Logger.With(zap.String("room", logging.ShortID(hostID))),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go r.loop()
	return r
}

func (r *Room) ID() string { return r.id }

// Send queues m for the room. It reports false once the room has shut down.
func (r *Room) Send(m Msg) bool {
	if r.ctx.Err() != nil {
		return false
	}
	select {
	case r.inbox <- m:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// Done is closed after the room goroutine exits.
func (r *Room) Done() <-chan struct{} { return r.done }

// State asks the room for a snapshot of its state.
func (r *Room) State(ctx context.Context) (View, error) {
	if err := r.ctx.Err(); err != nil {
		return View{}, fmt.Errorf("room %s: %w", r.id, err)
	}
	reply := make(chan View, 1)
	select {
	case r.inbox <- GetState{Reply: reply}:
	case <-r.ctx.Done():
		return View{}, fmt.Errorf("room %s: %w", r.id, r.ctx.Err())
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-r.done:
		return View{}, fmt.Errorf("room %s: %w", r.id, context.Canceled)
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case now := <-r.tickC():
			r.handle(tick{now: now})

		case m := <-r.inbox:
			if _, ok := m.(Shutdown); ok {
				r.shutdown()
				return
			}
			r.handle(m)
		}
	}
}

// tickC is nil while no match is running, which disables that select case.
func (r *Room) tickC() <-chan time.Time {
	if r.ticker == nil {
		return nil
	}
	return r.ticker.Chan()
}

func (r *Room) handle(m Msg) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("recovered panic in room handler",
				zap.String("msg", fmt.Sprintf("%T", m)),
				zap.Any("panic", p),
				zap.Stack("stack"))
		}
	}()

	switch msg := m.(type) {
	case Join:
		res, err := r.state.Apply(msg.ConnID, msg.Cmd, r.clock.Now())
		if err != nil {
			r.log.Warn("join rejected", zap.String("conn", msg.ConnID), zap.Error(err))
			return
		}
		r.clients[msg.ConnID] = msg.Outbox
		r.log.Info("player joined",
			zap.String("conn", msg.ConnID),
			zap.String("name", r.state.Players[msg.ConnID].Name),
			zap.String("team", string(r.state.Players[msg.ConnID].Team)),
			zap.Int("total", len(r.state.Players)))
		r.apply(res)

	case FromClient:
		res, err := r.state.Apply(msg.ConnID, msg.Cmd, r.clock.Now())
		if err != nil {
			r.log.Debug("command ignored",
				zap.String("conn", msg.ConnID),
				zap.String("cmd", fmt.Sprintf("%T", msg.Cmd)),
				zap.Error(err))
			return
		}
		if _, ok := msg.Cmd.(arena.ConfirmRound); ok {
			r.log.Info("round confirmation",
				zap.String("conn", msg.ConnID),
				zap.Int("confirmed", len(r.state.Confirmations)),
				zap.Int("players", len(r.state.Players)),
				zap.Bool("waiting", r.state.WaitingForConfirmations))
		}
		r.apply(res)

	case Leave:
		if out, ok := r.clients[msg.ConnID]; ok {
			close(out)
			delete(r.clients, msg.ConnID)
		}
		res, err := r.state.Leave(msg.ConnID)
		if err != nil {
			if !errors.Is(err, arena.ErrNotInRoom) {
				r.log.Warn("leave failed", zap.String("conn", msg.ConnID), zap.Error(err))
			}
			return
		}
		r.log.Info("player left", zap.String("conn", msg.ConnID), zap.Int("remaining", len(r.state.Players)))
		r.apply(res)
		if len(r.state.Players) == 0 && r.onEmpty != nil {
			r.onEmpty(r)
		}

	case GetState:
		msg.Reply <- View{
			Summary:      r.state.Summary(),
			Players:      r.state.Roster(),
			NumClients:   len(r.clients),
			TickerActive: r.ticker != nil,
		}

	case tick:
		r.apply(r.state.Tick(msg.now))
	}
}

func (r *Room) apply(res arena.Result) {
	for _, d := range res.Deliveries {
		r.deliver(d)
	}

	switch res.Loop {
	case arena.LoopStart:
		r.startLoop()
	case arena.LoopStop:
		r.stopLoop()
	}

	if res.Finished != "" {
		r.log.Info("match over",
			zap.String("reason", string(res.Finished)),
			zap.Int("blue", r.state.Match.BlueScore),
			zap.Int("red", r.state.Match.RedScore))
		if err := r.results.Publish(results.FromState(r.state, res.Finished, r.clock.Now())); err != nil {
			r.log.Warn("failed to publish match result", zap.Error(err))
		}
	}
}

// startLoop replaces any running ticker with a fresh one.
func (r *Room) startLoop() {
	r.stopLoop()
	r.ticker = r.clock.NewTicker(r.state.Rules.TickInterval)
	r.log.Info("match started", zap.Int("match_time", r.state.MatchTime))
}

// stopLoop is a no-op when no ticker is running.
func (r *Room) stopLoop() {
	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	r.ticker = nil
}

func (r *Room) deliver(d arena.Delivery) {
	payload, err := types.Encode(d.Event)
	if err != nil {
		r.log.Error("failed to encode event", zap.String("event", string(d.Event.Type)), zap.Error(err))
		return
	}

	switch d.Audience {
	case arena.ToConn:
		if ch, ok := r.clients[d.ConnID]; ok {
			r.trySend(d.ConnID, ch, d.Event.Type, payload)
		}
	case arena.ToOthers:
		for id, ch := range r.clients {
			if id != d.ConnID {
				r.trySend(id, ch, d.Event.Type, payload)
			}
		}
	default:
		for id, ch := range r.clients {
			r.trySend(id, ch, d.Event.Type, payload)
		}
	}
}

// trySend never blocks the room. Delivery is at-most-once: a full outbox
// loses this frame and the next snapshot carries full state again.
func (r *Room) trySend(connID string, ch chan []byte, evt arena.EventType, payload []byte) {
	select {
	case ch <- payload:
	default:
		r.log.Warn("outbox full, dropping event", zap.String("conn", connID), zap.String("event", string(evt)))
	}
}

func (r *Room) shutdown() {
	r.stopLoop()
	for id, ch := range r.clients {
		close(ch) // tell the writer no more frames are coming
		delete(r.clients, id)
	}
	r.cancel()
	r.log.Info("room closed")
}
