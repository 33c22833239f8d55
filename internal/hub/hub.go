package hub

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/hoverwars-server/internal/arena"
	"github.com/DoyleJ11/hoverwars-server/internal/logging"
	"github.com/DoyleJ11/hoverwars-server/internal/results"
	"github.com/DoyleJ11/hoverwars-server/internal/room"
)

var ErrClosed = errors.New("hub: closed")

type HubMsg interface{ isHubMsg() }

type JoinRoom struct {
	ConnID string
	Cmd    arena.Join
	Outbox chan []byte
	Reply  chan JoinReply
}

type JoinReply struct {
	Room *room.Room
	Err  error
}

type Dispatch struct {
	ConnID string
	Cmd    arena.Command
}

type Disconnect struct {
	ConnID string
}

type DeleteRoom struct {
	HostID string
}

type GetRoom struct {
	HostID string
	Reply  chan *room.Room
}

type ListRooms struct {
	Reply chan []*room.Room
}

type GetStats struct {
	Reply chan Stats
}

type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

type ShutdownHub struct{}

// roomEmpty is posted by a room after its last player left.
type roomEmpty struct {
	HostID string
	Room   *room.Room
}

func (JoinRoom) isHubMsg()    {}
func (Dispatch) isHubMsg()    {}
func (Disconnect) isHubMsg()  {}
func (DeleteRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (ListRooms) isHubMsg()   {}
func (GetStats) isHubMsg()    {}
func (ShutdownHub) isHubMsg() {}
func (roomEmpty) isHubMsg()   {}

type Options struct {
	Rules   arena.Rules
	Clock   clockwork.Clock
	Logger  *zap.Logger
	Results results.Publisher
}

// Hub owns the room registry and the connection to room index. Both maps are
// only touched by the hub goroutine.
type Hub struct {
	inbox   chan HubMsg
	rooms   map[string]*room.Room
	conns   map[string]string // connID -> hostID
	members map[string]int    // hostID -> indexed connections
	opts    Options
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context, opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Results == nil {
		opts.Results = results.Discard
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		rooms:   make(map[string]*room.Room),
		conns:   make(map[string]string),
		members: make(map[string]int),
		opts:    opts,
		log:     opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub and all of its rooms have stopped.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case JoinRoom:
				msg.Reply <- h.join(msg)

			case Dispatch:
				h.dispatch(msg)

			case Disconnect:
				h.disconnect(msg.ConnID)

			case DeleteRoom:
				h.deleteRoom(msg.HostID)

			case GetRoom:
				msg.Reply <- h.rooms[msg.HostID] // may be nil

			case ListRooms:
				out := make([]*room.Room, 0, len(h.rooms))
				for _, r := range h.rooms {
					out = append(out, r)
				}
				msg.Reply <- out

			case GetStats:
				msg.Reply <- Stats{Rooms: len(h.rooms), Connections: len(h.conns)}

			case roomEmpty:
				h.reap(msg)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) join(msg JoinRoom) JoinReply {
	if _, ok := h.conns[msg.ConnID]; ok {
		return JoinReply{Err: arena.ErrAlreadyJoined}
	}
	r := h.ensureRoom(msg.Cmd.HostID)
	if !r.Send(room.Join{ConnID: msg.ConnID, Cmd: msg.Cmd, Outbox: msg.Outbox}) {
		return JoinReply{Err: ErrClosed}
	}
	h.conns[msg.ConnID] = msg.Cmd.HostID
	h.members[msg.Cmd.HostID]++
	return JoinReply{Room: r}
}

func (h *Hub) ensureRoom(hostID string) *room.Room {
	if r := h.rooms[hostID]; r != nil {
		return r
	}
	r := room.New(h.ctx, hostID, room.Options{
		Rules:   h.opts.Rules,
		Clock:   h.opts.Clock,
		Logger:  h.log,
		Results: h.opts.Results,
		OnEmpty: h.notifyEmpty,
	})
	h.rooms[hostID] = r
	h.log.Info("created room", zap.String("room", logging.ShortID(hostID)), zap.Int("rooms", len(h.rooms)))
	return r
}

// notifyEmpty runs on the room goroutine. Posting from a fresh goroutine
// keeps the room from blocking on a hub that may be sending to it.
func (h *Hub) notifyEmpty(r *room.Room) {
	go func() {
		select {
		case h.inbox <- roomEmpty{HostID: r.ID(), Room: r}:
		case <-h.ctx.Done():
		}
	}()
}

func (h *Hub) dispatch(msg Dispatch) {
	hostID, ok := h.conns[msg.ConnID]
	if !ok {
		h.log.Debug("dropping command from unjoined connection", zap.String("conn", msg.ConnID))
		return
	}
	if r := h.rooms[hostID]; r != nil {
		r.Send(room.FromClient{ConnID: msg.ConnID, Cmd: msg.Cmd})
	}
}

func (h *Hub) disconnect(connID string) {
	hostID, ok := h.conns[connID]
	if !ok {
		return
	}
	delete(h.conns, connID)
	if h.members[hostID]--; h.members[hostID] <= 0 {
		delete(h.members, hostID)
	}
	if r := h.rooms[hostID]; r != nil {
		r.Send(room.Leave{ConnID: connID})
	}
}

// reap deletes an empty room unless a join has been routed to it since the
// room reported.
func (h *Hub) reap(msg roomEmpty) {
	r := h.rooms[msg.HostID]
	if r == nil || r != msg.Room {
		return
	}
	if h.members[msg.HostID] > 0 {
		return
	}
	h.deleteRoom(msg.HostID)
}

// deleteRoom stops the room, which closes every outbox, and unlinks its
// connections. Missing ids are ignored.
func (h *Hub) deleteRoom(hostID string) {
	r := h.rooms[hostID]
	if r == nil {
		return
	}
	delete(h.rooms, hostID)
	for connID, id := range h.conns {
		if id == hostID {
			delete(h.conns, connID)
		}
	}
	delete(h.members, hostID)
	r.Send(room.Shutdown{})
	h.log.Info("deleted room", zap.String("room", logging.ShortID(hostID)), zap.Int("rooms", len(h.rooms)))
}

func (h *Hub) shutdown() {
	for _, r := range h.rooms {
		r.Send(room.Shutdown{})
	}
	for id, r := range h.rooms {
		<-r.Done()
		delete(h.rooms, id)
	}
	clear(h.conns)
	clear(h.members)
	h.cancel()
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join routes connID into the room keyed by cmd.HostID, creating the room on
// first use. The room owns outbox from here on and closes it on leave.
func (h *Hub) Join(ctx context.Context, connID string, cmd arena.Join, outbox chan []byte) (*room.Room, error) {
	reply := make(chan JoinReply, 1)
	if err := h.send(ctx, JoinRoom{ConnID: connID, Cmd: cmd, Outbox: outbox, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.Room, res.Err
	case <-h.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dispatch routes a post-join command to the sender's room. Commands from
// connections with no room are dropped.
func (h *Hub) Dispatch(connID string, cmd arena.Command) error {
	select {
	case h.inbox <- Dispatch{ConnID: connID, Cmd: cmd}:
		return nil
	case <-h.done:
		return ErrClosed
	}
}

// Delete removes a room and detaches its players. It is a no-op for unknown
// ids.
func (h *Hub) Delete(ctx context.Context, hostID string) error {
	return h.send(ctx, DeleteRoom{HostID: hostID})
}

// Disconnect is safe to call for connections that never joined.
func (h *Hub) Disconnect(connID string) {
	select {
	case h.inbox <- Disconnect{ConnID: connID}:
	case <-h.done:
	}
}

func (h *Hub) Room(ctx context.Context, hostID string) (*room.Room, error) {
	reply := make(chan *room.Room, 1)
	if err := h.send(ctx, GetRoom{HostID: hostID, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r, nil
	case <-h.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) Rooms(ctx context.Context) ([]*room.Room, error) {
	reply := make(chan []*room.Room, 1)
	if err := h.send(ctx, ListRooms{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case rs := <-reply:
		return rs, nil
	case <-h.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	if err := h.send(ctx, GetStats{Reply: reply}); err != nil {
		return Stats{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-h.done:
		return Stats{}, ErrClosed
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

// Shutdown stops every room and waits for the hub to exit.
func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
	}
	<-h.done
}
