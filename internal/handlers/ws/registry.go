package ws

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Success-Framework/SFManagers-sub001/internal/service"
	"github.com/google/uuid"
)

// ConnState is the lifecycle of one connection.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateAuthenticated
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "closed"
	}
}

var (
	ErrRegistryClosed = errors.New("registry is shut down")
	ErrNotRegistered  = errors.New("connection is not registered")
	ErrEvicted        = errors.New("user was evicted from room")
)

// PresenceMirror receives online/offline transitions. The registry stays the
// source of truth; mirror failures are logged only.
type PresenceMirror interface {
	SetUserOnline(ctx context.Context, userID uint) error
	SetUserOffline(ctx context.Context, userID uint) error
	RefreshUserOnline(ctx context.Context, userID uint) error
}

// Client is one live connection. Frames are queued on send and written by the
// connection's write pump only.
type Client struct {
	ID     string
	UserID uint

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	state     atomic.Int32
	dropped   atomic.Int64

	// rooms is guarded by Registry.mu.
	rooms map[string]struct{}
}

func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

// Enqueue queues a frame without blocking. A full buffer drops the frame:
// live pushes are best-effort and the store remains authoritative.
func (c *Client) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Dropped reports how many frames were discarded on a full buffer.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

// Done is closed once the client is unregistered.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)
	})
}

// Registry tracks live connections, their rooms, and per-user status. One
// instance is owned by the gateway for the lifetime of the server.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	byUser   map[uint]map[string]*Client
	rooms    map[string]map[string]*Client
	statuses map[uint]string
	closed   bool

	// evictions counts EvictFromRoom calls per user and room while the user
	// is online.
	evictions map[uint]map[string]uint64

	sendBuffer int
	mirror     PresenceMirror
}

// NewRegistry accepts a nil mirror.
func NewRegistry(sendBuffer int, mirror PresenceMirror) *Registry {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Registry{
		clients:    make(map[string]*Client),
		byUser:     make(map[uint]map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		statuses:   make(map[uint]string),
		evictions:  make(map[uint]map[string]uint64),
		sendBuffer: sendBuffer,
		mirror:     mirror,
	}
}

// NewClient creates a connection in the Connecting state.
func (r *Registry) NewClient(userID uint) *Client {
	c := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan []byte, r.sendBuffer),
		done:   make(chan struct{}),
		rooms:  make(map[string]struct{}),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// Register marks c authenticated and joins its personal room. first reports
// whether this is the user's only live connection.
func (r *Registry) Register(c *Client) (first bool, err error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false, ErrRegistryClosed
	}
	if c.UserID == 0 {
		r.mu.Unlock()
		return false, ErrNotRegistered
	}
	conns, ok := r.byUser[c.UserID]
	if !ok {
		conns = make(map[string]*Client)
		r.byUser[c.UserID] = conns
	}
	first = len(conns) == 0
	conns[c.ID] = c
	r.clients[c.ID] = c
	c.state.Store(int32(StateAuthenticated))
	r.joinLocked(c, service.UserRoom(c.UserID))
	if first {
		r.statuses[c.UserID] = "online"
	}
	r.mu.Unlock()

	if first {
		r.mirrorCall(c.UserID, "online", func(ctx context.Context) error {
			return r.mirror.SetUserOnline(ctx, c.UserID)
		})
	}
	return first, nil
}

// Unregister removes c from every room it held. last reports whether the user
// has no live connection left.
func (r *Registry) Unregister(c *Client) (last bool) {
	r.mu.Lock()
	if _, ok := r.clients[c.ID]; !ok {
		r.mu.Unlock()
		c.close()
		return false
	}
	for room := range c.rooms {
		r.leaveLocked(c, room)
	}
	delete(r.clients, c.ID)
	if conns, ok := r.byUser[c.UserID]; ok {
		delete(conns, c.ID)
		if len(conns) == 0 {
			delete(r.byUser, c.UserID)
			delete(r.statuses, c.UserID)
			delete(r.evictions, c.UserID)
			last = true
		}
	}
	r.mu.Unlock()

	c.close()
	if last {
		r.mirrorCall(c.UserID, "offline", func(ctx context.Context) error {
			return r.mirror.SetUserOffline(ctx, c.UserID)
		})
	}
	return last
}

// JoinRoom adds a registered connection to room. Authorization is the caller's job.
func (r *Registry) JoinRoom(c *Client, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c.ID]; !ok {
		return ErrNotRegistered
	}
	r.joinLocked(c, room)
	return nil
}

// RoomGrant snapshots the user's eviction count for room. Take it before the
// membership check and hand it to JoinRoomWithGrant.
func (r *Registry) RoomGrant(userID uint, room string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.evictions[userID][room]
}

// JoinRoomWithGrant joins room unless the user was evicted from it after
// grant was taken, in which case the membership check it guards is stale.
func (r *Registry) JoinRoomWithGrant(c *Client, room string, grant uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c.ID]; !ok {
		return ErrNotRegistered
	}
	if r.evictions[c.UserID][room] != grant {
		return ErrEvicted
	}
	r.joinLocked(c, room)
	return nil
}

func (r *Registry) LeaveRoom(c *Client, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := c.rooms[room]; !ok {
		return false
	}
	r.leaveLocked(c, room)
	return true
}

func (r *Registry) InRoom(c *Client, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

func (r *Registry) joinLocked(c *Client, room string) {
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		r.rooms[room] = members
	}
	members[c.ID] = c
	c.rooms[room] = struct{}{}
}

func (r *Registry) leaveLocked(c *Client, room string) {
	if members, ok := r.rooms[room]; ok {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	delete(c.rooms, room)
}

func (r *Registry) ConnectionsInRoom(room string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.rooms[room]))
	for _, c := range r.rooms[room] {
		out = append(out, c)
	}
	return out
}

func (r *Registry) ConnectionsForUser(userID uint) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.byUser[userID]))
	for _, c := range r.byUser[userID] {
		out = append(out, c)
	}
	return out
}

// IsOnline is true while the user holds at least one registered connection.
func (r *Registry) IsOnline(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

func (r *Registry) OnlineUsers() []uint {
	r.mu.RLock()
	users := make([]uint, 0, len(r.byUser))
	for id := range r.byUser {
		users = append(users, id)
	}
	r.mu.RUnlock()
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

// Count returns the number of registered connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// SetStatus records the user's last announced status. Last write wins.
func (r *Registry) SetStatus(userID uint, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.byUser[userID]) > 0 {
		r.statuses[userID] = status
	}
}

func (r *Registry) Status(userID uint) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.statuses[userID]; ok {
		return s
	}
	return "offline"
}

// PushToRooms implements service.Pusher.
func (r *Registry) PushToRooms(rooms []string, ev service.Event) error {
	return r.pushExcept(rooms, ev, nil)
}

// pushExcept enqueues one encoded frame on every connection in any of rooms,
// once per connection, skipping exclude.
func (r *Registry) pushExcept(rooms []string, ev service.Event, exclude *Client) error {
	frame, err := encodeFrame(ev.Type, ev.Payload, "")
	if err != nil {
		return err
	}

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrRegistryClosed
	}
	seen := make(map[string]*Client)
	for _, room := range rooms {
		for id, c := range r.rooms[room] {
			if exclude != nil && id == exclude.ID {
				continue
			}
			seen[id] = c
		}
	}
	r.mu.RUnlock()

	for _, c := range seen {
		if !c.Enqueue(frame) {
			slog.Debug("ws: frame dropped", "type", ev.Type, "user_id", c.UserID, "conn_id", c.ID)
		}
	}
	return nil
}

// BroadcastExcept sends ev to every registered connection other than exclude.
func (r *Registry) BroadcastExcept(exclude *Client, ev service.Event) error {
	frame, err := encodeFrame(ev.Type, ev.Payload, "")
	if err != nil {
		return err
	}
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.clients))
	for id, c := range r.clients {
		if exclude != nil && id == exclude.ID {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		c.Enqueue(frame)
	}
	return nil
}

// EvictFromRoom implements service.RoomEvictor: every connection of userID
// leaves room and is told so. Joins authorized before the eviction are refused.
func (r *Registry) EvictFromRoom(userID uint, room string) {
	r.mu.Lock()
	if conns := r.byUser[userID]; len(conns) > 0 {
		gens, ok := r.evictions[userID]
		if !ok {
			gens = make(map[string]uint64)
			r.evictions[userID] = gens
		}
		gens[room]++
	}
	var evicted []*Client
	for _, c := range r.byUser[userID] {
		if _, ok := c.rooms[room]; ok {
			r.leaveLocked(c, room)
			evicted = append(evicted, c)
		}
	}
	r.mu.Unlock()

	if len(evicted) == 0 {
		return
	}
	frame, err := encodeFrame(TypeLeftGroup, map[string]interface{}{"room": room, "reason": "removed"}, "")
	if err != nil {
		return
	}
	for _, c := range evicted {
		c.Enqueue(frame)
	}
}

// RefreshPresence extends the mirrored online marker; called on pong.
func (r *Registry) RefreshPresence(userID uint) {
	r.mirrorCall(userID, "refresh", func(ctx context.Context) error {
		return r.mirror.RefreshUserOnline(ctx, userID)
	})
}

// Shutdown closes every connection and rejects further registrations.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.closed = true
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	for _, c := range clients {
		r.Unregister(c)
	}
}

func (r *Registry) mirrorCall(userID uint, op string, fn func(ctx context.Context) error) {
	if r.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		slog.Warn("ws: presence mirror failed", "op", op, "user_id", userID, "err", err)
	}
}
