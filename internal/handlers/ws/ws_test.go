package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
	"github.com/Success-Framework/SFManagers-sub001/internal/service"
	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu       sync.Mutex
	out      [][]byte
	deadline time.Time
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	d := c.deadline
	c.mu.Unlock()

	var timeout <-chan time.Time
	if !d.IsZero() {
		timer := time.NewTimer(time.Until(d))
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case data := <-c.in:
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	case <-timeout:
		return 0, nil, errors.New("i/o timeout")
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, data)
	return nil
}

func (c *fakeConn) WriteControl(int, []byte, time.Time) error { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error          { return nil }
func (c *fakeConn) SetPongHandler(func(string) error)         {}

func (c *fakeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) send(t *testing.T, typ string, payload interface{}, requestID string) {
	t.Helper()
	frame, err := encodeFrame(typ, payload, requestID)
	require.NoError(t, err)
	c.in <- frame
}

func (c *fakeConn) frames(typ string) []SerializedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []SerializedMessage
	for _, raw := range c.out {
		var f SerializedMessage
		if json.Unmarshal(raw, &f) == nil && f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func (c *fakeConn) waitFrame(t *testing.T, typ string) SerializedMessage {
	t.Helper()
	var got SerializedMessage
	require.Eventually(t, func() bool {
		frames := c.frames(typ)
		if len(frames) == 0 {
			return false
		}
		got = frames[len(frames)-1]
		return true
	}, time.Second, 5*time.Millisecond, "no %q frame", typ)
	return got
}

type fakeVerifier map[string]uint

func (f fakeVerifier) VerifyCredential(_ context.Context, token string) (uint, error) {
	if id, ok := f[token]; ok {
		return id, nil
	}
	return 0, errs.Unauthenticated("invalid or expired token")
}

type fakeAuthority struct {
	mu      sync.Mutex
	members map[uint]map[uint]bool
	err     error
	calls   int
	// afterCheck runs once the answer is decided, before it is returned.
	afterCheck func()
}

func (f *fakeAuthority) CanReadGroup(_ context.Context, userID, groupID uint) (bool, error) {
	f.mu.Lock()
	f.calls++
	ok, err, hook := f.members[groupID][userID], f.err, f.afterCheck
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (f *fakeAuthority) set(groupID, userID uint, member bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members == nil {
		f.members = map[uint]map[uint]bool{}
	}
	if f.members[groupID] == nil {
		f.members[groupID] = map[uint]bool{}
	}
	f.members[groupID][userID] = member
}

type gatewayEnv struct {
	registry  *Registry
	authority *fakeAuthority
	gateway   *Gateway
}

func newGatewayEnv(cfg GatewayConfig) *gatewayEnv {
	registry := NewRegistry(16, nil)
	authority := &fakeAuthority{}
	verifier := fakeVerifier{"token-1": 1, "token-2": 2}
	return &gatewayEnv{
		registry:  registry,
		authority: authority,
		gateway:   NewGateway(registry, verifier, authority, cfg),
	}
}

// connect serves conn in the background and returns a channel closed when
// Serve returns.
func (e *gatewayEnv) connect(t *testing.T, conn *fakeConn, userID uint) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.gateway.Serve(conn, userID)
	}()
	t.Cleanup(func() {
		conn.Close()
		<-done
	})
	if userID != 0 {
		conn.waitFrame(t, TypeReady)
	}
	return done
}

func errorPayload(t *testing.T, f SerializedMessage) ErrorPayload {
	t.Helper()
	var p ErrorPayload
	require.NoError(t, json.Unmarshal(f.Payload, &p))
	return p
}

func TestRegistryFirstAndLastConnection(t *testing.T) {
	r := NewRegistry(4, nil)
	a, b := r.NewClient(7), r.NewClient(7)
	assert.Equal(t, StateConnecting, a.State())

	first, err := r.Register(a)
	require.NoError(t, err)
	assert.True(t, first)
	first, err = r.Register(b)
	require.NoError(t, err)
	assert.False(t, first)

	assert.True(t, r.IsOnline(7))
	assert.Len(t, r.ConnectionsForUser(7), 2)
	assert.Len(t, r.ConnectionsInRoom(service.UserRoom(7)), 2)

	assert.False(t, r.Unregister(a))
	assert.True(t, r.IsOnline(7))
	assert.True(t, r.Unregister(b))
	assert.False(t, r.IsOnline(7))
	assert.Equal(t, StateClosed, b.State())
	assert.Empty(t, r.ConnectionsInRoom(service.UserRoom(7)))
	assert.False(t, r.Unregister(b), "second unregister is a no-op")
}

func TestRegistryPushReachesConnectionOnce(t *testing.T) {
	r := NewRegistry(4, nil)
	c := r.NewClient(1)
	_, err := r.Register(c)
	require.NoError(t, err)
	require.NoError(t, r.JoinRoom(c, service.GroupRoom(3)))

	err = r.PushToRooms([]string{service.UserRoom(1), service.GroupRoom(3)}, service.Event{Type: "x", Payload: 1})
	require.NoError(t, err)
	assert.Len(t, c.send, 1)
}

func TestRegistryJoinRequiresRegistration(t *testing.T) {
	r := NewRegistry(4, nil)
	c := r.NewClient(1)
	assert.ErrorIs(t, r.JoinRoom(c, service.GroupRoom(1)), ErrNotRegistered)
}

func TestRegistryEvictFromRoom(t *testing.T) {
	r := NewRegistry(4, nil)
	c := r.NewClient(5)
	_, err := r.Register(c)
	require.NoError(t, err)
	room := service.GroupRoom(9)
	require.NoError(t, r.JoinRoom(c, room))

	r.EvictFromRoom(5, room)

	assert.False(t, r.InRoom(c, room))
	assert.True(t, r.InRoom(c, service.UserRoom(5)))
	require.Len(t, c.send, 1)
	var f SerializedMessage
	require.NoError(t, json.Unmarshal(<-c.send, &f))
	assert.Equal(t, TypeLeftGroup, f.Type)
}

func TestRegistryJoinWithStaleGrant(t *testing.T) {
	r := NewRegistry(4, nil)
	c := r.NewClient(5)
	_, err := r.Register(c)
	require.NoError(t, err)
	room := service.GroupRoom(9)

	grant := r.RoomGrant(5, room)
	r.EvictFromRoom(5, room)
	assert.ErrorIs(t, r.JoinRoomWithGrant(c, room, grant), ErrEvicted)
	assert.False(t, r.InRoom(c, room))

	require.NoError(t, r.JoinRoomWithGrant(c, room, r.RoomGrant(5, room)))
	assert.True(t, r.InRoom(c, room))
}

func TestClientEnqueueDropsWhenFull(t *testing.T) {
	r := NewRegistry(1, nil)
	c := r.NewClient(1)

	assert.True(t, c.Enqueue([]byte("a")))
	assert.False(t, c.Enqueue([]byte("b")))
	assert.Equal(t, int64(1), c.Dropped())
}

func TestRegistryStatusLastWriteWins(t *testing.T) {
	r := NewRegistry(4, nil)
	c := r.NewClient(2)
	_, err := r.Register(c)
	require.NoError(t, err)

	assert.Equal(t, "online", r.Status(2))
	r.SetStatus(2, "away")
	r.SetStatus(2, "busy")
	assert.Equal(t, "busy", r.Status(2))

	r.Unregister(c)
	assert.Equal(t, "offline", r.Status(2))
	r.SetStatus(2, "away")
	assert.Equal(t, "offline", r.Status(2), "offline users keep no status")
}

func TestRegistryShutdown(t *testing.T) {
	r := NewRegistry(4, nil)
	c := r.NewClient(1)
	_, err := r.Register(c)
	require.NoError(t, err)

	r.Shutdown()

	assert.Equal(t, 0, r.Count())
	assert.Equal(t, StateClosed, c.State())
	_, err = r.Register(r.NewClient(1))
	assert.ErrorIs(t, err, ErrRegistryClosed)
	assert.ErrorIs(t, r.PushToRooms([]string{service.UserRoom(1)}, service.Event{Type: "x"}), ErrRegistryClosed)
}

func TestInboundTypesAreRegistered(t *testing.T) {
	for _, typ := range []string{MsgAuth, MsgJoinGroup, MsgLeaveGroup, MsgTypingDirect, MsgTypingGroup, MsgStatusUpdate, "ping"} {
		assert.Contains(t, typeRegistry, typ)
	}
	assert.Len(t, typeRegistry, 7)
}

func TestDeserialize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"join", `{"type":"join-group","payload":{"group_id":4}}`, MsgJoinGroup, false},
		{"ping without payload", `{"type":"ping"}`, "ping", false},
		{"not json", `{{`, "", true},
		{"unknown type", `{"type":"launch"}`, "", true},
		{"missing type", `{"payload":{}}`, "", true},
		{"bad payload", `{"type":"join-group","payload":{"group_id":"x"}}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, _, err := Deserialize([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errs.CodeInvalidArgument, errs.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.GetType())
		})
	}
}

func TestGatewayAuthFrame(t *testing.T) {
	env := newGatewayEnv(GatewayConfig{})
	conn := newFakeConn()
	env.connect(t, conn, 0)

	conn.send(t, MsgAuth, MessageAuth{Token: "token-2"}, "")

	ready := conn.waitFrame(t, TypeReady)
	assert.Contains(t, string(ready.Payload), `"user_id":2`)
	assert.True(t, env.registry.IsOnline(2))
}

func TestGatewayRejectsInvalidCredential(t *testing.T) {
	env := newGatewayEnv(GatewayConfig{})
	conn := newFakeConn()
	done := env.connect(t, conn, 0)

	conn.send(t, MsgAuth, MessageAuth{Token: "forged"}, "")

	<-done
	f := conn.waitFrame(t, TypeError)
	assert.Equal(t, errs.CodeUnauthenticated, errorPayload(t, f).Code)
	assert.Equal(t, 0, env.registry.Count())
}

func TestGatewayAuthTimeout(t *testing.T) {
	env := newGatewayEnv(GatewayConfig{AuthTimeout: 20 * time.Millisecond})
	conn := newFakeConn()
	done := env.connect(t, conn, 0)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unauthenticated connection was not closed")
	}
	assert.Equal(t, errs.CodeUnauthenticated, errorPayload(t, conn.waitFrame(t, TypeError)).Code)
	assert.Equal(t, 0, env.registry.Count())
}

func TestGatewayJoinGroupRequiresMembership(t *testing.T) {
	env := newGatewayEnv(GatewayConfig{})
	conn := newFakeConn()
	env.connect(t, conn, 1)

	conn.send(t, MsgJoinGroup, MessageJoinGroup{GroupID: 4}, "r1")

	f := conn.waitFrame(t, TypeError)
	p := errorPayload(t, f)
	assert.Equal(t, errs.CodeForbidden, p.Code)
	assert.Equal(t, MsgJoinGroup, p.RequestType)
	assert.Equal(t, "r1", f.RequestID)
	assert.Empty(t, env.registry.ConnectionsInRoom(service.GroupRoom(4)))

	env.authority.set(4, 1, true)
	conn.send(t, MsgJoinGroup, MessageJoinGroup{GroupID: 4}, "r2")
	joined := conn.waitFrame(t, TypeJoinedGroup)
	assert.Equal(t, "r2", joined.RequestID)
	assert.Len(t, env.registry.ConnectionsInRoom(service.GroupRoom(4)), 1)

	require.NoError(t, env.registry.PushToRooms([]string{service.GroupRoom(4)}, service.Event{Type: service.EventNewGroupMessage, Payload: map[string]int{"id": 1}}))
	conn.waitFrame(t, service.EventNewGroupMessage)
}

func TestGatewayJoinRevalidatesEveryTime(t *testing.T) {
	env := newGatewayEnv(GatewayConfig{})
	env.authority.set(4, 1, true)
	conn := newFakeConn()
	env.connect(t, conn, 1)

	conn.send(t, MsgJoinGroup, MessageJoinGroup{GroupID: 4}, "")
	conn.waitFrame(t, TypeJoinedGroup)
	conn.send(t, MsgLeaveGroup, MessageLeaveGroup{GroupID: 4}, "")
	conn.waitFrame(t, TypeLeftGroup)

	env.authority.set(4, 1, false)
	conn.send(t, MsgJoinGroup, MessageJoinGroup{GroupID: 4}, "")
	assert.Equal(t, errs.CodeForbidden, errorPayload(t, conn.waitFrame(t, TypeError)).Code)
	assert.Empty(t, env.registry.ConnectionsInRoom(service.GroupRoom(4)))
	assert.Equal(t, 2, env.authority.calls)
}

func TestGatewayJoinRacingRemovalIsRejected(t *testing.T) {
	env := newGatewayEnv(GatewayConfig{})
	env.authority.set(4, 1, true)
	conn := newFakeConn()
	env.connect(t, conn, 1)

	// Removal commits and evicts after the membership check approved the join.
	env.authority.afterCheck = func() {
		env.authority.set(4, 1, false)
		env.registry.EvictFromRoom(1, service.GroupRoom(4))
	}
	conn.send(t, MsgJoinGroup, MessageJoinGroup{GroupID: 4}, "")

	assert.Equal(t, errs.CodeForbidden, errorPayload(t, conn.waitFrame(t, TypeError)).Code)
	assert.Empty(t, env.registry.ConnectionsInRoom(service.GroupRoom(4)))

	require.NoError(t, env.registry.PushToRooms([]string{service.GroupRoom(4)}, service.Event{Type: service.EventNewGroupMessage, Payload: map[string]int{"id": 1}}))
	conn.send(t, "ping", struct{}{}, "after")
	conn.waitFrame(t, "pong")
	assert.Empty(t, conn.frames(service.EventNewGroupMessage))
	assert.Empty(t, conn.frames(TypeJoinedGroup))
}

func TestGatewayJoinStoreFailureRejects(t *testing.T) {
	env := newGatewayEnv(GatewayConfig{})
	env.authority.set(4, 1, true)
	env.authority.err = errors.New("connection refused")
	conn := newFakeConn()
	env.connect(t, conn, 1)

	conn.send(t, MsgJoinGroup, MessageJoinGroup{GroupID: 4}, "")

	assert.Equal(t, errs.CodeUnavailable, errorPayload(t, conn.waitFrame(t, TypeError)).Code)
	assert.Empty(t, env.registry.ConnectionsInRoom(service.GroupRoom(4)))
}

func TestGatewayMalformedFrameKeepsConnection(t *testing.T) {
	env := newGatewayEnv(GatewayConfig{})
	conn := newFakeConn()
	env.connect(t, conn, 1)

	conn.in <- []byte(`not json`)
	assert.Equal(t, errs.CodeInvalidArgument, errorPayload(t, conn.waitFrame(t, TypeError)).Code)

	conn.send(t, "ping", struct{}{}, "p1")
	assert.Equal(t, "p1", conn.waitFrame(t, "pong").RequestID)
	assert.True(t, env.registry.IsOnline(1))
}

func TestGatewayMultiDevicePush(t *testing.T) {
	env := newGatewayEnv(GatewayConfig{})
	phone, laptop := newFakeConn(), newFakeConn()
	env.connect(t, phone, 1)
	env.connect(t, laptop, 1)
	require.Len(t, env.registry.ConnectionsForUser(1), 2)

	require.NoError(t, env.registry.PushToRooms([]string{service.UserRoom(1)}, service.Event{Type: service.EventNewDirectMessage, Payload: map[string]int{"id": 9}}))

	phone.waitFrame(t, service.EventNewDirectMessage)
	laptop.waitFrame(t, service.EventNewDirectMessage)
}

func TestGatewayTyping(t *testing.T) {
	env := newGatewayEnv(GatewayConfig{})
	env.authority.set(4, 1, true)
	env.authority.set(4, 2, true)
	alice, bob := newFakeConn(), newFakeConn()
	env.connect(t, alice, 1)
	env.connect(t, bob, 2)

	alice.send(t, MsgTypingGroup, MessageTypingGroup{GroupID: 4, Typing: true}, "")
	assert.Equal(t, errs.CodeForbidden, errorPayload(t, alice.waitFrame(t, TypeError)).Code)

	alice.send(t, MsgJoinGroup, MessageJoinGroup{GroupID: 4}, "")
	alice.waitFrame(t, TypeJoinedGroup)
	bob.send(t, MsgJoinGroup, MessageJoinGroup{GroupID: 4}, "")
	bob.waitFrame(t, TypeJoinedGroup)

	alice.send(t, MsgTypingGroup, MessageTypingGroup{GroupID: 4, Typing: true}, "")
	f := bob.waitFrame(t, service.EventTypingGroup)
	assert.JSONEq(t, `{"group_id":4,"user_id":1,"typing":true}`, string(f.Payload))

	alice.send(t, MsgTypingDirect, MessageTypingDirect{UserID: 2, Typing: false}, "")
	f = bob.waitFrame(t, service.EventTypingDirect)
	assert.JSONEq(t, `{"user_id":1,"typing":false}`, string(f.Payload))

	assert.Empty(t, alice.frames(service.EventTypingGroup), "sender does not receive its own typing event")
}

func TestGatewayStatusAndPresenceBroadcast(t *testing.T) {
	env := newGatewayEnv(GatewayConfig{})
	alice, bob := newFakeConn(), newFakeConn()
	env.connect(t, alice, 1)
	bobDone := env.connect(t, bob, 2)

	online := alice.waitFrame(t, service.EventUserStatus)
	assert.JSONEq(t, `{"user_id":2,"status":"online"}`, string(online.Payload))

	alice.send(t, MsgStatusUpdate, MessageStatusUpdate{Status: "away"}, "")
	f := bob.waitFrame(t, service.EventUserStatus)
	assert.JSONEq(t, `{"user_id":1,"status":"away"}`, string(f.Payload))
	assert.Equal(t, "away", env.registry.Status(1))
	for _, own := range alice.frames(service.EventUserStatus) {
		assert.NotContains(t, string(own.Payload), `"away"`)
	}

	bob.Close()
	<-bobDone
	require.Eventually(t, func() bool {
		for _, f := range alice.frames(service.EventUserStatus) {
			if string(f.Payload) == `{"status":"offline","user_id":2}` {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	assert.False(t, env.registry.IsOnline(2))
}
