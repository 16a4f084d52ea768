package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Success-Framework/SFManagers-sub001/internal/models"
	"github.com/Success-Framework/SFManagers-sub001/internal/testutil"
)

type recordedPush struct {
	rooms []string
	ev    Event
}

// recordingPusher stands in for the realtime registry.
type recordingPusher struct {
	mu        sync.Mutex
	online    map[uint]bool
	pushes    []recordedPush
	evictions []string
	err       error
}

func newRecordingPusher(online ...uint) *recordingPusher {
	p := &recordingPusher{online: make(map[uint]bool)}
	for _, id := range online {
		p.online[id] = true
	}
	return p
}

func (p *recordingPusher) PushToRooms(rooms []string, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, recordedPush{rooms: append([]string(nil), rooms...), ev: ev})
	return p.err
}

func (p *recordingPusher) IsOnline(userID uint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID]
}

func (p *recordingPusher) EvictFromRoom(userID uint, room string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evictions = append(p.evictions, UserRoom(userID)+">"+room)
}

func (p *recordingPusher) ofType(typ string) []recordedPush {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []recordedPush
	for _, push := range p.pushes {
		if push.ev.Type == typ {
			out = append(out, push)
		}
	}
	return out
}

// mapUnreadCache is an in-memory UnreadCache with the same versioning rules
// as the redis one.
type mapUnreadCache struct {
	mu       sync.Mutex
	entries  map[string]int64
	versions map[string]uint64
}

func newMapUnreadCache() *mapUnreadCache {
	return &mapUnreadCache{entries: make(map[string]int64), versions: make(map[string]uint64)}
}

func dmKey(userID uint) string           { return UserRoom(userID) }
func grpKey(userID, groupID uint) string { return UserRoom(userID) + GroupRoom(groupID) }

func (c *mapUnreadCache) get(key string) (int64, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, c.versions[key], ok
}

func (c *mapUnreadCache) set(key string, count int64, version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[key] == version {
		c.entries[key] = count
	}
}

func (c *mapUnreadCache) invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.versions[k]++
		delete(c.entries, k)
	}
}

func (c *mapUnreadCache) GetDirectUnread(_ context.Context, userID uint) (int64, uint64, bool) {
	return c.get(dmKey(userID))
}

func (c *mapUnreadCache) SetDirectUnread(_ context.Context, userID uint, count int64, version uint64) error {
	c.set(dmKey(userID), count, version)
	return nil
}

func (c *mapUnreadCache) InvalidateDirectUnread(_ context.Context, userIDs ...uint) error {
	for _, id := range userIDs {
		c.invalidate(dmKey(id))
	}
	return nil
}

func (c *mapUnreadCache) GetGroupUnread(_ context.Context, userID, groupID uint) (int64, uint64, bool) {
	return c.get(grpKey(userID, groupID))
}

func (c *mapUnreadCache) SetGroupUnread(_ context.Context, userID, groupID uint, count int64, version uint64) error {
	c.set(grpKey(userID, groupID), count, version)
	return nil
}

func (c *mapUnreadCache) GroupUnreadVersions(_ context.Context, userID uint, groupIDs []uint) map[uint]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uint]uint64, len(groupIDs))
	for _, g := range groupIDs {
		out[g] = c.versions[grpKey(userID, g)]
	}
	return out
}

func (c *mapUnreadCache) InvalidateGroupUnread(_ context.Context, groupID uint, userIDs ...uint) error {
	for _, id := range userIDs {
		c.invalidate(grpKey(id, groupID))
	}
	return nil
}

// slowGroupCounts runs afterCount once, between reading a group count from
// the store and returning it, to interleave a concurrent write.
type slowGroupCounts struct {
	*testutil.FakeGroupMessageRepository
	afterCount func()
}

func (r *slowGroupCounts) CountUnread(ctx context.Context, userID, groupID uint) (int64, error) {
	count, err := r.FakeGroupMessageRepository.CountUnread(ctx, userID, groupID)
	if hook := r.afterCount; hook != nil {
		r.afterCount = nil
		hook()
	}
	return count, err
}

// slowDirectCounts is slowGroupCounts for direct messages.
type slowDirectCounts struct {
	*testutil.FakeDirectMessageRepository
	afterCount func()
}

func (r *slowDirectCounts) CountUnread(ctx context.Context, receiverID uint) (int64, error) {
	count, err := r.FakeDirectMessageRepository.CountUnread(ctx, receiverID)
	if hook := r.afterCount; hook != nil {
		r.afterCount = nil
		hook()
	}
	return count, err
}

type testEnv struct {
	users         *testutil.FakeUserRepository
	directs       *testutil.FakeDirectMessageRepository
	groups        *testutil.FakeGroupRepository
	groupMessages *testutil.FakeGroupMessageRepository
	notifications *testutil.FakeNotificationRepository
	cache         *mapUnreadCache
	pusher        *recordingPusher

	directory *UserService
	store     *MessageStore
	authority *MembershipService
	fanout    *NotificationService
	messaging *MessagingService
}

func newTestEnv(t *testing.T, userIDs ...uint) *testEnv {
	t.Helper()
	h := testutil.NewTestHelper(t)

	env := &testEnv{
		users:         testutil.NewFakeUserRepository(),
		directs:       testutil.NewFakeDirectMessageRepository(),
		groups:        testutil.NewFakeGroupRepository(),
		groupMessages: testutil.NewFakeGroupMessageRepository(),
		notifications: testutil.NewFakeNotificationRepository(),
		cache:         newMapUnreadCache(),
		pusher:        newRecordingPusher(),
	}
	for _, id := range userIDs {
		env.users.Add(h.CreateTestUser(id, "user"+string(rune('0'+id))))
	}

	env.directory = NewUserService(env.users, nil)
	env.store = NewMessageStore(env.directs, env.groupMessages, env.directory, env.cache, 4000)
	env.authority = NewMembershipService(env.groups, env.directory)
	env.fanout = NewNotificationService(env.notifications, env.pusher, env.pusher)
	env.messaging = NewMessagingService(env.store, env.authority, env.fanout, env.directory, env.pusher)
	return env
}

func (e *testEnv) createGroup(t *testing.T, creatorID uint, members ...uint) *models.GroupChat {
	t.Helper()
	group, err := e.messaging.CreateGroup(context.Background(), creatorID, CreateGroupInput{Name: "Core", MemberIDs: members})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	return group
}

var errPushDown = errors.New("push transport down")
