package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	UnreadCountTTL = 1 * time.Minute
	// unreadVersionTTL outlives any count computation so a version cannot
	// expire back to a value a slow reader already saw.
	unreadVersionTTL = 24 * time.Hour
)

// UnreadCache memoizes unread counters. Entries are only ever set from a
// fresh count or deleted; they are never incremented in place.
//
// Every counter has a version key. Invalidation bumps the version and drops
// the value together, and a Set only lands when the version it was read at is
// still current, so a count computed before a concurrent write is discarded.
type UnreadCache struct {
	redis *RedisCache
}

func NewUnreadCache(redis *RedisCache) *UnreadCache {
	return &UnreadCache{redis: redis}
}

func directUnreadKey(userID uint) string {
	return fmt.Sprintf("unread:dm:%d", userID)
}

func groupUnreadKey(userID, groupID uint) string {
	return fmt.Sprintf("unread:grp:%d:%d", userID, groupID)
}

func versionKey(key string) string {
	return "unread:ver:" + key
}

func parseVersion(v interface{}) uint64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseUint(s, 10, 64)
	return n
}

// get reads the counter and its version in one round trip. On a miss the
// version is still returned for the following set.
func (uc *UnreadCache) get(ctx context.Context, key string) (int64, uint64, bool) {
	if uc == nil || uc.redis == nil {
		return 0, 0, false
	}
	vals, err := uc.redis.GetMulti(ctx, key, versionKey(key))
	if err != nil || len(vals) != 2 {
		return 0, 0, false
	}
	version := parseVersion(vals[1])

	raw, ok := vals[0].(string)
	if !ok {
		return 0, version, false
	}
	var count int64
	if err := msgpack.Unmarshal([]byte(raw), &count); err != nil {
		return 0, version, false
	}
	return count, version, true
}

func (uc *UnreadCache) set(ctx context.Context, key string, count int64, version uint64) error {
	if uc == nil || uc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(count)
	if err != nil {
		return err
	}
	_, err = uc.redis.SetIfVersion(ctx, key, versionKey(key), version, data, UnreadCountTTL)
	return err
}

func (uc *UnreadCache) invalidate(ctx context.Context, keys []string) error {
	if uc == nil || uc.redis == nil || len(keys) == 0 {
		return nil
	}
	versions := make([]string, 0, len(keys))
	for _, k := range keys {
		versions = append(versions, versionKey(k))
	}
	return uc.redis.BumpAndDelete(ctx, versions, keys, unreadVersionTTL)
}

func (uc *UnreadCache) GetDirectUnread(ctx context.Context, userID uint) (int64, uint64, bool) {
	return uc.get(ctx, directUnreadKey(userID))
}

func (uc *UnreadCache) SetDirectUnread(ctx context.Context, userID uint, count int64, version uint64) error {
	return uc.set(ctx, directUnreadKey(userID), count, version)
}

func (uc *UnreadCache) InvalidateDirectUnread(ctx context.Context, userIDs ...uint) error {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, directUnreadKey(id))
	}
	return uc.invalidate(ctx, keys)
}

func (uc *UnreadCache) GetGroupUnread(ctx context.Context, userID, groupID uint) (int64, uint64, bool) {
	return uc.get(ctx, groupUnreadKey(userID, groupID))
}

func (uc *UnreadCache) SetGroupUnread(ctx context.Context, userID, groupID uint, count int64, version uint64) error {
	return uc.set(ctx, groupUnreadKey(userID, groupID), count, version)
}

// GroupUnreadVersions reads the current version of each group counter of
// userID. Missing or unreachable entries report version 0.
func (uc *UnreadCache) GroupUnreadVersions(ctx context.Context, userID uint, groupIDs []uint) map[uint]uint64 {
	out := make(map[uint]uint64, len(groupIDs))
	if uc == nil || uc.redis == nil || len(groupIDs) == 0 {
		return out
	}
	keys := make([]string, 0, len(groupIDs))
	for _, g := range groupIDs {
		keys = append(keys, versionKey(groupUnreadKey(userID, g)))
	}
	vals, err := uc.redis.GetMulti(ctx, keys...)
	if err != nil || len(vals) != len(groupIDs) {
		return out
	}
	for i, g := range groupIDs {
		out[g] = parseVersion(vals[i])
	}
	return out
}

// InvalidateGroupUnread drops the cached counter of every listed user for groupID.
func (uc *UnreadCache) InvalidateGroupUnread(ctx context.Context, groupID uint, userIDs ...uint) error {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, groupUnreadKey(id, groupID))
	}
	return uc.invalidate(ctx, keys)
}
