package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	onlineUsersKey = "online:users"
	OnlineUserTTL  = 90 * time.Second
)

// PresenceCache mirrors the in-process presence registry into Redis so other
// services can see who is online. The registry stays authoritative.
type PresenceCache struct {
	redis *RedisCache
	ttl   time.Duration
}

func NewPresenceCache(redis *RedisCache, ttl time.Duration) *PresenceCache {
	if ttl <= 0 {
		ttl = OnlineUserTTL
	}
	return &PresenceCache{redis: redis, ttl: ttl}
}

func onlineUserKey(userID uint) string {
	return fmt.Sprintf("online:%d", userID)
}

func (pc *PresenceCache) SetUserOnline(ctx context.Context, userID uint) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	if err := pc.redis.SetAdd(ctx, onlineUsersKey, userID); err != nil {
		return err
	}
	return pc.redis.Set(ctx, onlineUserKey(userID), []byte("1"), pc.ttl)
}

func (pc *PresenceCache) SetUserOffline(ctx context.Context, userID uint) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	if err := pc.redis.SetRemove(ctx, onlineUsersKey, userID); err != nil {
		return err
	}
	return pc.redis.Delete(ctx, onlineUserKey(userID))
}

// RefreshUserOnline extends the per-user key; called on every pong.
func (pc *PresenceCache) RefreshUserOnline(ctx context.Context, userID uint) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	return pc.redis.Set(ctx, onlineUserKey(userID), []byte("1"), pc.ttl)
}

func (pc *PresenceCache) IsUserOnline(ctx context.Context, userID uint) bool {
	if pc == nil || pc.redis == nil {
		return false
	}
	return pc.redis.Exists(ctx, onlineUserKey(userID))
}

func (pc *PresenceCache) GetOnlineUsers(ctx context.Context) ([]uint, error) {
	if pc == nil || pc.redis == nil {
		return nil, nil
	}
	members, err := pc.redis.SetMembers(ctx, onlineUsersKey)
	if err != nil {
		return nil, err
	}

	userIDs := make([]uint, 0, len(members))
	for _, member := range members {
		if id, err := strconv.ParseUint(member, 10, 32); err == nil {
			userIDs = append(userIDs, uint(id))
		}
	}
	return userIDs, nil
}
