package storage

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// AvatarResolver turns the avatar value stored on a user row into a URL a
// client can fetch. Absolute URLs pass through; object keys are presigned.
type AvatarResolver struct {
	s3  *S3Storage
	ttl time.Duration
}

// NewAvatarResolver accepts a nil store; keys then resolve to "".
func NewAvatarResolver(s3 *S3Storage, ttl time.Duration) *AvatarResolver {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AvatarResolver{s3: s3, ttl: ttl}
}

func (r *AvatarResolver) AvatarURL(ctx context.Context, stored string) string {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return ""
	}
	if strings.HasPrefix(stored, "http://") || strings.HasPrefix(stored, "https://") {
		return stored
	}
	if r == nil || r.s3 == nil {
		return ""
	}

	key, err := NormalizeObjectKey(stored)
	if err != nil {
		slog.Warn("avatar: rejected object key", "key", stored, "err", err)
		return ""
	}
	u, err := r.s3.PresignGet(ctx, key, r.ttl)
	if err != nil {
		slog.Warn("avatar: presign failed", "key", key, "err", err)
		return ""
	}
	return u
}
