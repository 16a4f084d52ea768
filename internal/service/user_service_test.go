package service

import (
	"context"
	"testing"

	"github.com/Success-Framework/SFManagers-sub001/internal/models"
	"github.com/Success-Framework/SFManagers-sub001/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prefixResolver struct{}

func (prefixResolver) AvatarURL(_ context.Context, stored string) string {
	if stored == "" {
		return ""
	}
	return "https://cdn.test/" + stored
}

func TestUserDirectory(t *testing.T) {
	repo := testutil.NewFakeUserRepository(
		&models.User{ID: 1, Username: "ana", FullName: "Ana Lima", Avatar: "avatars/1.png"},
		&models.User{ID: 2, Username: "bo"},
	)
	users := NewUserService(repo, prefixResolver{})
	ctx := context.Background()

	ok, err := users.Exists(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = users.Exists(ctx, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	name, err := users.DisplayName(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "bo", name)

	summary, err := users.Summary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Ana Lima", summary.DisplayName)
	assert.Equal(t, "https://cdn.test/avatars/1.png", summary.AvatarURL)

	all, err := users.Summaries(ctx, []uint{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "", all[2].AvatarURL)

	fallback := summaryOrFallback(ctx, users, 3)
	assert.Equal(t, models.UserSummary{ID: 3}, fallback)
}
