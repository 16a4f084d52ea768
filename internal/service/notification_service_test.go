package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
	"github.com/Success-Framework/SFManagers-sub001/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyPersistsRegardlessOfPresence(t *testing.T) {
	env := newTestEnv(t, 1, 2)
	env.pusher.online[1] = true
	ctx := context.Background()

	online, err := env.fanout.Notify(ctx, 1, models.NotificationGroupAdded, "t", "m", map[string]uint{"group_id": 9})
	require.NoError(t, err)
	offline, err := env.fanout.Notify(ctx, 2, models.NotificationGroupAdded, "t", "m", nil)
	require.NoError(t, err)

	assert.NotZero(t, online.ID)
	assert.NotZero(t, offline.ID)

	var data map[string]uint
	require.NoError(t, json.Unmarshal(online.Data, &data))
	assert.Equal(t, uint(9), data["group_id"])

	pushes := env.pusher.ofType(EventNotification)
	require.Len(t, pushes, 1, "only the online user gets a live push")
	assert.Equal(t, []string{UserRoom(1)}, pushes[0].rooms)

	count, err := env.fanout.UnreadCount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestNotifyFailsWhenStoreIsDown(t *testing.T) {
	env := newTestEnv(t, 1)
	env.pusher.online[1] = true
	env.notifications.Err = errs.Unavailable("down", nil)

	_, err := env.fanout.Notify(context.Background(), 1, models.NotificationGroupAdded, "t", "m", nil)
	assert.True(t, errs.Is(err, errs.CodeUnavailable))
	assert.Empty(t, env.pusher.ofType(EventNotification))
}

func TestInboxOperations(t *testing.T) {
	env := newTestEnv(t, 1, 2)
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 3; i++ {
		n, err := env.fanout.Notify(ctx, 1, models.NotificationGroupAdded, "t", "m", nil)
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}
	other, err := env.fanout.Notify(ctx, 2, models.NotificationGroupRemoved, "t", "m", nil)
	require.NoError(t, err)

	list, err := env.fanout.List(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID, "newest first")

	_, err = env.fanout.MarkRead(ctx, 1, other.ID)
	assert.True(t, errs.Is(err, errs.CodeForbidden))
	err = env.fanout.Delete(ctx, 1, other.ID)
	assert.True(t, errs.Is(err, errs.CodeForbidden))

	n, err := env.fanout.MarkRead(ctx, 1, ids[0])
	require.NoError(t, err)
	assert.True(t, n.IsRead)
	_, err = env.fanout.MarkRead(ctx, 1, ids[0])
	require.NoError(t, err)

	count, err := env.fanout.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	changed, err := env.fanout.MarkAllRead(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	require.NoError(t, env.fanout.Delete(ctx, 1, ids[1]))
	removed, err := env.fanout.DeleteAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = env.fanout.MarkRead(ctx, 1, 12345)
	assert.True(t, errs.Is(err, errs.CodeNotFound))

	rest, err := env.fanout.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestPublishSkipsOfflineRecipients(t *testing.T) {
	env := newTestEnv(t, 1, 2)
	ctx := context.Background()

	env.fanout.PublishDirectMessage(ctx, DirectMessagePayload{ID: 1, SenderID: 1, ReceiverID: 2})
	assert.Empty(t, env.pusher.pushes, "nobody online, nothing pushed")

	env.pusher.online[2] = true
	env.fanout.PublishDirectMessage(ctx, DirectMessagePayload{ID: 2, SenderID: 1, ReceiverID: 2})
	pushes := env.pusher.ofType(EventNewDirectMessage)
	require.Len(t, pushes, 1)
	assert.Equal(t, []string{UserRoom(2)}, pushes[0].rooms)
}
