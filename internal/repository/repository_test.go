package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
	"github.com/Success-Framework/SFManagers-sub001/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil, "message"))
	assert.True(t, errs.Is(translate(gorm.ErrRecordNotFound, "message"), errs.CodeNotFound))
	assert.True(t, errs.Is(translate(gorm.ErrDuplicatedKey, "message"), errs.CodeConflict))
	assert.True(t, errs.Is(translate(errors.New("connection refused"), "message"), errs.CodeUnavailable))
}

func TestGroupMessageMarkRead_InsertsMissingReceipts(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGroupMessageRepository(db)

	mock.ExpectExec(`INSERT INTO group_message_reads .* ON CONFLICT \(message_id, user_id\) DO NOTHING`).
		WithArgs(uint(7), sqlmock.AnyArg(), uint(1), uint(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.MarkRead(context.Background(), 7, []uint{1, 2})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupMessageCreateWithSenderRead(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGroupMessageRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "group_messages"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectExec(`INSERT INTO "group_message_reads"`).
		WithArgs(uint(42), uint(3), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	msg := &models.GroupMessage{GroupID: 10, SenderID: 3, ClientID: "c-1", Content: "hi"}
	require.NoError(t, repo.CreateWithSenderRead(context.Background(), msg))
	assert.Equal(t, uint(42), msg.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupMessageCreateWithSenderRead_RollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGroupMessageRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "group_messages"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectExec(`INSERT INTO "group_message_reads"`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	msg := &models.GroupMessage{GroupID: 10, SenderID: 3, ClientID: "c-1", Content: "hi"}
	err := repo.CreateWithSenderRead(context.Background(), msg)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupCreateWithMembers(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGroupRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "group_chats"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectExec(`INSERT INTO "group_chat_members" .* ON CONFLICT DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	group := &models.GroupChat{Name: "Core", CreatedBy: 1}
	members := []models.GroupChatMember{{UserID: 1, IsAdmin: true}, {UserID: 2}}
	require.NoError(t, repo.CreateWithMembers(context.Background(), group, members))
	assert.Equal(t, uint(9), group.ID)
	for _, m := range members {
		assert.Equal(t, uint(9), m.GroupID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupCreateWithMembers_RollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGroupRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "group_chats"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectExec(`INSERT INTO "group_chat_members"`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	group := &models.GroupChat{Name: "Core", CreatedBy: 1}
	err := repo.CreateWithMembers(context.Background(), group, []models.GroupChatMember{{UserID: 1, IsAdmin: true}})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupAddMember(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		added    bool
	}{
		{"new member is inserted", 1, true},
		{"existing member is a no-op", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewGroupRepository(db)

			mock.ExpectExec(`INSERT INTO "group_chat_members" .* ON CONFLICT DO NOTHING`).
				WithArgs(uint(4), uint(2), false, sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			added, err := repo.AddMember(context.Background(), &models.GroupChatMember{GroupID: 4, UserID: 2})
			require.NoError(t, err)
			assert.Equal(t, tt.added, added)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGroupMessageMarkRead_EmptyIsNoop(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGroupMessageRepository(db)

	require.NoError(t, repo.MarkRead(context.Background(), 7, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupMessageCountUnreadByGroup(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGroupMessageRepository(db)

	mock.ExpectQuery(`LEFT JOIN group_message_reads r ON r.message_id = gm.id AND r.user_id = \$1`).
		WithArgs(uint(3), uint(10), uint(11), uint(3)).
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "unread"}).AddRow(10, 4))

	counts, err := repo.CountUnreadByGroup(context.Background(), 3, []uint{10, 11})
	require.NoError(t, err)
	assert.Equal(t, map[uint]int64{10: 4, 11: 0}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupMessageCountUnread_StorageFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGroupMessageRepository(db)

	mock.ExpectQuery(`FROM group_messages gm`).WillReturnError(errors.New("connection reset"))

	_, err := repo.CountUnread(context.Background(), 3, 10)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeUnavailable))
}

func TestDirectMessageMarkRead(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		changed  bool
	}{
		{"first read flips the flag", 1, true},
		{"already read is a no-op", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewDirectMessageRepository(db)

			mock.ExpectExec(`UPDATE "direct_messages" SET`).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			changed, err := repo.MarkRead(context.Background(), 5)
			require.NoError(t, err)
			assert.Equal(t, tt.changed, changed)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDirectMessageFindByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewDirectMessageRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "direct_messages"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	msg, err := repo.FindByID(context.Background(), 99)
	assert.Nil(t, msg)
	assert.True(t, errs.Is(err, errs.CodeNotFound))
}

func TestDirectMessageCountUnreadFrom(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewDirectMessageRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "direct_messages"`).
		WithArgs(uint(2), uint(1), false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountUnreadFrom(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestNotificationDelete_MissingRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewNotificationRepository(db)

	mock.ExpectExec(`UPDATE "notifications" SET "deleted_at"|DELETE FROM "notifications"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 42)
	assert.True(t, errs.Is(err, errs.CodeNotFound))
}

func TestUserFindByIDs_EmptySkipsQuery(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	users, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}
