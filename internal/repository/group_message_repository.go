package repository

import (
	"context"
	"time"

	"github.com/Success-Framework/SFManagers-sub001/internal/models"
	"gorm.io/gorm"
)

type GroupMessageRepository struct {
	db *gorm.DB
}

func NewGroupMessageRepository(db *gorm.DB) *GroupMessageRepository {
	return &GroupMessageRepository{db: db}
}

func (r *GroupMessageRepository) CreateWithSenderRead(ctx context.Context, msg *models.GroupMessage) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		receipt := models.GroupMessageRead{
			MessageID: msg.ID,
			UserID:    msg.SenderID,
			ReadAt:    msg.CreatedAt,
		}
		return tx.Create(&receipt).Error
	})
	return translate(err, "message")
}

func (r *GroupMessageRepository) FindByID(ctx context.Context, id uint) (*models.GroupMessage, error) {
	var msg models.GroupMessage
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, translate(err, "message")
	}
	return &msg, nil
}

func (r *GroupMessageRepository) FindByClientID(ctx context.Context, senderID uint, clientID string) (*models.GroupMessage, error) {
	var msg models.GroupMessage
	err := r.db.WithContext(ctx).
		Where("sender_id = ? AND client_id = ?", senderID, clientID).
		First(&msg).Error
	if err != nil {
		return nil, translate(err, "message")
	}
	return &msg, nil
}

func (r *GroupMessageRepository) FindAfter(ctx context.Context, groupID uint, afterID uint, limit int) ([]models.GroupMessage, error) {
	var messages []models.GroupMessage
	query := r.db.WithContext(ctx).Where("group_id = ?", groupID)
	if afterID > 0 {
		query = query.Where("id > ?", afterID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Order("created_at ASC, id ASC").Find(&messages).Error; err != nil {
		return nil, translate(err, "message")
	}
	return messages, nil
}

const markGroupReadSQL = `INSERT INTO group_message_reads (message_id, user_id, read_at)
SELECT id, ?, ? FROM group_messages WHERE id IN ?
ON CONFLICT (message_id, user_id) DO NOTHING`

func (r *GroupMessageRepository) MarkRead(ctx context.Context, userID uint, messageIDs []uint) error {
	if len(messageIDs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Exec(markGroupReadSQL, userID, time.Now(), messageIDs).Error
	return translate(err, "receipt")
}

func (r *GroupMessageRepository) CountUnread(ctx context.Context, userID, groupID uint) (int64, error) {
	counts, err := r.CountUnreadByGroup(ctx, userID, []uint{groupID})
	if err != nil {
		return 0, err
	}
	return counts[groupID], nil
}

const unreadByGroupSQL = `SELECT gm.group_id AS group_id, COUNT(*) AS unread
FROM group_messages gm
LEFT JOIN group_message_reads r ON r.message_id = gm.id AND r.user_id = ?
WHERE gm.group_id IN ? AND gm.deleted_at IS NULL AND gm.sender_id <> ? AND r.message_id IS NULL
GROUP BY gm.group_id`

type groupUnreadRow struct {
	GroupID uint
	Unread  int64
}

// CountUnreadByGroup counts messages in each group that userID neither sent nor
// holds a receipt for. Groups with nothing unread map to zero.
func (r *GroupMessageRepository) CountUnreadByGroup(ctx context.Context, userID uint, groupIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(groupIDs))
	if len(groupIDs) == 0 {
		return counts, nil
	}
	for _, id := range groupIDs {
		counts[id] = 0
	}

	var rows []groupUnreadRow
	if err := r.db.WithContext(ctx).Raw(unreadByGroupSQL, userID, groupIDs, userID).Scan(&rows).Error; err != nil {
		return nil, translate(err, "message")
	}
	for _, row := range rows {
		counts[row.GroupID] = row.Unread
	}
	return counts, nil
}

func (r *GroupMessageRepository) ListReceipts(ctx context.Context, messageID uint) ([]models.GroupMessageRead, error) {
	var receipts []models.GroupMessageRead
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("read_at ASC").
		Find(&receipts).Error
	if err != nil {
		return nil, translate(err, "receipt")
	}
	return receipts, nil
}

func (r *GroupMessageRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.GroupMessage{}, id)
	if res.Error != nil {
		return translate(res.Error, "message")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "message")
	}
	return nil
}
