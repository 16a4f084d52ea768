package repository

import (
	"context"
	"time"

	"github.com/Success-Framework/SFManagers-sub001/internal/models"
	"gorm.io/gorm"
)

type DirectMessageRepository struct {
	db *gorm.DB
}

func NewDirectMessageRepository(db *gorm.DB) *DirectMessageRepository {
	return &DirectMessageRepository{db: db}
}

func (r *DirectMessageRepository) Create(ctx context.Context, msg *models.DirectMessage) error {
	return translate(r.db.WithContext(ctx).Create(msg).Error, "message")
}

func (r *DirectMessageRepository) FindByID(ctx context.Context, id uint) (*models.DirectMessage, error) {
	var msg models.DirectMessage
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, translate(err, "message")
	}
	return &msg, nil
}

func (r *DirectMessageRepository) FindByClientID(ctx context.Context, senderID uint, clientID string) (*models.DirectMessage, error) {
	var msg models.DirectMessage
	err := r.db.WithContext(ctx).
		Where("sender_id = ? AND client_id = ?", senderID, clientID).
		First(&msg).Error
	if err != nil {
		return nil, translate(err, "message")
	}
	return &msg, nil
}

func (r *DirectMessageRepository) FindConversation(ctx context.Context, userID, otherID uint, afterID uint, limit int) ([]models.DirectMessage, error) {
	var messages []models.DirectMessage
	query := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, otherID, otherID, userID)
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

func (r *DirectMessageRepository) MarkRead(ctx context.Context, id uint) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.DirectMessage{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	if res.Error != nil {
		return false, translate(res.Error, "message")
	}
	return res.RowsAffected > 0, nil
}

// MarkConversationRead marks every unread message from peerID to readerID and
// returns the ids that changed.
func (r *DirectMessageRepository) MarkConversationRead(ctx context.Context, readerID, peerID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.DirectMessage{}).
			Where("receiver_id = ? AND sender_id = ? AND is_read = ?", readerID, peerID, false).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&models.DirectMessage{}).
			Where("id IN ? AND is_read = ?", ids, false).
			Updates(map[string]interface{}{"is_read": true, "read_at": time.Now()}).Error
	})
	if err != nil {
		return nil, translate(err, "message")
	}
	return ids, nil
}

func (r *DirectMessageRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.DirectMessage{}, id)
	if res.Error != nil {
		return translate(res.Error, "message")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "message")
	}
	return nil
}

func (r *DirectMessageRepository) CountUnread(ctx context.Context, receiverID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DirectMessage{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Count(&count).Error
	return count, translate(err, "message")
}

func (r *DirectMessageRepository) CountUnreadFrom(ctx context.Context, receiverID, senderID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DirectMessage{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", receiverID, senderID, false).
		Count(&count).Error
	return count, translate(err, "message")
}
