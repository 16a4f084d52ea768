package models

import (
	"time"

	"gorm.io/gorm"
)

type DirectMessage struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Client-side id used to make retried sends idempotent.
	ClientID string `gorm:"type:varchar(64);uniqueIndex:idx_dm_client_sender;not null" json:"client_id"`

	SenderID   uint   `gorm:"not null;uniqueIndex:idx_dm_client_sender;index:idx_dm_pair" json:"sender_id"`
	ReceiverID uint   `gorm:"not null;index:idx_dm_pair;index:idx_dm_unread" json:"receiver_id"`
	Content    string `gorm:"type:text;not null" json:"content"`

	// Read flips false -> true once and never reverts.
	Read   bool       `gorm:"column:is_read;not null;default:false;index:idx_dm_unread" json:"read"`
	ReadAt *time.Time `json:"read_at,omitempty"`
}

func (DirectMessage) TableName() string {
	return "direct_messages"
}

// IsParticipant reports whether userID sent or received the message.
func (m *DirectMessage) IsParticipant(userID uint) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Peer returns the other participant from userID's point of view.
func (m *DirectMessage) Peer(userID uint) uint {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
