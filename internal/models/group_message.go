package models

import (
	"time"

	"gorm.io/gorm"
)

// GroupMessage is append-only; the only mutation is deletion.
type GroupMessage struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `gorm:"index:idx_gm_group_created" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	GroupID  uint   `gorm:"not null;index:idx_gm_group_created" json:"group_id"`
	SenderID uint   `gorm:"not null;uniqueIndex:idx_gm_client_sender" json:"sender_id"`
	ClientID string `gorm:"type:varchar(64);uniqueIndex:idx_gm_client_sender;not null" json:"client_id"`
	Content  string `gorm:"type:text;not null" json:"content"`
}

func (GroupMessage) TableName() string {
	return "group_messages"
}

// GroupMessageRead is the receipt ledger: one row per (message, reader).
type GroupMessageRead struct {
	MessageID uint      `gorm:"primaryKey" json:"message_id"`
	UserID    uint      `gorm:"primaryKey;index" json:"user_id"`
	ReadAt    time.Time `gorm:"not null" json:"read_at"`
}

func (GroupMessageRead) TableName() string {
	return "group_message_reads"
}
