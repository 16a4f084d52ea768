package models

import (
	"time"
)

type GroupChat struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedBy   uint      `gorm:"not null" json:"created_by"`

	// Project channels are created lazily for a startup team; at most one per project.
	IsProject bool  `gorm:"not null;default:false" json:"is_project"`
	ProjectID *uint `gorm:"uniqueIndex" json:"project_id,omitempty"`

	Members []GroupChatMember `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
}

func (GroupChat) TableName() string {
	return "group_chats"
}

// GroupChatMember is the sole authorization source for group rooms.
type GroupChatMember struct {
	GroupID  uint      `gorm:"primaryKey" json:"group_id"`
	UserID   uint      `gorm:"primaryKey;index" json:"user_id"`
	IsAdmin  bool      `gorm:"not null;default:false" json:"is_admin"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (GroupChatMember) TableName() string {
	return "group_chat_members"
}
