package models

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationType string

const (
	NotificationGroupAdded       NotificationType = "group-added"
	NotificationGroupRemoved     NotificationType = "group-removed"
	NotificationGroupRoleChanged NotificationType = "group-role-changed"
)

type Notification struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID  uint             `gorm:"not null;index:idx_notification_user_read" json:"user_id"`
	Type    NotificationType `gorm:"type:varchar(40);not null" json:"type"`
	Title   string           `gorm:"size:200;not null" json:"title"`
	Message string           `gorm:"type:text" json:"message"`
	Data    datatypes.JSON   `gorm:"type:jsonb" json:"data,omitempty"`
	IsRead  bool             `gorm:"not null;default:false;index:idx_notification_user_read" json:"is_read"`
	ReadAt  *time.Time       `json:"read_at,omitempty"`
}

func (Notification) TableName() string {
	return "notifications"
}
