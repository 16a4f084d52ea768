package models

import (
	"time"

	"gorm.io/gorm"
)

// User rows are owned by the account service; this core only reads them.
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Username string `gorm:"uniqueIndex;not null" json:"username"`
	FullName string `json:"full_name"`
	Avatar   string `json:"avatar"`
}

// DisplayName falls back to the username when no full name is set.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// UserSummary is the sender block embedded in realtime payloads.
type UserSummary struct {
	ID          uint   `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

func (u *User) ToSummary() UserSummary {
	return UserSummary{
		ID:          u.ID,
		DisplayName: u.DisplayName(),
		AvatarURL:   u.Avatar,
	}
}
