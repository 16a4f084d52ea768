package repository

import (
	"context"

	"github.com/Success-Framework/SFManagers-sub001/internal/models"
)

// UserRepositoryInterface is the read-only user directory.
type UserRepositoryInterface interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	Exists(ctx context.Context, id uint) (bool, error)
}

// DirectMessageRepositoryInterface defines the contract for direct message storage
type DirectMessageRepositoryInterface interface {
	Create(ctx context.Context, msg *models.DirectMessage) error
	FindByID(ctx context.Context, id uint) (*models.DirectMessage, error)
	FindByClientID(ctx context.Context, senderID uint, clientID string) (*models.DirectMessage, error)
	// FindConversation returns messages between the pair with id > afterID,
	// ascending by (created_at, id). limit <= 0 means no limit.
	FindConversation(ctx context.Context, userID, otherID uint, afterID uint, limit int) ([]models.DirectMessage, error)
	// MarkRead flips is_read for a single message; it reports whether a row changed.
	MarkRead(ctx context.Context, id uint) (bool, error)
	MarkConversationRead(ctx context.Context, readerID, peerID uint) ([]uint, error)
	Delete(ctx context.Context, id uint) error
	CountUnread(ctx context.Context, receiverID uint) (int64, error)
	CountUnreadFrom(ctx context.Context, receiverID, senderID uint) (int64, error)
}

// GroupRepositoryInterface defines the contract for groups and their rosters
type GroupRepositoryInterface interface {
	// CreateWithMembers inserts the group and its initial roster in one transaction.
	CreateWithMembers(ctx context.Context, group *models.GroupChat, members []models.GroupChatMember) error
	FindByID(ctx context.Context, id uint) (*models.GroupChat, error)
	FindByProjectID(ctx context.Context, projectID uint) (*models.GroupChat, error)
	// AddMember is idempotent per (group, user); it reports whether a row was inserted.
	AddMember(ctx context.Context, member *models.GroupChatMember) (bool, error)
	RemoveMember(ctx context.Context, groupID, userID uint) (bool, error)
	SetAdmin(ctx context.Context, groupID, userID uint, isAdmin bool) error
	GetMember(ctx context.Context, groupID, userID uint) (*models.GroupChatMember, error)
	IsMember(ctx context.Context, groupID, userID uint) (bool, error)
	ListMembers(ctx context.Context, groupID uint) ([]models.GroupChatMember, error)
	ListUserGroups(ctx context.Context, userID uint) ([]models.GroupChat, error)
}

// GroupMessageRepositoryInterface defines the contract for group messages and the receipt ledger
type GroupMessageRepositoryInterface interface {
	// CreateWithSenderRead inserts the message and the sender's receipt atomically.
	CreateWithSenderRead(ctx context.Context, msg *models.GroupMessage) error
	FindByID(ctx context.Context, id uint) (*models.GroupMessage, error)
	FindByClientID(ctx context.Context, senderID uint, clientID string) (*models.GroupMessage, error)
	FindAfter(ctx context.Context, groupID uint, afterID uint, limit int) ([]models.GroupMessage, error)
	// MarkRead inserts missing receipts; existing receipts are left untouched.
	MarkRead(ctx context.Context, userID uint, messageIDs []uint) error
	CountUnread(ctx context.Context, userID, groupID uint) (int64, error)
	CountUnreadByGroup(ctx context.Context, userID uint, groupIDs []uint) (map[uint]int64, error)
	ListReceipts(ctx context.Context, messageID uint) ([]models.GroupMessageRead, error)
	Delete(ctx context.Context, id uint) error
}

// NotificationRepositoryInterface defines the contract for the notification inbox
type NotificationRepositoryInterface interface {
	Create(ctx context.Context, n *models.Notification) error
	FindByID(ctx context.Context, id uint) (*models.Notification, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, id uint) error
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
	Delete(ctx context.Context, id uint) error
	DeleteAllForUser(ctx context.Context, userID uint) (int64, error)
}
