package service

import (
	"fmt"
	"time"

	"github.com/Success-Framework/SFManagers-sub001/internal/models"
)

// Outbound realtime event types.
const (
	EventNewDirectMessage = "new-direct-message"
	EventMessageRead      = "message-read"
	EventNewGroupMessage  = "new-group-message"
	EventMessageDeleted   = "message-deleted"
	EventNotification     = "notification"
	EventUserStatus       = "user-status-update"
	EventTypingDirect     = "user-typing-direct"
	EventTypingGroup      = "user-typing-group"
)

// Event is a single outbound realtime frame body.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// UserRoom names the implicit personal room of a user.
func UserRoom(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// GroupRoom names the broadcast room of a group chat. The name is an address
// only; joining it is gated by membership.
func GroupRoom(groupID uint) string {
	return fmt.Sprintf("group:%d", groupID)
}

// Pusher delivers an event to every live connection in any of rooms, at most
// once per connection. Delivery is best-effort.
type Pusher interface {
	PushToRooms(rooms []string, ev Event) error
}

// Presence answers whether a user holds at least one live connection.
type Presence interface {
	IsOnline(userID uint) bool
}

// RoomEvictor drops every connection of a user from a room.
type RoomEvictor interface {
	EvictFromRoom(userID uint, room string)
}

type DirectMessagePayload struct {
	ID         uint               `json:"id"`
	ClientID   string             `json:"client_id"`
	SenderID   uint               `json:"sender_id"`
	ReceiverID uint               `json:"receiver_id"`
	Content    string             `json:"content"`
	Read       bool               `json:"read"`
	CreatedAt  time.Time          `json:"created_at"`
	Sender     models.UserSummary `json:"sender"`
}

func NewDirectMessagePayload(m *models.DirectMessage, sender models.UserSummary) DirectMessagePayload {
	return DirectMessagePayload{
		ID:         m.ID,
		ClientID:   m.ClientID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		Read:       m.Read,
		CreatedAt:  m.CreatedAt,
		Sender:     sender,
	}
}

type GroupMessagePayload struct {
	ID        uint               `json:"id"`
	ClientID  string             `json:"client_id"`
	GroupID   uint               `json:"group_id"`
	SenderID  uint               `json:"sender_id"`
	Content   string             `json:"content"`
	CreatedAt time.Time          `json:"created_at"`
	Sender    models.UserSummary `json:"sender"`
}

func NewGroupMessagePayload(m *models.GroupMessage, sender models.UserSummary) GroupMessagePayload {
	return GroupMessagePayload{
		ID:        m.ID,
		ClientID:  m.ClientID,
		GroupID:   m.GroupID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Sender:    sender,
	}
}

type MessageReadPayload struct {
	MessageIDs []uint    `json:"message_ids"`
	ReaderID   uint      `json:"reader_id"`
	SenderID   uint      `json:"sender_id"`
	ReadAt     time.Time `json:"read_at"`
}

type MessageDeletedPayload struct {
	MessageID uint  `json:"message_id"`
	GroupID   *uint `json:"group_id,omitempty"`
	DeletedBy uint  `json:"deleted_by"`
}
