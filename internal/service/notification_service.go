package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
	"github.com/Success-Framework/SFManagers-sub001/internal/models"
	"github.com/Success-Framework/SFManagers-sub001/internal/repository"
	"gorm.io/datatypes"
)

const defaultInboxLimit = 50

// NotificationService turns committed events into live pushes and keeps the
// durable notification inbox. Push failures are logged and swallowed: the
// store already holds the record the client will fetch.
type NotificationService struct {
	repo     repository.NotificationRepositoryInterface
	pusher   Pusher
	presence Presence
}

func NewNotificationService(repo repository.NotificationRepositoryInterface, pusher Pusher, presence Presence) *NotificationService {
	return &NotificationService{repo: repo, pusher: pusher, presence: presence}
}

// PublishDirectMessage pushes to the receiver's personal room and to the
// sender's other devices. Nothing is persisted here.
func (s *NotificationService) PublishDirectMessage(ctx context.Context, payload DirectMessagePayload) {
	s.push(ctx, s.onlineRooms(payload.ReceiverID, payload.SenderID), Event{Type: EventNewDirectMessage, Payload: payload})
}

// PublishGroupMessage pushes to the group room and to the personal room of
// every online member except the sender. A connection in both receives one frame.
func (s *NotificationService) PublishGroupMessage(ctx context.Context, payload GroupMessagePayload, memberIDs []uint) {
	rooms := []string{GroupRoom(payload.GroupID)}
	for _, id := range memberIDs {
		if id == payload.SenderID {
			continue
		}
		if s.presence != nil && s.presence.IsOnline(id) {
			rooms = append(rooms, UserRoom(id))
		}
	}
	s.push(ctx, rooms, Event{Type: EventNewGroupMessage, Payload: payload})
}

// PublishRead tells the original sender and all of the reader's devices.
func (s *NotificationService) PublishRead(ctx context.Context, payload MessageReadPayload) {
	s.push(ctx, s.onlineRooms(payload.SenderID, payload.ReaderID), Event{Type: EventMessageRead, Payload: payload})
}

func (s *NotificationService) PublishDirectDeleted(ctx context.Context, payload MessageDeletedPayload, participants ...uint) {
	s.push(ctx, s.onlineRooms(participants...), Event{Type: EventMessageDeleted, Payload: payload})
}

func (s *NotificationService) PublishGroupDeleted(ctx context.Context, payload MessageDeletedPayload) {
	if payload.GroupID == nil {
		return
	}
	s.push(ctx, []string{GroupRoom(*payload.GroupID)}, Event{Type: EventMessageDeleted, Payload: payload})
}

// Notify always persists the notification, then pushes it if the user is online.
func (s *NotificationService) Notify(ctx context.Context, userID uint, typ models.NotificationType, title, message string, data interface{}) (*models.Notification, error) {
	n := &models.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, errs.InvalidArgument("notification data is not serializable")
		}
		n.Data = datatypes.JSON(raw)
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if s.presence != nil && s.presence.IsOnline(userID) {
		s.push(ctx, []string{UserRoom(userID)}, Event{Type: EventNotification, Payload: n})
	}
	return n, nil
}

func (s *NotificationService) List(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultInboxLimit
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) (*models.Notification, error) {
	n, err := s.owned(ctx, userID, notificationID)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}
	if err := s.repo.MarkRead(ctx, notificationID); err != nil {
		return nil, err
	}
	now := time.Now()
	n.IsRead = true
	n.ReadAt = &now
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, userID, notificationID uint) error {
	if _, err := s.owned(ctx, userID, notificationID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, notificationID)
}

func (s *NotificationService) DeleteAll(ctx context.Context, userID uint) (int64, error) {
	return s.repo.DeleteAllForUser(ctx, userID)
}

func (s *NotificationService) owned(ctx context.Context, userID, notificationID uint) (*models.Notification, error) {
	n, err := s.repo.FindByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, errs.Forbidden("notification belongs to another user")
	}
	return n, nil
}

// onlineRooms returns the personal rooms of the listed users that are online.
func (s *NotificationService) onlineRooms(userIDs ...uint) []string {
	rooms := make([]string, 0, len(userIDs))
	seen := make(map[uint]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup || id == 0 {
			continue
		}
		seen[id] = struct{}{}
		if s.presence != nil && !s.presence.IsOnline(id) {
			continue
		}
		rooms = append(rooms, UserRoom(id))
	}
	return rooms
}

func (s *NotificationService) push(ctx context.Context, rooms []string, ev Event) {
	if s.pusher == nil || len(rooms) == 0 {
		return
	}
	if err := s.pusher.PushToRooms(rooms, ev); err != nil {
		slog.WarnContext(ctx, "realtime push failed", "type", ev.Type, "rooms", rooms, "err", err)
	}
}
