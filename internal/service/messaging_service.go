package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
	"github.com/Success-Framework/SFManagers-sub001/internal/models"
)

// MessagingService runs every control flow in the same order: authority check,
// store commit, then fan-out. Fan-out never fails the operation.
type MessagingService struct {
	store     *MessageStore
	authority *MembershipService
	fanout    *NotificationService
	users     UserDirectory
	evictor   RoomEvictor
	locks     *roomLocks
}

func NewMessagingService(
	store *MessageStore,
	authority *MembershipService,
	fanout *NotificationService,
	users UserDirectory,
	evictor RoomEvictor,
) *MessagingService {
	return &MessagingService{
		store:     store,
		authority: authority,
		fanout:    fanout,
		users:     users,
		evictor:   evictor,
		locks:     newRoomLocks(),
	}
}

type SendDirectInput struct {
	ReceiverID uint   `json:"receiver_id"`
	Content    string `json:"content"`
	ClientID   string `json:"client_id"`
}

type SendGroupInput struct {
	Content  string `json:"content"`
	ClientID string `json:"client_id"`
}

// GroupSummary is a group as listed for one user.
type GroupSummary struct {
	models.GroupChat
	IsAdmin     bool  `json:"is_admin"`
	UnreadCount int64 `json:"unread_count"`
}

type MemberView struct {
	UserID   uint               `json:"user_id"`
	IsAdmin  bool               `json:"is_admin"`
	JoinedAt time.Time          `json:"joined_at"`
	User     models.UserSummary `json:"user"`
}

func (s *MessagingService) SendDirect(ctx context.Context, senderID uint, input SendDirectInput) (*DirectMessagePayload, error) {
	unlock := s.locks.lock(directRoomKey(senderID, input.ReceiverID))
	defer unlock()

	msg, created, err := s.store.SendDirect(ctx, senderID, input.ReceiverID, input.Content, input.ClientID)
	if err != nil {
		return nil, err
	}

	payload := NewDirectMessagePayload(msg, summaryOrFallback(ctx, s.users, senderID))
	if created {
		s.fanout.PublishDirectMessage(ctx, payload)
	}
	return &payload, nil
}

func (s *MessagingService) SendGroup(ctx context.Context, senderID, groupID uint, input SendGroupInput) (*GroupMessagePayload, error) {
	if err := s.authority.RequireMember(ctx, senderID, groupID); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(GroupRoom(groupID))
	defer unlock()

	msg, created, err := s.store.SendGroup(ctx, senderID, groupID, input.Content, input.ClientID)
	if err != nil {
		return nil, err
	}

	payload := NewGroupMessagePayload(msg, summaryOrFallback(ctx, s.users, senderID))
	if !created {
		return &payload, nil
	}

	memberIDs, err := s.authority.MemberIDs(ctx, groupID)
	if err != nil {
		// Message is committed; the group room still receives it.
		slog.WarnContext(ctx, "member lookup for fan-out failed", "group_id", groupID, "err", err)
	}
	s.store.ForgetGroupUnread(ctx, groupID, memberIDs...)
	s.fanout.PublishGroupMessage(ctx, payload, memberIDs)
	return &payload, nil
}

func (s *MessagingService) FetchDirect(ctx context.Context, userID, otherID uint, afterID uint, limit int) ([]models.DirectMessage, error) {
	ok, err := s.authority.CanAccessDirect(ctx, userID, otherID)
	if err != nil {
		return nil, errs.Unavailable("user lookup failed", err)
	}
	if !ok {
		return nil, errs.NotFound("user not found")
	}
	return s.store.FetchDirect(ctx, userID, otherID, afterID, limit)
}

func (s *MessagingService) FetchGroup(ctx context.Context, userID, groupID uint, afterID uint, limit int) ([]models.GroupMessage, error) {
	if err := s.authority.RequireMember(ctx, userID, groupID); err != nil {
		return nil, err
	}
	return s.store.FetchGroup(ctx, userID, groupID, afterID, limit)
}

// MarkDirectRead emits message-read only when the flag actually flipped.
func (s *MessagingService) MarkDirectRead(ctx context.Context, readerID, messageID uint) (*models.DirectMessage, error) {
	msg, changed, err := s.store.MarkDirectRead(ctx, messageID, readerID)
	if err != nil {
		return nil, err
	}
	if changed {
		s.fanout.PublishRead(ctx, MessageReadPayload{
			MessageIDs: []uint{msg.ID},
			ReaderID:   readerID,
			SenderID:   msg.SenderID,
			ReadAt:     time.Now(),
		})
	}
	return msg, nil
}

func (s *MessagingService) MarkConversationRead(ctx context.Context, readerID, peerID uint) (int, error) {
	ids, err := s.store.MarkConversationRead(ctx, readerID, peerID)
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		s.fanout.PublishRead(ctx, MessageReadPayload{
			MessageIDs: ids,
			ReaderID:   readerID,
			SenderID:   peerID,
			ReadAt:     time.Now(),
		})
	}
	return len(ids), nil
}

func (s *MessagingService) DeleteDirect(ctx context.Context, requesterID, messageID uint) error {
	msg, err := s.store.DeleteDirect(ctx, messageID, requesterID)
	if err != nil {
		return err
	}
	s.fanout.PublishDirectDeleted(ctx, MessageDeletedPayload{
		MessageID: msg.ID,
		DeletedBy: requesterID,
	}, msg.SenderID, msg.ReceiverID)
	return nil
}

// DeleteGroupMessage is allowed for the sender or a group admin.
func (s *MessagingService) DeleteGroupMessage(ctx context.Context, requesterID, groupID, messageID uint) error {
	if err := s.authority.RequireMember(ctx, requesterID, groupID); err != nil {
		return err
	}
	msg, err := s.store.GroupMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.GroupID != groupID {
		return errs.NotFound("message not found")
	}
	if msg.SenderID != requesterID {
		admin, err := s.authority.IsAdmin(ctx, requesterID, groupID)
		if err != nil {
			return err
		}
		if !admin {
			return errs.Forbidden("only the sender or a group admin can delete this message")
		}
	}

	if err := s.store.DeleteGroupMessage(ctx, messageID); err != nil {
		return err
	}
	if memberIDs, err := s.authority.MemberIDs(ctx, groupID); err == nil {
		s.store.ForgetGroupUnread(ctx, groupID, memberIDs...)
	}
	gid := groupID
	s.fanout.PublishGroupDeleted(ctx, MessageDeletedPayload{
		MessageID: messageID,
		GroupID:   &gid,
		DeletedBy: requesterID,
	})
	return nil
}

func (s *MessagingService) UnreadDirect(ctx context.Context, userID uint) (int64, error) {
	return s.store.UnreadCountDirect(ctx, userID)
}

func (s *MessagingService) UnreadDirectFrom(ctx context.Context, userID, peerID uint) (int64, error) {
	return s.store.UnreadCountDirectFrom(ctx, userID, peerID)
}

func (s *MessagingService) UnreadGroup(ctx context.Context, userID, groupID uint) (int64, error) {
	if err := s.authority.RequireMember(ctx, userID, groupID); err != nil {
		return 0, err
	}
	return s.store.UnreadCountGroup(ctx, userID, groupID)
}

// ListGroups returns the caller's groups with unread counts from the same
// definition UnreadGroup uses.
func (s *MessagingService) ListGroups(ctx context.Context, userID uint) ([]GroupSummary, error) {
	groups, err := s.authority.ListUserGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	counts, err := s.store.UnreadCountsByGroup(ctx, userID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		admin, err := s.authority.IsAdmin(ctx, userID, g.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, GroupSummary{GroupChat: g, IsAdmin: admin, UnreadCount: counts[g.ID]})
	}
	return out, nil
}

func (s *MessagingService) CreateGroup(ctx context.Context, creatorID uint, input CreateGroupInput) (*models.GroupChat, error) {
	group, added, err := s.authority.CreateGroup(ctx, creatorID, input)
	if err != nil {
		return nil, err
	}
	s.notifyAdded(ctx, group, added)
	return group, nil
}

func (s *MessagingService) ProjectChannel(ctx context.Context, requesterID, projectID uint, input CreateGroupInput) (*models.GroupChat, bool, error) {
	group, added, created, err := s.authority.ProjectChannel(ctx, requesterID, projectID, input)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.notifyAdded(ctx, group, added)
	}
	return group, created, nil
}

func (s *MessagingService) AddMember(ctx context.Context, actorID, groupID, userID uint, isAdmin bool) (bool, error) {
	added, err := s.authority.AddMember(ctx, actorID, groupID, userID, isAdmin)
	if err != nil || !added {
		return added, err
	}
	s.store.ForgetGroupUnread(ctx, groupID, userID)
	if group, err := s.authority.Group(ctx, actorID, groupID); err == nil {
		s.notifyAdded(ctx, group, []uint{userID})
	}
	return true, nil
}

// RemoveMember also drops the user's live connections from the group room.
func (s *MessagingService) RemoveMember(ctx context.Context, actorID, groupID, userID uint) (bool, error) {
	removed, err := s.authority.RemoveMember(ctx, actorID, groupID, userID)
	if err != nil || !removed {
		return removed, err
	}
	s.evict(userID, groupID)
	s.store.ForgetGroupUnread(ctx, groupID, userID)

	name := s.groupName(ctx, actorID, groupID)
	s.notify(ctx, userID, models.NotificationGroupRemoved,
		"Removed from group",
		fmt.Sprintf("You were removed from %s", name),
		map[string]interface{}{"group_id": groupID, "group_name": name, "actor_id": actorID})
	return true, nil
}

func (s *MessagingService) Leave(ctx context.Context, userID, groupID uint) error {
	if err := s.authority.Leave(ctx, userID, groupID); err != nil {
		return err
	}
	s.evict(userID, groupID)
	s.store.ForgetGroupUnread(ctx, groupID, userID)
	return nil
}

func (s *MessagingService) SetAdmin(ctx context.Context, actorID, groupID, userID uint, isAdmin bool) error {
	if err := s.authority.SetAdmin(ctx, actorID, groupID, userID, isAdmin); err != nil {
		return err
	}
	role := "member"
	if isAdmin {
		role = "admin"
	}
	name := s.groupName(ctx, actorID, groupID)
	s.notify(ctx, userID, models.NotificationGroupRoleChanged,
		"Group role changed",
		fmt.Sprintf("You are now %s of %s", role, name),
		map[string]interface{}{"group_id": groupID, "group_name": name, "role": role, "actor_id": actorID})
	return nil
}

func (s *MessagingService) ListMembers(ctx context.Context, requesterID, groupID uint) ([]MemberView, error) {
	members, err := s.authority.ListMembers(ctx, requesterID, groupID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	summaries, err := s.users.Summaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]MemberView, 0, len(members))
	for _, m := range members {
		summary, ok := summaries[m.UserID]
		if !ok {
			summary = models.UserSummary{ID: m.UserID}
		}
		out = append(out, MemberView{UserID: m.UserID, IsAdmin: m.IsAdmin, JoinedAt: m.JoinedAt, User: summary})
	}
	return out, nil
}

func (s *MessagingService) GroupReceipts(ctx context.Context, requesterID, groupID, messageID uint) ([]models.GroupMessageRead, error) {
	if err := s.authority.RequireMember(ctx, requesterID, groupID); err != nil {
		return nil, err
	}
	msg, err := s.store.GroupMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.GroupID != groupID {
		return nil, errs.NotFound("message not found")
	}
	return s.store.GroupReceipts(ctx, messageID)
}

func (s *MessagingService) notifyAdded(ctx context.Context, group *models.GroupChat, userIDs []uint) {
	for _, id := range userIDs {
		s.notify(ctx, id, models.NotificationGroupAdded,
			"Added to group",
			fmt.Sprintf("You were added to %s", group.Name),
			map[string]interface{}{"group_id": group.ID, "group_name": group.Name, "is_project": group.IsProject})
	}
}

// notify logs failures: membership has already changed and must not be undone.
func (s *MessagingService) notify(ctx context.Context, userID uint, typ models.NotificationType, title, message string, data map[string]interface{}) {
	if _, err := s.fanout.Notify(ctx, userID, typ, title, message, data); err != nil {
		slog.WarnContext(ctx, "notification persist failed", "user_id", userID, "type", typ, "err", err)
	}
}

func (s *MessagingService) evict(userID, groupID uint) {
	if s.evictor != nil {
		s.evictor.EvictFromRoom(userID, GroupRoom(groupID))
	}
}

func (s *MessagingService) groupName(ctx context.Context, actorID, groupID uint) string {
	if group, err := s.authority.Group(ctx, actorID, groupID); err == nil {
		return group.Name
	}
	return fmt.Sprintf("group #%d", groupID)
}

// Authority exposes the membership checks to the realtime gateway.
func (s *MessagingService) Authority() *MembershipService {
	return s.authority
}
