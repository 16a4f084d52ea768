package service

import (
	"context"
	"log/slog"

	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
	"github.com/Success-Framework/SFManagers-sub001/internal/models"
	"github.com/Success-Framework/SFManagers-sub001/internal/repository"
	"github.com/Success-Framework/SFManagers-sub001/internal/validation"
	"github.com/google/uuid"
)

const maxPageSize = 500

// UnreadCache memoizes unread counters. Implementations must tolerate being
// unreachable: a miss is always safe. Get reports the counter's version even
// on a miss; Set must drop the write when an invalidation has bumped that
// version since, so a count read before a concurrent write never lands.
type UnreadCache interface {
	GetDirectUnread(ctx context.Context, userID uint) (count int64, version uint64, ok bool)
	SetDirectUnread(ctx context.Context, userID uint, count int64, version uint64) error
	InvalidateDirectUnread(ctx context.Context, userIDs ...uint) error
	GetGroupUnread(ctx context.Context, userID, groupID uint) (count int64, version uint64, ok bool)
	SetGroupUnread(ctx context.Context, userID, groupID uint, count int64, version uint64) error
	GroupUnreadVersions(ctx context.Context, userID uint, groupIDs []uint) map[uint]uint64
	InvalidateGroupUnread(ctx context.Context, groupID uint, userIDs ...uint) error
}

// MessageStore owns direct and group messages and their read state. It does
// not check group membership; callers go through the membership authority first.
type MessageStore struct {
	directRepo       repository.DirectMessageRepositoryInterface
	groupMsgRepo     repository.GroupMessageRepositoryInterface
	users            UserDirectory
	cache            UnreadCache
	maxMessageLength int
}

func NewMessageStore(
	directRepo repository.DirectMessageRepositoryInterface,
	groupMsgRepo repository.GroupMessageRepositoryInterface,
	users UserDirectory,
	cache UnreadCache,
	maxMessageLength int,
) *MessageStore {
	if cache == nil {
		cache = noopUnreadCache{}
	}
	return &MessageStore{
		directRepo:       directRepo,
		groupMsgRepo:     groupMsgRepo,
		users:            users,
		cache:            cache,
		maxMessageLength: maxMessageLength,
	}
}

// SendDirect stores a direct message. A repeated (sender, clientID) returns the
// stored message with created=false; reusing it for another receiver is rejected.
func (s *MessageStore) SendDirect(ctx context.Context, senderID, receiverID uint, content, clientID string) (*models.DirectMessage, bool, error) {
	content, err := validation.MessageContent(content, s.maxMessageLength)
	if err != nil {
		return nil, false, err
	}
	clientID, err = validation.ClientID(clientID)
	if err != nil {
		return nil, false, err
	}
	if receiverID == 0 {
		return nil, false, errs.InvalidArgument("receiver_id is required")
	}
	if receiverID == senderID {
		return nil, false, errs.InvalidArgument("cannot send a direct message to yourself")
	}

	exists, err := s.users.Exists(ctx, receiverID)
	if err != nil {
		return nil, false, errs.Unavailable("user lookup failed", err)
	}
	if !exists {
		return nil, false, errs.NotFound("receiver not found")
	}

	if clientID != "" {
		if existing, err := s.directRepo.FindByClientID(ctx, senderID, clientID); err == nil {
			return replayDirect(existing, receiverID)
		} else if !errs.Is(err, errs.CodeNotFound) {
			return nil, false, err
		}
	} else {
		clientID = uuid.NewString()
	}

	msg := &models.DirectMessage{
		ClientID:   clientID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	}
	if err := s.directRepo.Create(ctx, msg); err != nil {
		if errs.Is(err, errs.CodeConflict) {
			existing, findErr := s.directRepo.FindByClientID(ctx, senderID, clientID)
			if findErr != nil {
				return nil, false, findErr
			}
			return replayDirect(existing, receiverID)
		}
		return nil, false, err
	}

	s.forgetDirect(ctx, receiverID)
	return msg, true, nil
}

// SendGroup stores a group message together with the sender's receipt.
func (s *MessageStore) SendGroup(ctx context.Context, senderID, groupID uint, content, clientID string) (*models.GroupMessage, bool, error) {
	content, err := validation.MessageContent(content, s.maxMessageLength)
	if err != nil {
		return nil, false, err
	}
	clientID, err = validation.ClientID(clientID)
	if err != nil {
		return nil, false, err
	}
	if groupID == 0 {
		return nil, false, errs.InvalidArgument("group_id is required")
	}

	if clientID != "" {
		if existing, err := s.groupMsgRepo.FindByClientID(ctx, senderID, clientID); err == nil {
			return replayGroup(existing, groupID)
		} else if !errs.Is(err, errs.CodeNotFound) {
			return nil, false, err
		}
	} else {
		clientID = uuid.NewString()
	}

	msg := &models.GroupMessage{
		GroupID:  groupID,
		SenderID: senderID,
		ClientID: clientID,
		Content:  content,
	}
	if err := s.groupMsgRepo.CreateWithSenderRead(ctx, msg); err != nil {
		if errs.Is(err, errs.CodeConflict) {
			existing, findErr := s.groupMsgRepo.FindByClientID(ctx, senderID, clientID)
			if findErr != nil {
				return nil, false, findErr
			}
			return replayGroup(existing, groupID)
		}
		return nil, false, err
	}
	return msg, true, nil
}

// FetchDirect returns the conversation between userID and otherID in commit
// order. It does not change read state.
func (s *MessageStore) FetchDirect(ctx context.Context, userID, otherID uint, afterID uint, limit int) ([]models.DirectMessage, error) {
	return s.directRepo.FindConversation(ctx, userID, otherID, afterID, clampLimit(limit))
}

// FetchGroup returns group messages after the cursor and records a receipt for
// userID on every returned message.
func (s *MessageStore) FetchGroup(ctx context.Context, userID, groupID uint, afterID uint, limit int) ([]models.GroupMessage, error) {
	messages, err := s.groupMsgRepo.FindAfter(ctx, groupID, afterID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return messages, nil
	}

	ids := make([]uint, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	if err := s.groupMsgRepo.MarkRead(ctx, userID, ids); err != nil {
		return nil, err
	}
	s.ForgetGroupUnread(ctx, groupID, userID)
	return messages, nil
}

func (s *MessageStore) UnreadCountDirect(ctx context.Context, userID uint) (int64, error) {
	count, version, ok := s.cache.GetDirectUnread(ctx, userID)
	if ok {
		return count, nil
	}
	count, err := s.directRepo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := s.cache.SetDirectUnread(ctx, userID, count, version); err != nil {
		slog.DebugContext(ctx, "unread cache write failed", "user_id", userID, "err", err)
	}
	return count, nil
}

func (s *MessageStore) UnreadCountDirectFrom(ctx context.Context, userID, peerID uint) (int64, error) {
	return s.directRepo.CountUnreadFrom(ctx, userID, peerID)
}

func (s *MessageStore) UnreadCountGroup(ctx context.Context, userID, groupID uint) (int64, error) {
	count, version, ok := s.cache.GetGroupUnread(ctx, userID, groupID)
	if ok {
		return count, nil
	}
	count, err := s.groupMsgRepo.CountUnread(ctx, userID, groupID)
	if err != nil {
		return 0, err
	}
	if err := s.cache.SetGroupUnread(ctx, userID, groupID, count, version); err != nil {
		slog.DebugContext(ctx, "unread cache write failed", "user_id", userID, "group_id", groupID, "err", err)
	}
	return count, nil
}

// UnreadCountsByGroup uses the same definition as UnreadCountGroup in one query.
func (s *MessageStore) UnreadCountsByGroup(ctx context.Context, userID uint, groupIDs []uint) (map[uint]int64, error) {
	versions := s.cache.GroupUnreadVersions(ctx, userID, groupIDs)
	counts, err := s.groupMsgRepo.CountUnreadByGroup(ctx, userID, groupIDs)
	if err != nil {
		return nil, err
	}
	for groupID, count := range counts {
		if err := s.cache.SetGroupUnread(ctx, userID, groupID, count, versions[groupID]); err != nil {
			slog.DebugContext(ctx, "unread cache write failed", "user_id", userID, "group_id", groupID, "err", err)
		}
	}
	return counts, nil
}

// MarkDirectRead flips the read flag once. changed is false when the message
// was already read.
func (s *MessageStore) MarkDirectRead(ctx context.Context, messageID, readerID uint) (*models.DirectMessage, bool, error) {
	msg, err := s.directRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	if msg.ReceiverID != readerID {
		return nil, false, errs.Forbidden("only the receiver can mark a message as read")
	}
	if msg.Read {
		return msg, false, nil
	}

	changed, err := s.directRepo.MarkRead(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	msg.Read = true
	s.forgetDirect(ctx, readerID)
	return msg, changed, nil
}

// MarkConversationRead marks everything peerID sent to readerID as read and
// returns the ids that changed.
func (s *MessageStore) MarkConversationRead(ctx context.Context, readerID, peerID uint) ([]uint, error) {
	ids, err := s.directRepo.MarkConversationRead(ctx, readerID, peerID)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		s.forgetDirect(ctx, readerID)
	}
	return ids, nil
}

func (s *MessageStore) DeleteDirect(ctx context.Context, messageID, requesterID uint) (*models.DirectMessage, error) {
	msg, err := s.directRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.IsParticipant(requesterID) {
		return nil, errs.Forbidden("only participants can delete a direct message")
	}
	if err := s.directRepo.Delete(ctx, messageID); err != nil {
		return nil, err
	}
	if !msg.Read {
		s.forgetDirect(ctx, msg.ReceiverID)
	}
	return msg, nil
}

func (s *MessageStore) GroupMessage(ctx context.Context, messageID uint) (*models.GroupMessage, error) {
	return s.groupMsgRepo.FindByID(ctx, messageID)
}

// DeleteGroupMessage removes the message; permission checks belong to the caller.
func (s *MessageStore) DeleteGroupMessage(ctx context.Context, messageID uint) error {
	return s.groupMsgRepo.Delete(ctx, messageID)
}

func (s *MessageStore) GroupReceipts(ctx context.Context, messageID uint) ([]models.GroupMessageRead, error) {
	return s.groupMsgRepo.ListReceipts(ctx, messageID)
}

// ForgetGroupUnread drops cached group counters after any write that may move them.
func (s *MessageStore) ForgetGroupUnread(ctx context.Context, groupID uint, userIDs ...uint) {
	if len(userIDs) == 0 {
		return
	}
	if err := s.cache.InvalidateGroupUnread(ctx, groupID, userIDs...); err != nil {
		slog.WarnContext(ctx, "unread cache invalidation failed", "group_id", groupID, "err", err)
	}
}

func (s *MessageStore) forgetDirect(ctx context.Context, userIDs ...uint) {
	if err := s.cache.InvalidateDirectUnread(ctx, userIDs...); err != nil {
		slog.WarnContext(ctx, "unread cache invalidation failed", "users", userIDs, "err", err)
	}
}

// replayDirect returns a stored message for a retried send, provided the retry
// targets the same conversation.
func replayDirect(existing *models.DirectMessage, receiverID uint) (*models.DirectMessage, bool, error) {
	if existing.ReceiverID != receiverID {
		return nil, false, errs.InvalidArgument("client_id was already used for another receiver")
	}
	return existing, false, nil
}

func replayGroup(existing *models.GroupMessage, groupID uint) (*models.GroupMessage, bool, error) {
	if existing.GroupID != groupID {
		return nil, false, errs.InvalidArgument("client_id was already used for another group")
	}
	return existing, false, nil
}

// clampLimit keeps 0 as "everything after the cursor" and caps explicit pages.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 0
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

type noopUnreadCache struct{}

func (noopUnreadCache) GetDirectUnread(context.Context, uint) (int64, uint64, bool)      { return 0, 0, false }
func (noopUnreadCache) SetDirectUnread(context.Context, uint, int64, uint64) error       { return nil }
func (noopUnreadCache) InvalidateDirectUnread(context.Context, ...uint) error            { return nil }
func (noopUnreadCache) GetGroupUnread(context.Context, uint, uint) (int64, uint64, bool) { return 0, 0, false }
func (noopUnreadCache) SetGroupUnread(context.Context, uint, uint, int64, uint64) error  { return nil }
func (noopUnreadCache) InvalidateGroupUnread(context.Context, uint, ...uint) error       { return nil }

func (noopUnreadCache) GroupUnreadVersions(context.Context, uint, []uint) map[uint]uint64 {
	return nil
}
