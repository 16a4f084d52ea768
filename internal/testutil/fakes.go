package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
	"github.com/Success-Framework/SFManagers-sub001/internal/models"
	"github.com/Success-Framework/SFManagers-sub001/internal/repository"
)

var (
	_ repository.UserRepositoryInterface          = (*FakeUserRepository)(nil)
	_ repository.DirectMessageRepositoryInterface = (*FakeDirectMessageRepository)(nil)
	_ repository.GroupRepositoryInterface         = (*FakeGroupRepository)(nil)
	_ repository.GroupMessageRepositoryInterface  = (*FakeGroupMessageRepository)(nil)
	_ repository.NotificationRepositoryInterface  = (*FakeNotificationRepository)(nil)
)

// Fake repositories mirror the SQL semantics of the gorm repositories: soft
// deletes hide rows, unique keys surface as Conflict, missing rows as NotFound.
// Setting Err makes every call fail with it.

var clockBase = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// tick returns strictly increasing timestamps so ordering is deterministic.
func tick(seq uint) time.Time {
	return clockBase.Add(time.Duration(seq) * time.Millisecond)
}

type FakeUserRepository struct {
	mu    sync.Mutex
	users map[uint]*models.User
	Err   error
}

func NewFakeUserRepository(users ...*models.User) *FakeUserRepository {
	r := &FakeUserRepository{users: make(map[uint]*models.User)}
	for _, u := range users {
		r.Add(u)
	}
	return r
}

func (r *FakeUserRepository) Add(u *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

func (r *FakeUserRepository) FindByID(_ context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, errs.NotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func (r *FakeUserRepository) FindByIDs(_ context.Context, ids []uint) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []models.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *FakeUserRepository) Exists(_ context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	_, ok := r.users[id]
	return ok, nil
}

type FakeDirectMessageRepository struct {
	mu       sync.Mutex
	messages map[uint]*models.DirectMessage
	nextID   uint
	Err      error
}

func NewFakeDirectMessageRepository() *FakeDirectMessageRepository {
	return &FakeDirectMessageRepository{messages: make(map[uint]*models.DirectMessage), nextID: 1}
}

func (r *FakeDirectMessageRepository) Create(_ context.Context, msg *models.DirectMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	for _, m := range r.messages {
		if m.SenderID == msg.SenderID && m.ClientID == msg.ClientID {
			return errs.Conflict("message already exists")
		}
	}
	msg.ID = r.nextID
	msg.CreatedAt = tick(msg.ID)
	r.nextID++
	cp := *msg
	r.messages[msg.ID] = &cp
	return nil
}

func (r *FakeDirectMessageRepository) FindByID(_ context.Context, id uint) (*models.DirectMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	m, ok := r.messages[id]
	if !ok {
		return nil, errs.NotFound("message not found")
	}
	cp := *m
	return &cp, nil
}

func (r *FakeDirectMessageRepository) FindByClientID(_ context.Context, senderID uint, clientID string) (*models.DirectMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, m := range r.messages {
		if m.SenderID == senderID && m.ClientID == clientID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, errs.NotFound("message not found")
}

func (r *FakeDirectMessageRepository) FindConversation(_ context.Context, userID, otherID uint, afterID uint, limit int) ([]models.DirectMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []models.DirectMessage
	for _, m := range r.messages {
		pair := (m.SenderID == userID && m.ReceiverID == otherID) || (m.SenderID == otherID && m.ReceiverID == userID)
		if pair && m.ID > afterID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *FakeDirectMessageRepository) MarkRead(_ context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	m, ok := r.messages[id]
	if !ok || m.Read {
		return false, nil
	}
	now := time.Now()
	m.Read = true
	m.ReadAt = &now
	return true, nil
}

func (r *FakeDirectMessageRepository) MarkConversationRead(_ context.Context, readerID, peerID uint) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var ids []uint
	now := time.Now()
	for _, m := range r.messages {
		if m.ReceiverID == readerID && m.SenderID == peerID && !m.Read {
			m.Read = true
			m.ReadAt = &now
			ids = append(ids, m.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *FakeDirectMessageRepository) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.messages[id]; !ok {
		return errs.NotFound("message not found")
	}
	delete(r.messages, id)
	return nil
}

func (r *FakeDirectMessageRepository) CountUnread(_ context.Context, receiverID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	var n int64
	for _, m := range r.messages {
		if m.ReceiverID == receiverID && !m.Read {
			n++
		}
	}
	return n, nil
}

func (r *FakeDirectMessageRepository) CountUnreadFrom(_ context.Context, receiverID, senderID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	var n int64
	for _, m := range r.messages {
		if m.ReceiverID == receiverID && m.SenderID == senderID && !m.Read {
			n++
		}
	}
	return n, nil
}

type memberKey struct {
	groupID uint
	userID  uint
}

type FakeGroupRepository struct {
	mu      sync.Mutex
	groups  map[uint]*models.GroupChat
	members map[memberKey]*models.GroupChatMember
	nextID  uint
	seq     uint
	Err     error
}

func NewFakeGroupRepository() *FakeGroupRepository {
	return &FakeGroupRepository{
		groups:  make(map[uint]*models.GroupChat),
		members: make(map[memberKey]*models.GroupChatMember),
		nextID:  1,
	}
}

func (r *FakeGroupRepository) CreateWithMembers(_ context.Context, group *models.GroupChat, members []models.GroupChatMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if group.ProjectID != nil {
		for _, g := range r.groups {
			if g.ProjectID != nil && *g.ProjectID == *group.ProjectID {
				return errs.Conflict("group already exists")
			}
		}
	}
	group.ID = r.nextID
	r.nextID++
	r.seq++
	group.CreatedAt = tick(r.seq)
	group.UpdatedAt = group.CreatedAt
	cp := *group
	cp.Members = nil
	r.groups[group.ID] = &cp

	for i := range members {
		members[i].GroupID = group.ID
		r.insertMemberLocked(members[i])
	}
	return nil
}

func (r *FakeGroupRepository) insertMemberLocked(m models.GroupChatMember) bool {
	key := memberKey{m.GroupID, m.UserID}
	if _, ok := r.members[key]; ok {
		return false
	}
	r.seq++
	m.JoinedAt = tick(r.seq)
	r.members[key] = &m
	return true
}

func (r *FakeGroupRepository) FindByID(_ context.Context, id uint) (*models.GroupChat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	g, ok := r.groups[id]
	if !ok {
		return nil, errs.NotFound("group not found")
	}
	cp := *g
	return &cp, nil
}

func (r *FakeGroupRepository) FindByProjectID(_ context.Context, projectID uint) (*models.GroupChat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, g := range r.groups {
		if g.ProjectID != nil && *g.ProjectID == projectID {
			cp := *g
			return &cp, nil
		}
	}
	return nil, errs.NotFound("group not found")
}

func (r *FakeGroupRepository) AddMember(_ context.Context, member *models.GroupChatMember) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	return r.insertMemberLocked(*member), nil
}

func (r *FakeGroupRepository) RemoveMember(_ context.Context, groupID, userID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	key := memberKey{groupID, userID}
	if _, ok := r.members[key]; !ok {
		return false, nil
	}
	delete(r.members, key)
	return true, nil
}

func (r *FakeGroupRepository) SetAdmin(_ context.Context, groupID, userID uint, isAdmin bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	m, ok := r.members[memberKey{groupID, userID}]
	if !ok {
		return errs.NotFound("member not found")
	}
	m.IsAdmin = isAdmin
	return nil
}

func (r *FakeGroupRepository) GetMember(_ context.Context, groupID, userID uint) (*models.GroupChatMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	m, ok := r.members[memberKey{groupID, userID}]
	if !ok {
		return nil, errs.NotFound("member not found")
	}
	cp := *m
	return &cp, nil
}

func (r *FakeGroupRepository) IsMember(_ context.Context, groupID, userID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	_, ok := r.members[memberKey{groupID, userID}]
	return ok, nil
}

func (r *FakeGroupRepository) ListMembers(_ context.Context, groupID uint) ([]models.GroupChatMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []models.GroupChatMember
	for k, m := range r.members {
		if k.groupID == groupID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (r *FakeGroupRepository) ListUserGroups(_ context.Context, userID uint) ([]models.GroupChat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []models.GroupChat
	for k := range r.members {
		if k.userID == userID {
			if g, ok := r.groups[k.groupID]; ok {
				out = append(out, *g)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type FakeGroupMessageRepository struct {
	mu       sync.Mutex
	messages map[uint]*models.GroupMessage
	receipts map[uint]map[uint]time.Time
	nextID   uint
	Err      error
}

func NewFakeGroupMessageRepository() *FakeGroupMessageRepository {
	return &FakeGroupMessageRepository{
		messages: make(map[uint]*models.GroupMessage),
		receipts: make(map[uint]map[uint]time.Time),
		nextID:   1,
	}
}

func (r *FakeGroupMessageRepository) CreateWithSenderRead(_ context.Context, msg *models.GroupMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	for _, m := range r.messages {
		if m.SenderID == msg.SenderID && m.ClientID == msg.ClientID {
			return errs.Conflict("message already exists")
		}
	}
	msg.ID = r.nextID
	msg.CreatedAt = tick(msg.ID)
	r.nextID++
	cp := *msg
	r.messages[msg.ID] = &cp
	r.receipts[msg.ID] = map[uint]time.Time{msg.SenderID: msg.CreatedAt}
	return nil
}

func (r *FakeGroupMessageRepository) FindByID(_ context.Context, id uint) (*models.GroupMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	m, ok := r.messages[id]
	if !ok {
		return nil, errs.NotFound("message not found")
	}
	cp := *m
	return &cp, nil
}

func (r *FakeGroupMessageRepository) FindByClientID(_ context.Context, senderID uint, clientID string) (*models.GroupMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, m := range r.messages {
		if m.SenderID == senderID && m.ClientID == clientID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, errs.NotFound("message not found")
}

func (r *FakeGroupMessageRepository) FindAfter(_ context.Context, groupID uint, afterID uint, limit int) ([]models.GroupMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []models.GroupMessage
	for _, m := range r.messages {
		if m.GroupID == groupID && m.ID > afterID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *FakeGroupMessageRepository) MarkRead(_ context.Context, userID uint, messageIDs []uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	now := time.Now()
	for _, id := range messageIDs {
		if _, ok := r.messages[id]; !ok {
			continue
		}
		if r.receipts[id] == nil {
			r.receipts[id] = make(map[uint]time.Time)
		}
		if _, ok := r.receipts[id][userID]; !ok {
			r.receipts[id][userID] = now
		}
	}
	return nil
}

func (r *FakeGroupMessageRepository) CountUnread(ctx context.Context, userID, groupID uint) (int64, error) {
	counts, err := r.CountUnreadByGroup(ctx, userID, []uint{groupID})
	if err != nil {
		return 0, err
	}
	return counts[groupID], nil
}

func (r *FakeGroupMessageRepository) CountUnreadByGroup(_ context.Context, userID uint, groupIDs []uint) (map[uint]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	counts := make(map[uint]int64, len(groupIDs))
	wanted := make(map[uint]bool, len(groupIDs))
	for _, id := range groupIDs {
		counts[id] = 0
		wanted[id] = true
	}
	for _, m := range r.messages {
		if !wanted[m.GroupID] || m.SenderID == userID {
			continue
		}
		if _, read := r.receipts[m.ID][userID]; read {
			continue
		}
		counts[m.GroupID]++
	}
	return counts, nil
}

func (r *FakeGroupMessageRepository) ListReceipts(_ context.Context, messageID uint) ([]models.GroupMessageRead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []models.GroupMessageRead
	for userID, at := range r.receipts[messageID] {
		out = append(out, models.GroupMessageRead{MessageID: messageID, UserID: userID, ReadAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// HasReceipt reports whether userID holds a receipt for messageID.
func (r *FakeGroupMessageRepository) HasReceipt(messageID, userID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.receipts[messageID][userID]
	return ok
}

func (r *FakeGroupMessageRepository) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.messages[id]; !ok {
		return errs.NotFound("message not found")
	}
	delete(r.messages, id)
	return nil
}

type FakeNotificationRepository struct {
	mu            sync.Mutex
	notifications map[uint]*models.Notification
	nextID        uint
	Err           error
}

func NewFakeNotificationRepository() *FakeNotificationRepository {
	return &FakeNotificationRepository{notifications: make(map[uint]*models.Notification), nextID: 1}
}

func (r *FakeNotificationRepository) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	n.ID = r.nextID
	n.CreatedAt = tick(n.ID)
	n.UpdatedAt = n.CreatedAt
	r.nextID++
	cp := *n
	r.notifications[n.ID] = &cp
	return nil
}

func (r *FakeNotificationRepository) FindByID(_ context.Context, id uint) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	n, ok := r.notifications[id]
	if !ok {
		return nil, errs.NotFound("notification not found")
	}
	cp := *n
	return &cp, nil
}

func (r *FakeNotificationRepository) ListByUser(_ context.Context, userID uint, limit int) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []models.Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *FakeNotificationRepository) CountUnread(_ context.Context, userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	var count int64
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *FakeNotificationRepository) MarkRead(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if n, ok := r.notifications[id]; ok && !n.IsRead {
		now := time.Now()
		n.IsRead = true
		n.ReadAt = &now
	}
	return nil
}

func (r *FakeNotificationRepository) MarkAllRead(_ context.Context, userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	var changed int64
	now := time.Now()
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &now
			changed++
		}
	}
	return changed, nil
}

func (r *FakeNotificationRepository) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.notifications[id]; !ok {
		return errs.NotFound("notification not found")
	}
	delete(r.notifications, id)
	return nil
}

func (r *FakeNotificationRepository) DeleteAllForUser(_ context.Context, userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	var removed int64
	for id, n := range r.notifications {
		if n.UserID == userID {
			delete(r.notifications, id)
			removed++
		}
	}
	return removed, nil
}
