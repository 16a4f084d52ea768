package service

import (
	"context"

	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
	"github.com/Success-Framework/SFManagers-sub001/internal/models"
	"github.com/Success-Framework/SFManagers-sub001/internal/repository"
	"github.com/Success-Framework/SFManagers-sub001/internal/validation"
)

// MembershipService is the single authority on who may read, write, or join a
// room. Group rooms are gated by GroupChatMember rows only.
type MembershipService struct {
	groupRepo repository.GroupRepositoryInterface
	users     UserDirectory
}

func NewMembershipService(groupRepo repository.GroupRepositoryInterface, users UserDirectory) *MembershipService {
	return &MembershipService{groupRepo: groupRepo, users: users}
}

type CreateGroupInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MemberIDs   []uint `json:"member_ids"`
}

func (s *MembershipService) CanReadGroup(ctx context.Context, userID, groupID uint) (bool, error) {
	if userID == 0 || groupID == 0 {
		return false, nil
	}
	return s.groupRepo.IsMember(ctx, groupID, userID)
}

// CanWriteGroup uses the same predicate as CanReadGroup; there is no read-only role.
func (s *MembershipService) CanWriteGroup(ctx context.Context, userID, groupID uint) (bool, error) {
	return s.CanReadGroup(ctx, userID, groupID)
}

// CanAccessDirect is true for any two existing users.
func (s *MembershipService) CanAccessDirect(ctx context.Context, userID, otherID uint) (bool, error) {
	for _, id := range []uint{userID, otherID} {
		ok, err := s.users.Exists(ctx, id)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// RequireMember fails with Forbidden unless userID belongs to groupID. Lookup
// failures surface as Unavailable and never admit the caller.
func (s *MembershipService) RequireMember(ctx context.Context, userID, groupID uint) error {
	ok, err := s.CanReadGroup(ctx, userID, groupID)
	if err != nil {
		return errs.Unavailable("membership lookup failed", err)
	}
	if !ok {
		return errs.Forbidden("not a member of this group")
	}
	return nil
}

func (s *MembershipService) IsAdmin(ctx context.Context, userID, groupID uint) (bool, error) {
	member, err := s.groupRepo.GetMember(ctx, groupID, userID)
	if err != nil {
		if errs.Is(err, errs.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return member.IsAdmin, nil
}

func (s *MembershipService) requireAdmin(ctx context.Context, userID, groupID uint) error {
	if _, err := s.groupRepo.FindByID(ctx, groupID); err != nil {
		return err
	}
	admin, err := s.IsAdmin(ctx, userID, groupID)
	if err != nil {
		return err
	}
	if !admin {
		return errs.Forbidden("group admin required")
	}
	return nil
}

func (s *MembershipService) requireUsers(ctx context.Context, ids []uint) error {
	for _, id := range ids {
		ok, err := s.users.Exists(ctx, id)
		if err != nil {
			return errs.Unavailable("user lookup failed", err)
		}
		if !ok {
			return errs.NotFound("user not found")
		}
	}
	return nil
}

// CreateGroup creates the group with the creator as admin plus the listed
// members in one transaction. It returns the ids added besides the creator.
func (s *MembershipService) CreateGroup(ctx context.Context, creatorID uint, input CreateGroupInput) (*models.GroupChat, []uint, error) {
	name, err := validation.GroupName(input.Name)
	if err != nil {
		return nil, nil, err
	}
	memberIDs := validation.UniqueIDs(input.MemberIDs, creatorID)
	if err := s.requireUsers(ctx, memberIDs); err != nil {
		return nil, nil, err
	}

	group := &models.GroupChat{
		Name:        name,
		Description: validation.Description(input.Description),
		CreatedBy:   creatorID,
	}
	if err := s.groupRepo.CreateWithMembers(ctx, group, rosterFor(creatorID, memberIDs)); err != nil {
		return nil, nil, err
	}
	return group, memberIDs, nil
}

// ProjectChannel returns the team channel of a project, creating it on first
// access with the requester as admin. created reports whether it was created now.
func (s *MembershipService) ProjectChannel(ctx context.Context, requesterID, projectID uint, input CreateGroupInput) (*models.GroupChat, []uint, bool, error) {
	if projectID == 0 {
		return nil, nil, false, errs.InvalidArgument("project id is required")
	}

	group, err := s.groupRepo.FindByProjectID(ctx, projectID)
	if err == nil {
		if err := s.RequireMember(ctx, requesterID, group.ID); err != nil {
			return nil, nil, false, err
		}
		return group, nil, false, nil
	}
	if !errs.Is(err, errs.CodeNotFound) {
		return nil, nil, false, err
	}

	name := input.Name
	if name == "" {
		name = "Team channel"
	}
	name, err = validation.GroupName(name)
	if err != nil {
		return nil, nil, false, err
	}
	memberIDs := validation.UniqueIDs(input.MemberIDs, requesterID)
	if err := s.requireUsers(ctx, memberIDs); err != nil {
		return nil, nil, false, err
	}

	pid := projectID
	group = &models.GroupChat{
		Name:        name,
		Description: validation.Description(input.Description),
		CreatedBy:   requesterID,
		IsProject:   true,
		ProjectID:   &pid,
	}
	if err := s.groupRepo.CreateWithMembers(ctx, group, rosterFor(requesterID, memberIDs)); err != nil {
		if !errs.Is(err, errs.CodeConflict) {
			return nil, nil, false, err
		}
		// Lost a creation race; fall back to the winner's channel.
		existing, findErr := s.groupRepo.FindByProjectID(ctx, projectID)
		if findErr != nil {
			return nil, nil, false, findErr
		}
		if err := s.RequireMember(ctx, requesterID, existing.ID); err != nil {
			return nil, nil, false, err
		}
		return existing, nil, false, nil
	}
	return group, memberIDs, true, nil
}

// AddMember requires actorID to be an admin. Adding an existing member is a
// no-op reported as added=false.
func (s *MembershipService) AddMember(ctx context.Context, actorID, groupID, userID uint, isAdmin bool) (bool, error) {
	if err := s.requireAdmin(ctx, actorID, groupID); err != nil {
		return false, err
	}
	if err := s.requireUsers(ctx, []uint{userID}); err != nil {
		return false, err
	}

	added, err := s.groupRepo.AddMember(ctx, &models.GroupChatMember{
		GroupID: groupID,
		UserID:  userID,
		IsAdmin: isAdmin,
	})
	if errs.Is(err, errs.CodeConflict) {
		return false, nil
	}
	return added, err
}

// RemoveMember requires actorID to be an admin. Removing a non-member is a no-op.
func (s *MembershipService) RemoveMember(ctx context.Context, actorID, groupID, userID uint) (bool, error) {
	if err := s.requireAdmin(ctx, actorID, groupID); err != nil {
		return false, err
	}
	return s.groupRepo.RemoveMember(ctx, groupID, userID)
}

// Leave removes the caller's own membership.
func (s *MembershipService) Leave(ctx context.Context, userID, groupID uint) error {
	if err := s.RequireMember(ctx, userID, groupID); err != nil {
		return err
	}
	_, err := s.groupRepo.RemoveMember(ctx, groupID, userID)
	return err
}

func (s *MembershipService) SetAdmin(ctx context.Context, actorID, groupID, userID uint, isAdmin bool) error {
	if err := s.requireAdmin(ctx, actorID, groupID); err != nil {
		return err
	}
	return s.groupRepo.SetAdmin(ctx, groupID, userID, isAdmin)
}

func (s *MembershipService) Group(ctx context.Context, requesterID, groupID uint) (*models.GroupChat, error) {
	if err := s.RequireMember(ctx, requesterID, groupID); err != nil {
		return nil, err
	}
	return s.groupRepo.FindByID(ctx, groupID)
}

func (s *MembershipService) ListMembers(ctx context.Context, requesterID, groupID uint) ([]models.GroupChatMember, error) {
	if err := s.RequireMember(ctx, requesterID, groupID); err != nil {
		return nil, err
	}
	return s.groupRepo.ListMembers(ctx, groupID)
}

func (s *MembershipService) MemberIDs(ctx context.Context, groupID uint) ([]uint, error) {
	members, err := s.groupRepo.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func (s *MembershipService) ListUserGroups(ctx context.Context, userID uint) ([]models.GroupChat, error) {
	return s.groupRepo.ListUserGroups(ctx, userID)
}

func rosterFor(adminID uint, memberIDs []uint) []models.GroupChatMember {
	roster := make([]models.GroupChatMember, 0, len(memberIDs)+1)
	roster = append(roster, models.GroupChatMember{UserID: adminID, IsAdmin: true})
	for _, id := range memberIDs {
		roster = append(roster, models.GroupChatMember{UserID: id})
	}
	return roster
}
