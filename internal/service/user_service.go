package service

import (
	"context"
	"log/slog"

	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
	"github.com/Success-Framework/SFManagers-sub001/internal/models"
	"github.com/Success-Framework/SFManagers-sub001/internal/repository"
)

// UserDirectory is the read side of the externally owned user table.
type UserDirectory interface {
	Exists(ctx context.Context, userID uint) (bool, error)
	DisplayName(ctx context.Context, userID uint) (string, error)
	Summary(ctx context.Context, userID uint) (models.UserSummary, error)
	Summaries(ctx context.Context, userIDs []uint) (map[uint]models.UserSummary, error)
}

// AvatarURLResolver turns a stored avatar reference into a fetchable URL.
type AvatarURLResolver interface {
	AvatarURL(ctx context.Context, stored string) string
}

type UserService struct {
	userRepo repository.UserRepositoryInterface
	avatars  AvatarURLResolver
}

// NewUserService accepts a nil resolver; avatars are then passed through as stored.
func NewUserService(userRepo repository.UserRepositoryInterface, avatars AvatarURLResolver) *UserService {
	return &UserService{userRepo: userRepo, avatars: avatars}
}

func (s *UserService) Exists(ctx context.Context, userID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	return s.userRepo.Exists(ctx, userID)
}

func (s *UserService) DisplayName(ctx context.Context, userID uint) (string, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.DisplayName(), nil
}

func (s *UserService) Summary(ctx context.Context, userID uint) (models.UserSummary, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return models.UserSummary{}, err
	}
	return s.toSummary(ctx, user), nil
}

// Summaries silently omits ids that do not resolve to a user.
func (s *UserService) Summaries(ctx context.Context, userIDs []uint) (map[uint]models.UserSummary, error) {
	users, err := s.userRepo.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[uint]models.UserSummary, len(users))
	for i := range users {
		out[users[i].ID] = s.toSummary(ctx, &users[i])
	}
	return out, nil
}

func (s *UserService) toSummary(ctx context.Context, user *models.User) models.UserSummary {
	summary := user.ToSummary()
	if s.avatars != nil {
		summary.AvatarURL = s.avatars.AvatarURL(ctx, user.Avatar)
	}
	return summary
}

// summaryOrFallback never fails: payload enrichment must not block delivery.
func summaryOrFallback(ctx context.Context, users UserDirectory, userID uint) models.UserSummary {
	summary, err := users.Summary(ctx, userID)
	if err != nil {
		if !errs.Is(err, errs.CodeNotFound) {
			slog.WarnContext(ctx, "user summary lookup failed", "user_id", userID, "err", err)
		}
		return models.UserSummary{ID: userID}
	}
	return summary
}
