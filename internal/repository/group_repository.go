package repository

import (
	"context"

	"github.com/Success-Framework/SFManagers-sub001/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) CreateWithMembers(ctx context.Context, group *models.GroupChat, members []models.GroupChatMember) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Members").Create(group).Error; err != nil {
			return err
		}
		if len(members) == 0 {
			return nil
		}
		for i := range members {
			members[i].GroupID = group.ID
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error
	})
	return translate(err, "group")
}

func (r *GroupRepository) FindByID(ctx context.Context, id uint) (*models.GroupChat, error) {
	var group models.GroupChat
	if err := r.db.WithContext(ctx).First(&group, id).Error; err != nil {
		return nil, translate(err, "group")
	}
	return &group, nil
}

func (r *GroupRepository) FindByProjectID(ctx context.Context, projectID uint) (*models.GroupChat, error) {
	var group models.GroupChat
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).First(&group).Error; err != nil {
		return nil, translate(err, "group")
	}
	return &group, nil
}

func (r *GroupRepository) AddMember(ctx context.Context, member *models.GroupChatMember) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(member)
	if res.Error != nil {
		return false, translate(res.Error, "member")
	}
	return res.RowsAffected > 0, nil
}

func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupChatMember{})
	if res.Error != nil {
		return false, translate(res.Error, "member")
	}
	return res.RowsAffected > 0, nil
}

func (r *GroupRepository) SetAdmin(ctx context.Context, groupID, userID uint, isAdmin bool) error {
	res := r.db.WithContext(ctx).Model(&models.GroupChatMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Update("is_admin", isAdmin)
	if res.Error != nil {
		return translate(res.Error, "member")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "member")
	}
	return nil
}

func (r *GroupRepository) GetMember(ctx context.Context, groupID, userID uint) (*models.GroupChatMember, error) {
	var member models.GroupChatMember
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&member).Error
	if err != nil {
		return nil, translate(err, "member")
	}
	return &member, nil
}

func (r *GroupRepository) IsMember(ctx context.Context, groupID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GroupChatMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "member")
	}
	return count > 0, nil
}

func (r *GroupRepository) ListMembers(ctx context.Context, groupID uint) ([]models.GroupChatMember, error) {
	var members []models.GroupChatMember
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("joined_at ASC, user_id ASC").
		Find(&members).Error
	if err != nil {
		return nil, translate(err, "member")
	}
	return members, nil
}

func (r *GroupRepository) ListUserGroups(ctx context.Context, userID uint) ([]models.GroupChat, error) {
	var groups []models.GroupChat
	err := r.db.WithContext(ctx).
		Joins("JOIN group_chat_members ON group_chat_members.group_id = group_chats.id").
		Where("group_chat_members.user_id = ?", userID).
		Order("group_chats.updated_at DESC").
		Find(&groups).Error
	if err != nil {
		return nil, translate(err, "group")
	}
	return groups, nil
}
