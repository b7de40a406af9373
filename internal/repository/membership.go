package repository

import (
	"context"
	"errors"
	"time"

	"membership-sync/internal/model"

	"gorm.io/gorm"
)

// MembershipRepository is the grant primitive of the membership system.
// SetLevel and ClearLevel are idempotent at their target state.
type MembershipRepository interface {
	CurrentLevel(ctx context.Context, userID string) (*model.MembershipLevel, error)
	SetLevel(ctx context.Context, userID string, levelID uint) error
	ClearLevel(ctx context.Context, userID string) error
}

type membershipRepoImpl struct {
	db  *gorm.DB
	now func() time.Time
}

func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepoImpl{
		db:  db,
		now: time.Now,
	}
}

func (r *membershipRepoImpl) CurrentLevel(ctx context.Context, userID string) (*model.MembershipLevel, error) {
	var level model.MembershipLevel
	err := r.db.WithContext(ctx).
		Joins("JOIN user_memberships ON user_memberships.level_id = membership_levels.id").
		Where("user_memberships.user_id = ? AND user_memberships.status = ?", userID, model.MembershipActive).
		Order("user_memberships.id DESC").
		First(&level).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &level, nil
}

func (r *membershipRepoImpl) SetLevel(ctx context.Context, userID string, levelID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&model.MembershipLevel{}).Where("id = ?", levelID).Count(&count).Error
		if err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}

		var current []*model.UserMembership
		err = tx.Where("user_id = ? AND status = ?", userID, model.MembershipActive).
			Find(&current).Error
		if err != nil {
			return err
		}
		if len(current) == 1 && current[0].LevelID == levelID {
			return nil
		}

		now := r.now()
		if err := r.deactivate(tx, userID, now); err != nil {
			return err
		}

		return tx.Create(&model.UserMembership{
			UserID:    userID,
			LevelID:   levelID,
			Status:    model.MembershipActive,
			StartDate: now,
		}).Error
	})
}

func (r *membershipRepoImpl) ClearLevel(ctx context.Context, userID string) error {
	return r.deactivate(r.db.WithContext(ctx), userID, r.now())
}

func (r *membershipRepoImpl) deactivate(tx *gorm.DB, userID string, at time.Time) error {
	return tx.Model(&model.UserMembership{}).
		Where("user_id = ? AND status = ?", userID, model.MembershipActive).
		Updates(map[string]interface{}{
			"status":     model.MembershipInactive,
			"end_date":   at,
			"updated_at": at,
		}).Error
}
