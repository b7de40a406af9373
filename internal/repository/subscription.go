package repository

import (
	"context"
	"time"

	"membership-sync/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SubscriptionRepository interface {
	CreateSubscription(ctx context.Context, sub *model.Subscription) error
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*model.Subscription, error)
	UpdateStatus(ctx context.Context, subscriptionID string, status model.SubscriptionStatus) error
	// Relink activates an existing subscription for a new checkout.
	Relink(ctx context.Context, subscriptionID, parentOrderID string, metadata datatypes.JSONMap) error
}

type subscriptionRepoImpl struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepoImpl{
		db: db,
	}
}

func (r *subscriptionRepoImpl) CreateSubscription(ctx context.Context, sub *model.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *subscriptionRepoImpl) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		First(&sub).
		Error

	if err != nil {
		return nil, err
	}

	return &sub, nil
}

func (r *subscriptionRepoImpl) ListByCustomer(ctx context.Context, customerID string) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&subs).
		Error

	if err != nil {
		return nil, err
	}

	return subs, nil
}

func (r *subscriptionRepoImpl) UpdateStatus(ctx context.Context, subscriptionID string, status model.SubscriptionStatus) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if status.Terminal() {
		updates["ended_at"] = time.Now()
	}

	result := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("subscription_id = ?", subscriptionID).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *subscriptionRepoImpl) Relink(ctx context.Context, subscriptionID, parentOrderID string, metadata datatypes.JSONMap) error {
	return r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("subscription_id = ?", subscriptionID).
		Updates(map[string]interface{}{
			"status":          model.SubscriptionActive,
			"parent_order_id": parentOrderID,
			"metadata":        metadata,
			"ended_at":        nil,
			"updated_at":      time.Now(),
		}).Error
}
