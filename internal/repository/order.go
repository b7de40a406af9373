package repository

import (
	"context"
	"time"

	"membership-sync/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OrderRepository interface {
	FindByOrderID(ctx context.Context, orderID string) (*model.Order, error)
	UpdateMetadata(ctx context.Context, orderID string, metadata datatypes.JSONMap) error
	// ListByBuyer returns the buyer's orders in the given statuses, newest first.
	ListByBuyer(ctx context.Context, buyerID string, statuses []model.OrderStatus) ([]*model.Order, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) FindByOrderID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_id = ?", orderID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) UpdateMetadata(ctx context.Context, orderID string, metadata datatypes.JSONMap) error {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"metadata":   metadata,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *orderRepoImpl) ListByBuyer(ctx context.Context, buyerID string, statuses []model.OrderStatus) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("buyer_id = ? AND status IN ?", buyerID, statuses).
		Order("created_at DESC").
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}
