package repository

import (
	"context"
	"errors"

	"membership-sync/internal/model"

	"gorm.io/gorm"
)

type ProductRepository interface {
	FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error)
	// FindByMembershipLevel returns the first product linked to levelID, or nil.
	FindByMembershipLevel(ctx context.Context, levelID uint) (*model.Product, error)
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

func (r *productRepoImpl) FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error) {
	var products []*model.Product
	if len(productIDs) == 0 {
		return products, nil
	}

	err := r.db.WithContext(ctx).
		Where("id IN ?", productIDs).
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}

// Several products may link the same level; the lowest id wins.
func (r *productRepoImpl) FindByMembershipLevel(ctx context.Context, levelID uint) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Where("membership_level_id = ?", levelID).
		Order("id ASC").
		First(&product).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &product, nil
}
