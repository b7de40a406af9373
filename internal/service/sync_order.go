package service

import (
	"context"
	"errors"

	"membership-sync/internal/model"

	"gorm.io/gorm"
)

type membershipItem struct {
	ProductID string
	LevelID   uint
}

func (s *syncServiceImpl) OrderStatusChanged(ctx context.Context, order *model.Order, oldStatus, newStatus model.OrderStatus) error {
	items, err := s.membershipItems(ctx, order)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	fields := map[string]interface{}{
		"order_id":   order.OrderID,
		"user_id":    order.BuyerID,
		"old_status": string(oldStatus),
		"new_status": string(newStatus),
	}

	switch newStatus {
	case model.OrderCompleted:
		return s.orderCompleted(ctx, order, items, fields)
	case model.OrderRefunded, model.OrderCancelled:
		return s.orderReversed(ctx, order, fields)
	case model.OrderFailed:
		return s.retry.PaymentFailed(ctx, order, order.BuyerID)
	default:
		s.log.Debug("order status needs no membership change", fields)
		return nil
	}
}

func (s *syncServiceImpl) OrderPaymentFailed(ctx context.Context, order *model.Order) error {
	items, err := s.membershipItems(ctx, order)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return s.retry.PaymentFailed(ctx, order, order.BuyerID)
}

// Each qualifying line grants independently; a later line may replace the
// level set by an earlier one.
func (s *syncServiceImpl) orderCompleted(ctx context.Context, order *model.Order, items []membershipItem, fields map[string]interface{}) error {
	for _, item := range items {
		itemFields := withFields(fields, "product_id", item.ProductID)
		if err := s.grant(ctx, order.BuyerID, item.LevelID, itemFields); err != nil {
			return err
		}
	}

	return s.retry.Reset(ctx, order)
}

// orderReversed clears the grant only when no newer completed or processing
// membership order of the same buyer exists. The reversed order itself is
// never a candidate.
func (s *syncServiceImpl) orderReversed(ctx context.Context, order *model.Order, fields map[string]interface{}) error {
	candidates, err := s.orderRepo.ListByBuyer(ctx, order.BuyerID, []model.OrderStatus{model.OrderCompleted, model.OrderProcessing})
	if err != nil {
		return persistenceError("list buyer orders", err)
	}

	others := make([]*model.Order, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.OrderID != order.OrderID {
			others = append(others, candidate)
		}
	}

	levels, err := s.productLevels(ctx, others...)
	if err != nil {
		return err
	}

	for _, other := range others {
		if !other.CreatedAt.After(order.CreatedAt) {
			continue
		}
		if hasMembershipItem(other, levels) {
			s.log.Info("newer membership order holds the grant, reversal ignored", withFields(fields, "newer_order_id", other.OrderID))
			return nil
		}
	}

	return s.revoke(ctx, order.BuyerID, withFields(fields, "reason", "order_"+string(order.Status)))
}

func (s *syncServiceImpl) membershipItems(ctx context.Context, order *model.Order) ([]membershipItem, error) {
	if order == nil {
		return nil, nil
	}
	levels, err := s.productLevels(ctx, order)
	if err != nil {
		return nil, err
	}

	var items []membershipItem
	for _, item := range order.Items {
		if levelID := levels[item.ProductID]; levelID != 0 {
			items = append(items, membershipItem{ProductID: item.ProductID, LevelID: levelID})
		}
	}
	return items, nil
}

// productLevels maps every product on the given orders to its linked level.
func (s *syncServiceImpl) productLevels(ctx context.Context, orders ...*model.Order) (map[string]uint, error) {
	seen := make(map[string]struct{})
	var productIDs []string
	for _, order := range orders {
		for _, item := range order.Items {
			if _, ok := seen[item.ProductID]; ok {
				continue
			}
			seen[item.ProductID] = struct{}{}
			productIDs = append(productIDs, item.ProductID)
		}
	}

	levels := make(map[string]uint, len(productIDs))
	if len(productIDs) == 0 {
		return levels, nil
	}

	products, err := s.productRepo.FindMany(ctx, productIDs)
	if err != nil {
		return nil, persistenceError("find products", err)
	}
	for _, product := range products {
		levels[product.ID] = product.MembershipLevelID
	}
	return levels, nil
}

func hasMembershipItem(order *model.Order, levels map[string]uint) bool {
	for _, item := range order.Items {
		if levels[item.ProductID] != 0 {
			return true
		}
	}
	return false
}

func (s *syncServiceImpl) retryDue(ctx context.Context, task *model.ScheduledTask) error {
	switch task.Kind {
	case model.TaskOrderPaymentRetry:
		return s.retry.FireOrderRetry(ctx, task)
	case model.TaskSubscriptionGraceExpiry:
		return s.graceExpired(ctx, task)
	default:
		s.log.Warning("scheduled task of unknown kind ignored", map[string]interface{}{"task_id": task.ID, "kind": string(task.Kind)})
		return nil
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
