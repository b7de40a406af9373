package service

import (
	"context"
	"slices"

	"membership-sync/internal/gateway"
	"membership-sync/internal/model"
	"membership-sync/internal/settings"

	"gorm.io/datatypes"
)

func (s *syncServiceImpl) Checkout(ctx context.Context, userID string, levelID uint, order *model.Order) error {
	fields := map[string]interface{}{"user_id": userID, "level_id": levelID}
	if order != nil {
		fields["order_id"] = order.OrderID
	}

	product, err := s.productRepo.FindByMembershipLevel(ctx, levelID)
	if err != nil {
		s.log.Error("lookup product for membership level failed", withFields(fields, "error", err.Error()))
		return persistenceError("find product by level", err)
	}
	if product == nil {
		s.log.Warning("no commerce product linked to membership level", withFields(fields, "kind", ErrConfiguration.Error()))
		return nil
	}

	return s.ensureSubscription(ctx, userID, levelID, product, order)
}

// ensureSubscription leaves exactly one non-terminal subscription linking the
// user to the level.
func (s *syncServiceImpl) ensureSubscription(ctx context.Context, userID string, levelID uint, product *model.Product, order *model.Order) error {
	fields := map[string]interface{}{"user_id": userID, "level_id": levelID, "product_id": product.ID}

	subs, err := s.subscriptionRepo.ListByCustomer(ctx, userID)
	if err != nil {
		return persistenceError("list subscriptions", err)
	}

	var existing *model.Subscription
	for _, sub := range subs {
		if model.LinkedLevelID(sub.Metadata) == levelID && !sub.Status.Terminal() {
			existing = sub
			break
		}
	}

	orderID, gatewayID := "", ""
	if order != nil {
		orderID, gatewayID = order.OrderID, order.PaymentMethod
		fields["order_id"] = orderID
	}

	var subscriptionID string
	if existing != nil {
		subscriptionID = existing.SubscriptionID
		fields["subscription_id"] = subscriptionID

		if existing.Status == model.SubscriptionActive && (order == nil || existing.ParentOrderID == orderID) {
			s.log.Debug("subscription already linked to level", fields)
		} else {
			metadata := s.subscriptionMetadata(existing.Metadata, levelID, order)
			parent := existing.ParentOrderID
			if order != nil {
				parent = orderID
			}
			if err := s.subscriptionRepo.Relink(ctx, subscriptionID, parent, metadata); err != nil {
				s.log.Error("relink subscription failed", withFields(fields, "error", err.Error()))
				return persistenceError("relink subscription", err)
			}
			s.log.Success("subscription re-activated for membership level", fields)
		}
	} else {
		now := s.now()
		sub := &model.Subscription{
			SubscriptionID: s.newID(),
			CustomerID:     userID,
			ProductID:      product.ID,
			ParentOrderID:  orderID,
			Status:         model.SubscriptionActive,
			PaymentMethod:  gatewayID,
			Metadata:       s.subscriptionMetadata(nil, levelID, order),
			StartedAt:      &now,
		}
		if err := s.subscriptionRepo.CreateSubscription(ctx, sub); err != nil {
			s.log.Error("create subscription failed", withFields(fields, "error", err.Error()))
			return persistenceError("create subscription", err)
		}
		subscriptionID = sub.SubscriptionID
		s.log.Success("subscription created for membership level", withFields(fields, "subscription_id", subscriptionID))
	}

	if order == nil {
		return nil
	}

	order.Metadata = model.SetMeta(order.Metadata, model.MetaLinkedSubscriptionID, subscriptionID)
	order.Metadata = model.SetMeta(order.Metadata, model.MetaLinkedLevelID, levelID)
	if err := s.orderRepo.UpdateMetadata(ctx, order.OrderID, order.Metadata); err != nil {
		s.log.Error("link order to subscription failed", withFields(fields, "error", err.Error()))
		return persistenceError("update order metadata", err)
	}
	return nil
}

func (s *syncServiceImpl) subscriptionMetadata(base datatypes.JSONMap, levelID uint, order *model.Order) datatypes.JSONMap {
	metadata := datatypes.JSONMap{}
	for k, v := range base {
		metadata[k] = v
	}
	metadata[model.MetaLinkedLevelID] = levelID
	if order != nil {
		if ref, ok := model.MetaString(order.Metadata, model.MetaLinkedGatewaySubscriptionID); ok {
			metadata[model.MetaLinkedGatewaySubscriptionID] = ref
		}
	}
	return metadata
}

// BeforeLevelChange remembers the level the user holds right now, for the
// cancellation path that runs after the change. Only cancellations are
// remembered; the gateway is never notified for any other change.
func (s *syncServiceImpl) BeforeLevelChange(ctx context.Context, userID string, newLevelID uint) error {
	fields := map[string]interface{}{"user_id": userID, "new_level_id": newLevelID}

	if newLevelID != 0 {
		s.log.Debug("level change is not a cancellation, nothing to remember", fields)
		return nil
	}

	current, err := s.membership.CurrentLevel(ctx, userID)
	if err != nil {
		s.log.Error("read current membership level failed", withFields(fields, "error", err.Error()))
		return persistenceError("read current level", err)
	}
	if current == nil {
		s.log.Debug("user holds no level, nothing to remember", fields)
		return nil
	}

	if err := s.levels.Put(ctx, userID, current.ID); err != nil {
		s.log.Error("remember previous level failed", withFields(fields, "error", err.Error()))
		return nil
	}
	s.log.Debug("previous level remembered", withFields(fields, "previous_level_id", current.ID))
	return nil
}

func (s *syncServiceImpl) LevelChanged(ctx context.Context, newLevelID uint, userID string, cancelledLevelID uint) error {
	if !s.syncEnabled("membership_level_changed") {
		return nil
	}
	fields := map[string]interface{}{"user_id": userID, "new_level_id": newLevelID, "cancelled_level_id": cancelledLevelID}

	if newLevelID != 0 {
		product, err := s.productRepo.FindByMembershipLevel(ctx, newLevelID)
		if err != nil {
			return persistenceError("find product by level", err)
		}
		if product == nil {
			s.log.Info("no commerce product linked to new level, nothing to sync", withFields(fields, "kind", ErrConfiguration.Error()))
			return nil
		}
		return s.ensureSubscription(ctx, userID, newLevelID, product, nil)
	}

	if cancelledLevelID == 0 {
		s.log.Warning("cancellation without a cancelled level", fields)
		return nil
	}

	subs, err := s.subscriptionRepo.ListByCustomer(ctx, userID)
	if err != nil {
		return persistenceError("list subscriptions", err)
	}

	cancelled := 0
	for _, sub := range subs {
		if model.LinkedLevelID(sub.Metadata) != cancelledLevelID || sub.Status != model.SubscriptionActive {
			continue
		}
		if err := s.subscriptionRepo.UpdateStatus(ctx, sub.SubscriptionID, model.SubscriptionCancelled); err != nil {
			s.log.Error("cancel subscription failed", withFields(fields, "subscription_id", sub.SubscriptionID, "error", err.Error()))
			return persistenceError("cancel subscription", err)
		}
		cancelled++
		s.log.Success("subscription cancelled after membership cancellation", withFields(fields, "subscription_id", sub.SubscriptionID))
	}

	if cancelled == 0 {
		s.log.Info("no active subscription linked to cancelled level", withFields(fields, "kind", ErrNotFound.Error()))
	}
	return nil
}

// NotifyGatewayOnCancel asks the payment gateway to stop billing a
// subscription whose membership was cancelled locally. It only acts when the
// pre-change hook of the same operation left an entry in the level cache, and
// it is the only place such entries are removed.
func (s *syncServiceImpl) NotifyGatewayOnCancel(ctx context.Context, newLevelID uint, userID string, cancelledLevelID uint) error {
	defer s.forgetPreviousLevel(ctx, userID)

	fields := map[string]interface{}{"user_id": userID, "new_level_id": newLevelID, "cancelled_level_id": cancelledLevelID}

	previous, ok, err := s.levels.Get(ctx, userID)
	if err != nil {
		s.log.Error("read previous level failed", withFields(fields, "error", err.Error()))
		return nil
	}
	if !ok || newLevelID != 0 {
		s.log.Debug("no pending cancellation for user, gateway not notified", fields)
		return nil
	}

	levelID := cancelledLevelID
	if levelID == 0 {
		levelID = previous
	}
	fields["level_id"] = levelID

	subs, err := s.subscriptionRepo.ListByCustomer(ctx, userID)
	if err != nil {
		s.log.Error("list subscriptions failed", withFields(fields, "error", err.Error()))
		return nil
	}

	var target *model.Subscription
	for _, sub := range subs {
		if model.LinkedLevelID(sub.Metadata) != levelID {
			continue
		}
		if sub.Status == model.SubscriptionActive || sub.Status == model.SubscriptionPendingCancel {
			target = sub
			break
		}
	}
	if target == nil {
		s.log.Warning("no live subscription for cancelled membership", withFields(fields, "kind", ErrNotFound.Error()))
		return nil
	}

	gatewayID := target.PaymentMethod
	fields = withFields(fields, "subscription_id", target.SubscriptionID, "gateway", gatewayID)

	notify := s.settings.Strings(settings.KeyNotifyGateways, settings.DefaultNotifyGateways)
	if !slices.Contains(notify, gatewayID) {
		s.log.Info("gateway not configured for cancellation notice", fields)
		return nil
	}

	err = s.gateways.Cancel(ctx, target, gatewayID)
	s.metrics.GatewayCancel(gatewayID, err)
	if err != nil {
		s.log.Error("gateway cancellation failed, local cancellation kept", withFields(fields,
			"kind", ErrRemote.Error(),
			"gateway_error", string(gateway.KindOf(err)),
			"error", err.Error(),
		))
		return nil
	}

	s.log.Success("subscription cancelled at gateway", fields)
	return nil
}

func (s *syncServiceImpl) forgetPreviousLevel(ctx context.Context, userID string) {
	if err := s.levels.Delete(ctx, userID); err != nil {
		s.log.Error("forget previous level failed", map[string]interface{}{"user_id": userID, "error": err.Error()})
	}
}
