package service

import (
	"context"

	"membership-sync/internal/model"
	"membership-sync/internal/settings"
)

func (s *syncServiceImpl) SubscriptionStatusChanged(ctx context.Context, sub *model.Subscription, newStatus, oldStatus model.SubscriptionStatus) error {
	if !s.syncEnabled("subscription_status_changed") {
		return nil
	}
	fields := map[string]interface{}{
		"subscription_id": sub.SubscriptionID,
		"old_status":      string(oldStatus),
		"new_status":      string(newStatus),
	}

	switch newStatus {
	case model.SubscriptionActive:
		return s.syncActive(ctx, sub)
	case model.SubscriptionCancelled, model.SubscriptionExpired:
		return s.syncCancelled(ctx, sub, string(newStatus))
	case model.SubscriptionOnHold:
		if s.settings.Bool(settings.KeyMaintainLevelOnHold, true) {
			s.log.Info("subscription on hold, membership kept at risk", fields)
			return nil
		}
		return s.syncCancelled(ctx, sub, string(newStatus))
	default:
		s.log.Debug("subscription status needs no membership change", fields)
		return nil
	}
}

// syncActive fires on every renewal, so an unchanged level is the common case.
func (s *syncServiceImpl) syncActive(ctx context.Context, sub *model.Subscription) error {
	fields := map[string]interface{}{"subscription_id": sub.SubscriptionID, "user_id": sub.CustomerID}

	if err := s.retry.CancelGraceExpiry(ctx, sub.SubscriptionID); err != nil {
		return err
	}

	levelID := model.LinkedLevelID(sub.Metadata)
	if levelID == 0 {
		s.log.Warning("active subscription has no linked membership level", withFields(fields, "kind", ErrConfiguration.Error()))
		return nil
	}

	return s.grant(ctx, sub.CustomerID, levelID, fields)
}

// syncCancelled clears the user's level without checking that it came from
// this subscription.
func (s *syncServiceImpl) syncCancelled(ctx context.Context, sub *model.Subscription, reason string) error {
	return s.revoke(ctx, sub.CustomerID, map[string]interface{}{
		"subscription_id": sub.SubscriptionID,
		"reason":          reason,
	})
}

func (s *syncServiceImpl) SubscriptionPaymentSucceeded(ctx context.Context, sub *model.Subscription) error {
	if !s.syncEnabled("subscription_payment_succeeded") {
		return nil
	}
	return s.syncActive(ctx, sub)
}

func (s *syncServiceImpl) SubscriptionPaymentFailed(ctx context.Context, sub *model.Subscription) error {
	if !s.syncEnabled("subscription_payment_failed") {
		return nil
	}

	if !s.settings.Bool(settings.KeyGracePeriodEnabled, false) {
		return s.syncCancelled(ctx, sub, "payment_failed")
	}
	return s.retry.ScheduleGraceExpiry(ctx, sub)
}

func (s *syncServiceImpl) graceExpired(ctx context.Context, task *model.ScheduledTask) error {
	fields := map[string]interface{}{"task_id": task.ID, "subscription_id": task.SubscriptionID}

	sub, err := s.subscriptionRepo.GetBySubscriptionID(ctx, task.SubscriptionID)
	if isNotFound(err) {
		s.log.Warning("grace period ended for unknown subscription", withFields(fields, "kind", ErrNotFound.Error()))
		return nil
	}
	if err != nil {
		return persistenceError("load subscription", err)
	}

	if sub.Status == model.SubscriptionActive {
		s.log.Info("subscription recovered during grace period", fields)
		return nil
	}
	return s.syncCancelled(ctx, sub, "grace_period_expired")
}
