package service

import "membership-sync/internal/model"

// Event is a lifecycle event delivered to SyncService.Dispatch. Delivery is
// at-least-once and unordered.
type Event interface {
	Name() string
}

// CheckoutCompleted: the buyer checked out an order for a membership level.
type CheckoutCompleted struct {
	UserID  string
	LevelID uint
	Order   *model.Order
}

// MembershipLevelChanging fires before the membership system changes a level.
type MembershipLevelChanging struct {
	UserID     string
	NewLevelID uint
}

// MembershipLevelChanged fires after the change. NewLevelID 0 is a cancellation.
type MembershipLevelChanged struct {
	UserID           string
	NewLevelID       uint
	CancelledLevelID uint
}

type SubscriptionStatusChanged struct {
	Subscription *model.Subscription
	NewStatus    model.SubscriptionStatus
	OldStatus    model.SubscriptionStatus
}

type SubscriptionPaymentSucceeded struct {
	Subscription *model.Subscription
}

type SubscriptionPaymentFailed struct {
	Subscription *model.Subscription
}

type OrderStatusChanged struct {
	Order     *model.Order
	OldStatus model.OrderStatus
	NewStatus model.OrderStatus
}

type OrderPaymentFailed struct {
	Order *model.Order
}

// RetryDue is fed back by the worker when a scheduled task is due.
type RetryDue struct {
	Task *model.ScheduledTask
}

func (CheckoutCompleted) Name() string            { return "checkout_completed" }
func (MembershipLevelChanging) Name() string      { return "membership_level_changing" }
func (MembershipLevelChanged) Name() string       { return "membership_level_changed" }
func (SubscriptionStatusChanged) Name() string    { return "subscription_status_changed" }
func (SubscriptionPaymentSucceeded) Name() string { return "subscription_payment_succeeded" }
func (SubscriptionPaymentFailed) Name() string    { return "subscription_payment_failed" }
func (OrderStatusChanged) Name() string           { return "order_status_changed" }
func (OrderPaymentFailed) Name() string           { return "order_payment_failed" }
func (RetryDue) Name() string                     { return "retry_due" }
