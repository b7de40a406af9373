package model

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderFailed     OrderStatus = "failed"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
	OrderOnHold     OrderStatus = "on-hold"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderCompleted, OrderFailed,
		OrderCancelled, OrderRefunded, OrderOnHold:
		return true
	}
	return false
}

type SubscriptionStatus string

const (
	SubscriptionActive        SubscriptionStatus = "active"
	SubscriptionOnHold        SubscriptionStatus = "on-hold"
	SubscriptionCancelled     SubscriptionStatus = "cancelled"
	SubscriptionExpired       SubscriptionStatus = "expired"
	SubscriptionPendingCancel SubscriptionStatus = "pending-cancel"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionOnHold, SubscriptionCancelled,
		SubscriptionExpired, SubscriptionPendingCancel:
		return true
	}
	return false
}

// Terminal reports whether the subscription can no longer carry a grant.
func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionCancelled || s == SubscriptionExpired
}

const (
	MembershipActive   = "active"
	MembershipInactive = "inactive"
)

type TaskKind string

const (
	TaskOrderPaymentRetry       TaskKind = "order_payment_retry"
	TaskSubscriptionGraceExpiry TaskKind = "subscription_grace_expiry"
)

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskDone      TaskStatus = "done"
	TaskCancelled TaskStatus = "cancelled"
)
