package dto

// Hook event types accepted on POST /api/hooks/:event.
const (
	EventCheckoutCompleted            = "checkout.completed"
	EventMembershipLevelChanging      = "membership.level_changing"
	EventMembershipLevelChanged       = "membership.level_changed"
	EventSubscriptionStatusChanged    = "subscription.status_changed"
	EventSubscriptionPaymentSucceeded = "subscription.payment_succeeded"
	EventSubscriptionPaymentFailed    = "subscription.payment_failed"
	EventOrderStatusChanged           = "order.status_changed"
	EventOrderPaymentFailed           = "order.payment_failed"
)

type CheckoutCompleted struct {
	UserID  string `json:"user_id"`
	LevelID uint   `json:"level_id"`
	OrderID string `json:"order_id"`
}

type LevelChanging struct {
	UserID     string `json:"user_id"`
	NewLevelID uint   `json:"new_level_id"`
}

type LevelChanged struct {
	UserID           string `json:"user_id"`
	NewLevelID       uint   `json:"new_level_id"`
	CancelledLevelID uint   `json:"cancelled_level_id"`
}

type SubscriptionStatusChanged struct {
	SubscriptionID string `json:"subscription_id"`
	OldStatus      string `json:"old_status"`
	NewStatus      string `json:"new_status"`
}

type SubscriptionPayment struct {
	SubscriptionID string `json:"subscription_id"`
}

type OrderStatusChanged struct {
	OrderID   string `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

type OrderPayment struct {
	OrderID string `json:"order_id"`
}

type HookResponse struct {
	EventID   string `json:"event_id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}
