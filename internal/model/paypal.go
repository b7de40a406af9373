package model

type PaypalLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type PayPalToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type PaypalBillingInfo struct {
	FailedPaymentsCount int    `json:"failed_payments_count"`
	NextBillingTime     string `json:"next_billing_time"`
}

// PaypalSubscription is the resource returned by /v1/billing/subscriptions/{id}.
type PaypalSubscription struct {
	ID               string            `json:"id"`
	PlanID           string            `json:"plan_id"`
	Status           string            `json:"status"` // APPROVAL_PENDING, APPROVED, ACTIVE, SUSPENDED, CANCELLED, EXPIRED
	StatusUpdateTime string            `json:"status_update_time"`
	BillingInfo      PaypalBillingInfo `json:"billing_info"`
	Links            []PaypalLink      `json:"links"`
}

type PaypalErrorDetail struct {
	Issue       string `json:"issue"`
	Description string `json:"description"`
}

type PaypalError struct {
	Name    string              `json:"name"`
	Message string              `json:"message"`
	DebugID string              `json:"debug_id"`
	Details []PaypalErrorDetail `json:"details"`
}

type PagbankSubscription struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ACTIVE, SUSPENDED, CANCELED, OVERDUE, PENDING
}
