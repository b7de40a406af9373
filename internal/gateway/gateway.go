package gateway

import (
	"context"
	"errors"
	"fmt"

	"membership-sync/internal/model"
)

type Kind string

const (
	KindUnsupportedGateway Kind = "unsupported_gateway"
	KindMissingReference   Kind = "missing_reference"
	KindTransport          Kind = "transport"
	KindRemoteRejected     Kind = "remote_rejected"
	KindUnexpectedResponse Kind = "unexpected_response"
)

// Error is the failure result of a gateway call.
type Error struct {
	Kind       Kind
	Gateway    string
	Message    string
	StatusCode int    // set for remote_rejected
	Body       string // decoded response body, for diagnostics
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s gateway %s: %s (status=%d)", e.Gateway, e.Kind, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s gateway %s: %s", e.Gateway, e.Kind, e.Message)
}

// KindOf returns the Kind of err, or "" when err is not a gateway error.
func KindOf(err error) Kind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return ""
}

// Client cancels subscriptions at one payment processor.
type Client interface {
	Cancel(ctx context.Context, sub *model.Subscription) error
}

// Reference returns the processor-side subscription id carried in metadata.
func Reference(sub *model.Subscription) (string, bool) {
	return model.MetaString(sub.Metadata, model.MetaLinkedGatewaySubscriptionID)
}
