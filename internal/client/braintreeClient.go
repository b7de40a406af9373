package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/braintree-go/braintree-go"

	"membership-sync/internal/config"
	"membership-sync/internal/gateway"
	"membership-sync/internal/model"
)

const BraintreeGatewayID = "braintree"

// subscriptionCanceller is the part of the Braintree SDK the client needs.
type subscriptionCanceller interface {
	Cancel(ctx context.Context, subId string) (*braintree.Subscription, error)
}

type braintreeClientImpl struct {
	subscriptions subscriptionCanceller
}

// NewBraintreeClient initializes the Braintree SDK gateway
func NewBraintreeClient(cfg *config.Braintree) gateway.Client {
	env := braintree.Sandbox
	if cfg.Environment == "production" {
		env = braintree.Production
	}

	bt := braintree.New(
		env,
		cfg.MerchantID,
		cfg.PublicKey,
		cfg.PrivateKey,
	)

	return &braintreeClientImpl{
		subscriptions: bt.Subscription(),
	}
}

func (c *braintreeClientImpl) Cancel(ctx context.Context, sub *model.Subscription) error {
	reference, ok := gateway.Reference(sub)
	if !ok {
		return missingReferenceError(BraintreeGatewayID, sub.SubscriptionID)
	}

	result, err := c.subscriptions.Cancel(ctx, reference)
	if err != nil {
		var btErr *braintree.BraintreeError
		if errors.As(err, &btErr) {
			return &gateway.Error{
				Kind:       gateway.KindRemoteRejected,
				Gateway:    BraintreeGatewayID,
				Message:    btErr.Error(),
				StatusCode: btErr.StatusCode(),
			}
		}
		return transportError(BraintreeGatewayID, err)
	}

	if result == nil || result.Status != braintree.SubscriptionStatusCanceled {
		status := "<none>"
		if result != nil {
			status = string(result.Status)
		}
		return unexpectedError(BraintreeGatewayID, fmt.Sprintf("subscription %s reported status %q", reference, status))
	}
	return nil
}
