package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"membership-sync/internal/config"
	"membership-sync/internal/gateway"
	"membership-sync/internal/model"
)

const (
	PaypalGatewayID = "paypal"

	paypalStatusCancelled = "CANCELLED"
	paypalCancelReason    = "Membership cancelled by customer"
)

type PaypalClient interface {
	gateway.Client
	GetSubscription(ctx context.Context, reference string) (*model.PaypalSubscription, error)
}

type paypalClientImpl struct {
	httpClient         *http.Client
	baseApiURL         string
	paypalClientID     string
	paypalClientSecret string
}

func NewPaypalClient(paypalCfg *config.Paypal) PaypalClient {
	return &paypalClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL:         paypalCfg.BaseApiURL,
		paypalClientID:     paypalCfg.ClientID,
		paypalClientSecret: paypalCfg.ClientSecret,
	}
}

func (c *paypalClientImpl) getAccessToken(ctx context.Context) (string, error) {
	auth := base64.StdEncoding.EncodeToString(
		[]byte(c.paypalClientID + ":" + c.paypalClientSecret),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+"/v1/oauth2/token",
		bytes.NewBufferString("grant_type=client_credentials"))
	if err != nil {
		return "", transportError(PaypalGatewayID, fmt.Errorf("http new request: %w", err))
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportError(PaypalGatewayID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(PaypalGatewayID, fmt.Errorf("read token response: %w", err))
	}
	if resp.StatusCode >= 400 {
		return "", rejectedError(PaypalGatewayID, resp.StatusCode, body)
	}

	var token model.PayPalToken
	if err := json.Unmarshal(body, &token); err != nil || token.AccessToken == "" {
		return "", unexpectedError(PaypalGatewayID, "oauth token response carries no access_token")
	}

	return token.AccessToken, nil
}

func (c *paypalClientImpl) Cancel(ctx context.Context, sub *model.Subscription) error {
	reference, ok := gateway.Reference(sub)
	if !ok {
		return missingReferenceError(PaypalGatewayID, sub.SubscriptionID)
	}

	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{"reason": paypalCancelReason})
	if err != nil {
		return fmt.Errorf("marshal req payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/billing/subscriptions/%s/cancel", c.baseApiURL, url.PathEscape(reference))
	if _, err := c.call(ctx, accessToken, http.MethodPost, endpoint, payload); err != nil {
		return err
	}

	// the cancel endpoint answers 204 with no body, the status is read back
	current, err := c.getSubscription(ctx, accessToken, reference)
	if err != nil {
		return err
	}
	if current.Status != paypalStatusCancelled {
		return unexpectedError(PaypalGatewayID, fmt.Sprintf("subscription %s reported status %q", current.ID, current.Status))
	}
	return nil
}

func (c *paypalClientImpl) GetSubscription(ctx context.Context, reference string) (*model.PaypalSubscription, error) {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return c.getSubscription(ctx, accessToken, reference)
}

func (c *paypalClientImpl) getSubscription(ctx context.Context, accessToken, reference string) (*model.PaypalSubscription, error) {
	endpoint := fmt.Sprintf("%s/v1/billing/subscriptions/%s", c.baseApiURL, url.PathEscape(reference))
	body, err := c.call(ctx, accessToken, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var result model.PaypalSubscription
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, unexpectedError(PaypalGatewayID, fmt.Sprintf("decode paypal response: %v", err))
	}
	return &result, nil
}

func (c *paypalClientImpl) call(ctx context.Context, accessToken, method, endpoint string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, transportError(PaypalGatewayID, fmt.Errorf("http new request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(PaypalGatewayID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(PaypalGatewayID, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 400 {
		gwErr := rejectedError(PaypalGatewayID, resp.StatusCode, body)
		var paypalErr model.PaypalError
		if json.Unmarshal(body, &paypalErr) == nil && paypalErr.Name != "" {
			gwErr.Message = fmt.Sprintf("%s: %s (debug_id=%s)", paypalErr.Name, paypalErr.Message, paypalErr.DebugID)
		}
		return nil, gwErr
	}

	return body, nil
}
