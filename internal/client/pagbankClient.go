package client

import (
	"bytes"
	"context"
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
	PagbankGatewayID = "pagbank"

	pagbankStatusCanceled = "CANCELED"
)

type PagbankClient interface {
	gateway.Client
	Status(ctx context.Context, reference string) (*model.PagbankSubscription, error)
}

type pagbankClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	token      string
}

func NewPagbankClient(cfg *config.Pagbank) PagbankClient {
	return &pagbankClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL: cfg.BaseApiURL,
		token:      cfg.Token,
	}
}

func (c *pagbankClientImpl) Cancel(ctx context.Context, sub *model.Subscription) error {
	reference, ok := gateway.Reference(sub)
	if !ok {
		return missingReferenceError(PagbankGatewayID, sub.SubscriptionID)
	}

	endpoint := fmt.Sprintf("%s/subscriptions/%s/cancel", c.baseApiURL, url.PathEscape(reference))
	status, body, err := c.do(ctx, http.MethodPut, endpoint)
	if err != nil {
		return err
	}

	// some accounts answer 204 without a body, confirm through the status endpoint
	if status == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		current, err := c.Status(ctx, reference)
		if err != nil {
			return err
		}
		return checkPagbankCanceled(current)
	}

	var result model.PagbankSubscription
	if err := json.Unmarshal(body, &result); err != nil {
		return unexpectedError(PagbankGatewayID, fmt.Sprintf("decode cancel response: %v", err))
	}
	return checkPagbankCanceled(&result)
}

func (c *pagbankClientImpl) Status(ctx context.Context, reference string) (*model.PagbankSubscription, error) {
	endpoint := fmt.Sprintf("%s/subscriptions/%s", c.baseApiURL, url.PathEscape(reference))
	_, body, err := c.do(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}

	var result model.PagbankSubscription
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, unexpectedError(PagbankGatewayID, fmt.Sprintf("decode status response: %v", err))
	}
	return &result, nil
}

func (c *pagbankClientImpl) do(ctx context.Context, method, endpoint string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return 0, nil, transportError(PagbankGatewayID, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, transportError(PagbankGatewayID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, transportError(PagbankGatewayID, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 400 {
		return resp.StatusCode, body, rejectedError(PagbankGatewayID, resp.StatusCode, body)
	}
	return resp.StatusCode, body, nil
}

func checkPagbankCanceled(sub *model.PagbankSubscription) error {
	if sub.Status != pagbankStatusCanceled {
		return unexpectedError(PagbankGatewayID, fmt.Sprintf("subscription %s reported status %q", sub.ID, sub.Status))
	}
	return nil
}
