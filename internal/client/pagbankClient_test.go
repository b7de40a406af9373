package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"membership-sync/internal/config"
	"membership-sync/internal/gateway"
	"membership-sync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func pagbankSubscription(ref string) *model.Subscription {
	sub := &model.Subscription{SubscriptionID: "sub-1", PaymentMethod: PagbankGatewayID}
	if ref != "" {
		sub.Metadata = datatypes.JSONMap{model.MetaLinkedGatewaySubscriptionID: ref}
	}
	return sub
}

func newTestPagbank(t *testing.T, handler http.HandlerFunc) PagbankClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPagbankClient(&config.Pagbank{BaseApiURL: srv.URL, Token: "tok"})
}

func requireKind(t *testing.T, err error, kind gateway.Kind) *gateway.Error {
	t.Helper()
	var gwErr *gateway.Error
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, kind, gwErr.Kind)
	return gwErr
}

func TestPagbankCancel(t *testing.T) {
	client := newTestPagbank(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/subscriptions/PRE_1/cancel", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"PRE_1","status":"CANCELED"}`))
	})

	require.NoError(t, client.Cancel(context.Background(), pagbankSubscription("PRE_1")))
}

func TestPagbankCancelEmptyBodyChecksStatus(t *testing.T) {
	var calls []string
	client := newTestPagbank(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(`{"id":"PRE_1","status":"CANCELED"}`))
	})

	require.NoError(t, client.Cancel(context.Background(), pagbankSubscription("PRE_1")))
	assert.Equal(t, []string{"PUT /subscriptions/PRE_1/cancel", "GET /subscriptions/PRE_1"}, calls)
}

func TestPagbankCancelUnexpectedStatus(t *testing.T) {
	client := newTestPagbank(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"PRE_1","status":"ACTIVE"}`))
	})

	requireKind(t, client.Cancel(context.Background(), pagbankSubscription("PRE_1")), gateway.KindUnexpectedResponse)
}

func TestPagbankCancelUndecodableBody(t *testing.T) {
	client := newTestPagbank(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})

	requireKind(t, client.Cancel(context.Background(), pagbankSubscription("PRE_1")), gateway.KindUnexpectedResponse)
}

func TestPagbankCancelRejected(t *testing.T) {
	client := newTestPagbank(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error_messages":[{"code":"40401","description":"not found"}]}`))
	})

	gwErr := requireKind(t, client.Cancel(context.Background(), pagbankSubscription("PRE_1")), gateway.KindRemoteRejected)
	assert.Equal(t, http.StatusNotFound, gwErr.StatusCode)
	assert.Contains(t, gwErr.Body, "40401")
}

func TestPagbankCancelMissingReferenceSendsNothing(t *testing.T) {
	called := false
	client := newTestPagbank(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	requireKind(t, client.Cancel(context.Background(), pagbankSubscription("")), gateway.KindMissingReference)
	assert.False(t, called)
}

func TestPagbankCancelTimeout(t *testing.T) {
	client := newTestPagbank(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	gwErr := requireKind(t, client.Cancel(ctx, pagbankSubscription("PRE_1")), gateway.KindTransport)
	assert.Equal(t, "timeout", gwErr.Message)
}
