package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"membership-sync/internal/model"
)

// Dispatcher routes a cancellation to the client registered for a gateway id.
type Dispatcher struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{clients: make(map[string]Client)}
}

// Register adds or replaces the client for gatewayID.
func (d *Dispatcher) Register(gatewayID string, client Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients[gatewayID] = client
}

func (d *Dispatcher) Gateways() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.clients))
	for id := range d.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Cancel returns nil on success and a *Error otherwise.
func (d *Dispatcher) Cancel(ctx context.Context, sub *model.Subscription, gatewayID string) error {
	d.mu.RLock()
	client, ok := d.clients[gatewayID]
	d.mu.RUnlock()
	if !ok {
		return &Error{
			Kind:    KindUnsupportedGateway,
			Gateway: gatewayID,
			Message: fmt.Sprintf("no client registered for gateway %q", gatewayID),
		}
	}

	err := client.Cancel(ctx, sub)
	if err == nil {
		return nil
	}

	var gwErr *Error
	if errors.As(err, &gwErr) {
		if gwErr.Gateway == "" {
			gwErr.Gateway = gatewayID
		}
		return gwErr
	}
	return &Error{Kind: KindTransport, Gateway: gatewayID, Message: err.Error()}
}
