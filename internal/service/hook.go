package service

import (
	"context"
	"encoding/json"
	"fmt"

	"membership-sync/internal/dto"
	"membership-sync/internal/logger"
	"membership-sync/internal/model"
	"membership-sync/internal/repository"
)

// HookService turns raw hook deliveries from the host systems into typed
// events. Both hosts share the database, so payloads carry ids only and the
// entities are read fresh. A delivery whose event id was already processed
// is acknowledged with Duplicate set and not dispatched again.
type HookService interface {
	Handle(ctx context.Context, eventType, eventID string, body []byte) (*dto.HookResponse, error)
}

type hookServiceImpl struct {
	sync             SyncService
	orderRepo        repository.OrderRepository
	subscriptionRepo repository.SubscriptionRepository
	webhookEventRepo repository.WebhookEventRepository
	log              logger.Logger
}

func NewHookService(
	sync SyncService,
	orderRepo repository.OrderRepository,
	subscriptionRepo repository.SubscriptionRepository,
	webhookEventRepo repository.WebhookEventRepository,
	log logger.Logger,
) HookService {
	return &hookServiceImpl{
		sync:             sync,
		orderRepo:        orderRepo,
		subscriptionRepo: subscriptionRepo,
		webhookEventRepo: webhookEventRepo,
		log:              log,
	}
}

func (h *hookServiceImpl) Handle(ctx context.Context, eventType, eventID string, body []byte) (*dto.HookResponse, error) {
	fields := map[string]interface{}{"event_type": eventType, "event_id": eventID}
	resp := &dto.HookResponse{EventID: eventID}

	if eventID != "" {
		seen, err := h.webhookEventRepo.Exists(ctx, eventID)
		if err != nil {
			return nil, persistenceError("check webhook event", err)
		}
		if seen {
			h.log.Info("duplicate hook delivery ignored", fields)
			resp.Duplicate = true
			return resp, nil
		}
	}

	ev, err := h.decode(ctx, eventType, body)
	if err != nil {
		h.log.Warning("hook rejected", withFields(fields, "error", err.Error()))
		return nil, err
	}

	if err := h.sync.Dispatch(ctx, ev); err != nil {
		return nil, err
	}

	if eventID != "" {
		if err := h.webhookEventRepo.MarkProcessed(ctx, eventID, eventType); err != nil {
			return nil, persistenceError("mark webhook event processed", err)
		}
	}
	return resp, nil
}

func (h *hookServiceImpl) decode(ctx context.Context, eventType string, body []byte) (Event, error) {
	switch eventType {
	case dto.EventCheckoutCompleted:
		var p dto.CheckoutCompleted
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		if p.UserID == "" || p.LevelID == 0 {
			return nil, fmt.Errorf("%w: user_id and level_id are required", ErrInvalidPayload)
		}
		ev := CheckoutCompleted{UserID: p.UserID, LevelID: p.LevelID}
		if p.OrderID != "" {
			order, err := h.loadOrder(ctx, p.OrderID)
			if err != nil {
				return nil, err
			}
			ev.Order = order
		}
		return ev, nil

	case dto.EventMembershipLevelChanging:
		var p dto.LevelChanging
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		if p.UserID == "" {
			return nil, fmt.Errorf("%w: user_id is required", ErrInvalidPayload)
		}
		return MembershipLevelChanging{UserID: p.UserID, NewLevelID: p.NewLevelID}, nil

	case dto.EventMembershipLevelChanged:
		var p dto.LevelChanged
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		if p.UserID == "" {
			return nil, fmt.Errorf("%w: user_id is required", ErrInvalidPayload)
		}
		return MembershipLevelChanged{UserID: p.UserID, NewLevelID: p.NewLevelID, CancelledLevelID: p.CancelledLevelID}, nil

	case dto.EventSubscriptionStatusChanged:
		var p dto.SubscriptionStatusChanged
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		newStatus, oldStatus := model.SubscriptionStatus(p.NewStatus), model.SubscriptionStatus(p.OldStatus)
		if !newStatus.Valid() || (oldStatus != "" && !oldStatus.Valid()) {
			return nil, fmt.Errorf("%w: unknown subscription status %q -> %q", ErrInvalidPayload, p.OldStatus, p.NewStatus)
		}
		sub, err := h.loadSubscription(ctx, p.SubscriptionID)
		if err != nil {
			return nil, err
		}
		return SubscriptionStatusChanged{Subscription: sub, NewStatus: newStatus, OldStatus: oldStatus}, nil

	case dto.EventSubscriptionPaymentSucceeded, dto.EventSubscriptionPaymentFailed:
		var p dto.SubscriptionPayment
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		sub, err := h.loadSubscription(ctx, p.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if eventType == dto.EventSubscriptionPaymentSucceeded {
			return SubscriptionPaymentSucceeded{Subscription: sub}, nil
		}
		return SubscriptionPaymentFailed{Subscription: sub}, nil

	case dto.EventOrderStatusChanged:
		var p dto.OrderStatusChanged
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		newStatus, oldStatus := model.OrderStatus(p.NewStatus), model.OrderStatus(p.OldStatus)
		if !newStatus.Valid() || (oldStatus != "" && !oldStatus.Valid()) {
			return nil, fmt.Errorf("%w: unknown order status %q -> %q", ErrInvalidPayload, p.OldStatus, p.NewStatus)
		}
		order, err := h.loadOrder(ctx, p.OrderID)
		if err != nil {
			return nil, err
		}
		return OrderStatusChanged{Order: order, OldStatus: oldStatus, NewStatus: newStatus}, nil

	case dto.EventOrderPaymentFailed:
		var p dto.OrderPayment
		if err := unmarshal(body, &p); err != nil {
			return nil, err
		}
		order, err := h.loadOrder(ctx, p.OrderID)
		if err != nil {
			return nil, err
		}
		return OrderPaymentFailed{Order: order}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, eventType)
}

func (h *hookServiceImpl) loadOrder(ctx context.Context, orderID string) (*model.Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order_id is required", ErrInvalidPayload)
	}
	order, err := h.orderRepo.FindByOrderID(ctx, orderID)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, persistenceError("load order", err)
	}
	return order, nil
}

func (h *hookServiceImpl) loadSubscription(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	if subscriptionID == "" {
		return nil, fmt.Errorf("%w: subscription_id is required", ErrInvalidPayload)
	}
	sub, err := h.subscriptionRepo.GetBySubscriptionID(ctx, subscriptionID)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: subscription %s", ErrNotFound, subscriptionID)
	}
	if err != nil {
		return nil, persistenceError("load subscription", err)
	}
	return sub, nil
}

func unmarshal(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}
