package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"membership-sync/internal/cache"
	"membership-sync/internal/logger"
	"membership-sync/internal/metrics"
	"membership-sync/internal/model"
	"membership-sync/internal/repository"
	"membership-sync/internal/settings"

	"github.com/google/uuid"
)

// MembershipSystem is the single grant primitive of the membership application.
type MembershipSystem interface {
	CurrentLevel(ctx context.Context, userID string) (*model.MembershipLevel, error)
	SetLevel(ctx context.Context, userID string, levelID uint) error
	ClearLevel(ctx context.Context, userID string) error
}

// GatewayCanceller asks an external processor to cancel a subscription.
type GatewayCanceller interface {
	Cancel(ctx context.Context, sub *model.Subscription, gatewayID string) error
}

// SyncService keeps membership grants consistent with commerce orders and
// subscriptions. Every handler is safe to run again with the same input.
type SyncService interface {
	Dispatch(ctx context.Context, ev Event) error

	Checkout(ctx context.Context, userID string, levelID uint, order *model.Order) error
	BeforeLevelChange(ctx context.Context, userID string, newLevelID uint) error
	LevelChanged(ctx context.Context, newLevelID uint, userID string, cancelledLevelID uint) error
	NotifyGatewayOnCancel(ctx context.Context, newLevelID uint, userID string, cancelledLevelID uint) error
	SubscriptionStatusChanged(ctx context.Context, sub *model.Subscription, newStatus, oldStatus model.SubscriptionStatus) error
	SubscriptionPaymentSucceeded(ctx context.Context, sub *model.Subscription) error
	SubscriptionPaymentFailed(ctx context.Context, sub *model.Subscription) error
	OrderStatusChanged(ctx context.Context, order *model.Order, oldStatus, newStatus model.OrderStatus) error
	OrderPaymentFailed(ctx context.Context, order *model.Order) error
}

type syncServiceImpl struct {
	membership       MembershipSystem
	productRepo      repository.ProductRepository
	orderRepo        repository.OrderRepository
	subscriptionRepo repository.SubscriptionRepository
	gateways         GatewayCanceller
	retry            RetryScheduler
	levels           cache.LevelCache
	settings         settings.Provider
	log              logger.Logger
	metrics          *metrics.Metrics

	now   func() time.Time
	newID func() string
}

func NewSyncService(
	membership MembershipSystem,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	subscriptionRepo repository.SubscriptionRepository,
	gateways GatewayCanceller,
	retry RetryScheduler,
	levels cache.LevelCache,
	settingsProvider settings.Provider,
	log logger.Logger,
	m *metrics.Metrics,
) SyncService {
	return &syncServiceImpl{
		membership:       membership,
		productRepo:      productRepo,
		orderRepo:        orderRepo,
		subscriptionRepo: subscriptionRepo,
		gateways:         gateways,
		retry:            retry,
		levels:           levels,
		settings:         settingsProvider,
		log:              log,
		metrics:          m,
		now:              time.Now,
		newID:            uuid.NewString,
	}
}

func (s *syncServiceImpl) Dispatch(ctx context.Context, ev Event) error {
	var err error
	switch e := ev.(type) {
	case CheckoutCompleted:
		err = s.Checkout(ctx, e.UserID, e.LevelID, e.Order)
	case MembershipLevelChanging:
		err = s.BeforeLevelChange(ctx, e.UserID, e.NewLevelID)
	case MembershipLevelChanged:
		// the notify path needs the subscription still active, so it runs
		// before the sync path cancels it
		notifyErr := s.NotifyGatewayOnCancel(ctx, e.NewLevelID, e.UserID, e.CancelledLevelID)
		err = errors.Join(notifyErr, s.LevelChanged(ctx, e.NewLevelID, e.UserID, e.CancelledLevelID))
	case SubscriptionStatusChanged:
		err = s.SubscriptionStatusChanged(ctx, e.Subscription, e.NewStatus, e.OldStatus)
	case SubscriptionPaymentSucceeded:
		err = s.SubscriptionPaymentSucceeded(ctx, e.Subscription)
	case SubscriptionPaymentFailed:
		err = s.SubscriptionPaymentFailed(ctx, e.Subscription)
	case OrderStatusChanged:
		err = s.OrderStatusChanged(ctx, e.Order, e.OldStatus, e.NewStatus)
	case OrderPaymentFailed:
		err = s.OrderPaymentFailed(ctx, e.Order)
	case RetryDue:
		err = s.retryDue(ctx, e.Task)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		s.log.Error("event processing stopped", map[string]interface{}{
			"event": ev.Name(),
			"error": err.Error(),
		})
	}
	s.metrics.Event(ev.Name(), outcome)
	return err
}

func (s *syncServiceImpl) syncEnabled(event string) bool {
	if s.settings.Bool(settings.KeySyncEnabled, true) {
		return true
	}
	s.log.Debug("sync disabled, event ignored", map[string]interface{}{"event": event})
	return false
}

// grant sets userID to levelID unless the user already holds it.
func (s *syncServiceImpl) grant(ctx context.Context, userID string, levelID uint, fields map[string]interface{}) error {
	fields = withFields(fields, "user_id", userID, "level_id", levelID)

	current, err := s.membership.CurrentLevel(ctx, userID)
	if err != nil {
		s.log.Error("read current membership level failed", withFields(fields, "error", err.Error()))
		return persistenceError("read current level", err)
	}
	if current != nil && current.ID == levelID {
		s.log.Debug("user already holds level, nothing to do", fields)
		return nil
	}

	err = s.membership.SetLevel(ctx, userID, levelID)
	s.metrics.Grant("set", err)
	if err != nil {
		s.log.Error("set membership level failed", withFields(fields, "error", err.Error()))
		return persistenceError("set level", err)
	}

	s.log.Success("membership level granted", fields)
	return nil
}

// revoke clears the user's level. A user without a level is left alone, so a
// redelivered cancellation does not reach the membership system twice.
func (s *syncServiceImpl) revoke(ctx context.Context, userID string, fields map[string]interface{}) error {
	fields = withFields(fields, "user_id", userID)

	current, err := s.membership.CurrentLevel(ctx, userID)
	if err != nil {
		s.log.Error("read current membership level failed", withFields(fields, "error", err.Error()))
		return persistenceError("read current level", err)
	}
	if current == nil {
		s.log.Debug("user holds no level, nothing to clear", fields)
		return nil
	}

	err = s.membership.ClearLevel(ctx, userID)
	s.metrics.Grant("clear", err)
	if err != nil {
		s.log.Error("clear membership level failed", withFields(fields, "error", err.Error()))
		return persistenceError("clear level", err)
	}

	s.log.Success("membership level cleared", withFields(fields, "previous_level_id", current.ID))
	return nil
}

func withFields(base map[string]interface{}, kv ...interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(kv)/2)
	for k, v := range base {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			out[key] = kv[i+1]
		}
	}
	return out
}
