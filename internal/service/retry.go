package service

import (
	"context"
	"time"

	"membership-sync/internal/logger"
	"membership-sync/internal/metrics"
	"membership-sync/internal/model"
	"membership-sync/internal/repository"
	"membership-sync/internal/settings"

	"github.com/google/uuid"
)

// RetryScheduler bounds payment retries of a failed order and runs the
// subscription grace period. The two are separate policies over different
// entities and share only the task queue.
type RetryScheduler interface {
	PaymentFailed(ctx context.Context, order *model.Order, userID string) error
	// Reset forgets the order's retry state and cancels its pending retries.
	Reset(ctx context.Context, order *model.Order) error
	FireOrderRetry(ctx context.Context, task *model.ScheduledTask) error

	ScheduleGraceExpiry(ctx context.Context, sub *model.Subscription) error
	CancelGraceExpiry(ctx context.Context, subscriptionID string) error
}

type retrySchedulerImpl struct {
	membership MembershipSystem
	orderRepo  repository.OrderRepository
	taskRepo   repository.ScheduledTaskRepository
	settings   settings.Provider
	log        logger.Logger
	metrics    *metrics.Metrics

	now   func() time.Time
	newID func() string
}

func NewRetryScheduler(
	membership MembershipSystem,
	orderRepo repository.OrderRepository,
	taskRepo repository.ScheduledTaskRepository,
	settingsProvider settings.Provider,
	log logger.Logger,
	m *metrics.Metrics,
) RetryScheduler {
	return &retrySchedulerImpl{
		membership: membership,
		orderRepo:  orderRepo,
		taskRepo:   taskRepo,
		settings:   settingsProvider,
		log:        log,
		metrics:    m,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

func (r *retrySchedulerImpl) ceiling() int {
	ceiling := r.settings.Int(settings.KeyRetryCeiling, settings.DefaultRetryCeiling)
	if ceiling < 0 {
		return 0
	}
	return ceiling
}

func (r *retrySchedulerImpl) days(key string, def int) time.Duration {
	days := r.settings.Int(key, def)
	if days < 0 {
		days = 0
	}
	return time.Duration(days) * 24 * time.Hour
}

func (r *retrySchedulerImpl) PaymentFailed(ctx context.Context, order *model.Order, userID string) error {
	fields := map[string]interface{}{"order_id": order.OrderID, "user_id": userID}

	if exhaustedAt, ok := model.MetaString(order.Metadata, model.MetaRetryExhaustedAt); ok {
		r.log.Info("payment retries already exhausted, failure ignored", withFields(fields, "exhausted_at", exhaustedAt))
		return nil
	}

	// A failure reported while a retry is still waiting is the same failure
	// arriving through another event; the waiting retry already covers it.
	pending, err := r.taskRepo.CountPendingForOrder(ctx, model.TaskOrderPaymentRetry, order.OrderID)
	if err != nil {
		return persistenceError("count retry tasks", err)
	}
	if pending > 0 {
		r.log.Info("payment retry already scheduled, failure not counted", fields)
		return nil
	}

	ceiling := r.ceiling()
	count, _ := model.MetaInt(order.Metadata, model.MetaRetryAttemptCount)
	fields = withFields(fields, "ceiling", ceiling)

	if count >= int64(ceiling) {
		return r.escalate(ctx, order, userID, withFields(fields, "attempt", count))
	}

	count++
	order.Metadata = model.SetMeta(order.Metadata, model.MetaRetryAttemptCount, count)
	if err := r.orderRepo.UpdateMetadata(ctx, order.OrderID, order.Metadata); err != nil {
		r.log.Error("persist retry counter failed", withFields(fields, "error", err.Error()))
		return persistenceError("update retry counter", err)
	}

	task := &model.ScheduledTask{
		ID:      r.newID(),
		Kind:    model.TaskOrderPaymentRetry,
		Status:  model.TaskPending,
		OrderID: order.OrderID,
		UserID:  userID,
		RunAt:   r.now().Add(r.days(settings.KeyRetryDelayDays, settings.DefaultRetryDelayDays)),
	}
	if err := r.taskRepo.Create(ctx, task); err != nil {
		r.log.Error("schedule payment retry failed", withFields(fields, "error", err.Error()))
		return persistenceError("create retry task", err)
	}

	r.metrics.RetryScheduled(string(task.Kind))
	r.log.Info("payment retry scheduled", withFields(fields,
		"attempt", count,
		"task_id", task.ID,
		"run_at", task.RunAt.UTC().Format(time.RFC3339),
	))
	return nil
}

// escalate is terminal: the grant is cleared and the order marked so no
// further retry is scheduled. A new successful payment is the only way back.
func (r *retrySchedulerImpl) escalate(ctx context.Context, order *model.Order, userID string, fields map[string]interface{}) error {
	err := r.membership.ClearLevel(ctx, userID)
	r.metrics.Grant("clear", err)
	if err != nil {
		r.log.Error("suspend membership after exhausted retries failed", withFields(fields, "error", err.Error()))
		return persistenceError("clear level", err)
	}

	order.Metadata = model.SetMeta(order.Metadata, model.MetaRetryExhaustedAt, r.now().UTC().Format(time.RFC3339))
	if err := r.orderRepo.UpdateMetadata(ctx, order.OrderID, order.Metadata); err != nil {
		r.log.Error("record exhausted retries failed", withFields(fields, "error", err.Error()))
		return persistenceError("update order metadata", err)
	}

	r.metrics.Escalation()
	r.log.Error("payment retries exhausted, membership suspended", fields)
	return nil
}

func (r *retrySchedulerImpl) Reset(ctx context.Context, order *model.Order) error {
	fields := map[string]interface{}{"order_id": order.OrderID}

	cancelled, err := r.taskRepo.CancelPendingForOrder(ctx, model.TaskOrderPaymentRetry, order.OrderID)
	if err != nil {
		return persistenceError("cancel retry tasks", err)
	}

	_, hasCount := order.Metadata[model.MetaRetryAttemptCount]
	_, hasMarker := order.Metadata[model.MetaRetryExhaustedAt]
	if !hasCount && !hasMarker && cancelled == 0 {
		return nil
	}

	if hasCount || hasMarker {
		delete(order.Metadata, model.MetaRetryAttemptCount)
		delete(order.Metadata, model.MetaRetryExhaustedAt)
		if err := r.orderRepo.UpdateMetadata(ctx, order.OrderID, order.Metadata); err != nil {
			r.log.Error("reset retry counter failed", withFields(fields, "error", err.Error()))
			return persistenceError("update order metadata", err)
		}
	}

	r.log.Info("payment recovered, retry state reset", withFields(fields, "cancelled_tasks", cancelled))
	return nil
}

// FireOrderRetry replays the failure path for a due task. The order is read
// again first: a task that outlived a successful payment does nothing.
func (r *retrySchedulerImpl) FireOrderRetry(ctx context.Context, task *model.ScheduledTask) error {
	fields := map[string]interface{}{"task_id": task.ID, "order_id": task.OrderID, "user_id": task.UserID}

	order, err := r.orderRepo.FindByOrderID(ctx, task.OrderID)
	if isNotFound(err) {
		r.log.Warning("payment retry for unknown order", withFields(fields, "kind", ErrNotFound.Error()))
		return nil
	}
	if err != nil {
		return persistenceError("load order", err)
	}

	if order.Status == model.OrderCompleted {
		r.log.Info("order paid before retry fired, retry skipped", fields)
		return nil
	}
	if _, ok := model.MetaInt(order.Metadata, model.MetaRetryAttemptCount); !ok {
		r.log.Info("retry counter was reset, retry skipped", fields)
		return nil
	}

	return r.PaymentFailed(ctx, order, task.UserID)
}

func (r *retrySchedulerImpl) ScheduleGraceExpiry(ctx context.Context, sub *model.Subscription) error {
	fields := map[string]interface{}{"subscription_id": sub.SubscriptionID, "user_id": sub.CustomerID}

	pending, err := r.taskRepo.CountPendingForSubscription(ctx, model.TaskSubscriptionGraceExpiry, sub.SubscriptionID)
	if err != nil {
		return persistenceError("count grace tasks", err)
	}
	if pending > 0 {
		r.log.Debug("grace period already running", fields)
		return nil
	}

	task := &model.ScheduledTask{
		ID:             r.newID(),
		Kind:           model.TaskSubscriptionGraceExpiry,
		Status:         model.TaskPending,
		SubscriptionID: sub.SubscriptionID,
		UserID:         sub.CustomerID,
		RunAt:          r.now().Add(r.days(settings.KeyGracePeriodDays, settings.DefaultGracePeriodDays)),
	}
	if err := r.taskRepo.Create(ctx, task); err != nil {
		r.log.Error("schedule grace expiry failed", withFields(fields, "error", err.Error()))
		return persistenceError("create grace task", err)
	}

	r.metrics.RetryScheduled(string(task.Kind))
	r.log.Info("payment failed, grace period started", withFields(fields,
		"task_id", task.ID,
		"run_at", task.RunAt.UTC().Format(time.RFC3339),
	))
	return nil
}

func (r *retrySchedulerImpl) CancelGraceExpiry(ctx context.Context, subscriptionID string) error {
	cancelled, err := r.taskRepo.CancelPendingForSubscription(ctx, model.TaskSubscriptionGraceExpiry, subscriptionID)
	if err != nil {
		return persistenceError("cancel grace tasks", err)
	}
	if cancelled > 0 {
		r.log.Info("payment recovered, grace period ended", map[string]interface{}{"subscription_id": subscriptionID})
	}
	return nil
}
