package repository

import (
	"context"
	"time"

	"membership-sync/internal/model"

	"gorm.io/gorm"
)

type ScheduledTaskRepository interface {
	Create(ctx context.Context, task *model.ScheduledTask) error
	Due(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledTask, error)
	// Claim moves a pending task to running; false means another worker or a
	// cancellation got there first.
	Claim(ctx context.Context, taskID string) (bool, error)
	MarkDone(ctx context.Context, taskID string) error
	CancelPendingForOrder(ctx context.Context, kind model.TaskKind, orderID string) (int64, error)
	CancelPendingForSubscription(ctx context.Context, kind model.TaskKind, subscriptionID string) (int64, error)
	CountPendingForOrder(ctx context.Context, kind model.TaskKind, orderID string) (int64, error)
	CountPendingForSubscription(ctx context.Context, kind model.TaskKind, subscriptionID string) (int64, error)
}

type scheduledTaskRepoImpl struct {
	db *gorm.DB
}

func NewScheduledTaskRepository(db *gorm.DB) ScheduledTaskRepository {
	return &scheduledTaskRepoImpl{db: db}
}

func (r *scheduledTaskRepoImpl) Create(ctx context.Context, task *model.ScheduledTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *scheduledTaskRepoImpl) Due(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledTask, error) {
	var tasks []*model.ScheduledTask
	err := r.db.WithContext(ctx).
		Where("status = ? AND run_at <= ?", model.TaskPending, now).
		Order("run_at ASC").
		Limit(limit).
		Find(&tasks).Error

	if err != nil {
		return nil, err
	}

	return tasks, nil
}

func (r *scheduledTaskRepoImpl) Claim(ctx context.Context, taskID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.ScheduledTask{}).
		Where("id = ? AND status = ?", taskID, model.TaskPending).
		Updates(map[string]interface{}{
			"status":     model.TaskRunning,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *scheduledTaskRepoImpl) MarkDone(ctx context.Context, taskID string) error {
	return r.db.WithContext(ctx).Model(&model.ScheduledTask{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"status":     model.TaskDone,
			"updated_at": time.Now(),
		}).Error
}

func (r *scheduledTaskRepoImpl) CancelPendingForOrder(ctx context.Context, kind model.TaskKind, orderID string) (int64, error) {
	return r.cancelPending(ctx, "kind = ? AND order_id = ?", kind, orderID)
}

func (r *scheduledTaskRepoImpl) CancelPendingForSubscription(ctx context.Context, kind model.TaskKind, subscriptionID string) (int64, error) {
	return r.cancelPending(ctx, "kind = ? AND subscription_id = ?", kind, subscriptionID)
}

func (r *scheduledTaskRepoImpl) CountPendingForOrder(ctx context.Context, kind model.TaskKind, orderID string) (int64, error) {
	return r.countPending(ctx, "kind = ? AND order_id = ?", kind, orderID)
}

func (r *scheduledTaskRepoImpl) CountPendingForSubscription(ctx context.Context, kind model.TaskKind, subscriptionID string) (int64, error) {
	return r.countPending(ctx, "kind = ? AND subscription_id = ?", kind, subscriptionID)
}

func (r *scheduledTaskRepoImpl) countPending(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ScheduledTask{}).
		Where(query, args...).
		Where("status = ?", model.TaskPending).
		Count(&count).Error

	return count, err
}

func (r *scheduledTaskRepoImpl) cancelPending(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.ScheduledTask{}).
		Where(query, args...).
		Where("status = ?", model.TaskPending).
		Updates(map[string]interface{}{
			"status":     model.TaskCancelled,
			"updated_at": time.Now(),
		})

	return result.RowsAffected, result.Error
}
