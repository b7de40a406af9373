package worker

import (
	"context"
	"time"

	"membership-sync/internal/config"
	"membership-sync/internal/logger"
	"membership-sync/internal/metrics"
	"membership-sync/internal/repository"
	"membership-sync/internal/service"
)

// Scheduler polls the task table and feeds due tasks back into the sync
// engine as RetryDue events.
type Scheduler struct {
	tasks     repository.ScheduledTaskRepository
	sync      service.SyncService
	log       logger.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewScheduler(cfg config.Worker, tasks repository.ScheduledTaskRepository, sync service.SyncService, log logger.Logger, m *metrics.Metrics) *Scheduler {
	interval := time.Duration(cfg.PollInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	return &Scheduler{
		tasks:     tasks,
		sync:      sync,
		log:       log,
		metrics:   m,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Run blocks until ctx is cancelled. A task already claimed when that
// happens still runs to completion before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("task scheduler started", map[string]interface{}{"interval": s.interval.String()})
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Error("poll scheduled tasks failed", map[string]interface{}{"error": err.Error()})
		}

		select {
		case <-ctx.Done():
			s.log.Info("task scheduler stopped", nil)
			return
		case <-ticker.C:
		}
	}
}

// RunOnce executes every task due now and returns how many it ran.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	due, err := s.tasks.Due(ctx, s.now(), s.batchSize)
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, task := range due {
		if ctx.Err() != nil {
			return ran, ctx.Err()
		}

		claimed, err := s.tasks.Claim(ctx, task.ID)
		if err != nil {
			return ran, err
		}
		if !claimed {
			continue
		}

		fields := map[string]interface{}{"task_id": task.ID, "kind": string(task.Kind)}

		// A claimed task must reach done, or it stays running forever.
		taskCtx := context.WithoutCancel(ctx)

		// a failed task is not retried; the next event for the entity is.
		runErr := s.sync.Dispatch(taskCtx, service.RetryDue{Task: task})
		s.metrics.TaskExecuted(string(task.Kind), runErr)
		if runErr != nil {
			s.log.Warning("scheduled task failed", map[string]interface{}{"task_id": task.ID, "error": runErr.Error()})
		}

		if err := s.tasks.MarkDone(taskCtx, task.ID); err != nil {
			s.log.Error("mark scheduled task done failed", map[string]interface{}{"task_id": task.ID, "error": err.Error()})
			return ran, err
		}
		s.log.Debug("scheduled task executed", fields)
		ran++
	}
	return ran, nil
}
