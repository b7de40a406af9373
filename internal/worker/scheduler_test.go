package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"membership-sync/internal/client"
	"membership-sync/internal/config"
	"membership-sync/internal/logger"
	"membership-sync/internal/model"
	"membership-sync/internal/repository"
	"membership-sync/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingSync implements service.SyncService and records dispatched events.
type recordingSync struct {
	service.SyncService

	mu         sync.Mutex
	events     []service.Event
	err        error
	onDispatch func(ctx context.Context)
}

func (r *recordingSync) Dispatch(ctx context.Context, ev service.Event) error {
	if r.onDispatch != nil {
		r.onDispatch(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingSync) dispatched() []service.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]service.Event(nil), r.events...)
}

func newTaskRepo(t *testing.T) (repository.ScheduledTaskRepository, *gorm.DB) {
	t.Helper()
	db, err := client.InitDBClient("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.NewScheduledTaskRepository(db), db
}

func pendingTaskIDs(t *testing.T, db *gorm.DB) []string {
	t.Helper()
	var ids []string
	require.NoError(t, db.Model(&model.ScheduledTask{}).Where("status = ?", model.TaskPending).Order("run_at ASC").Pluck("id", &ids).Error)
	return ids
}

func addTask(t *testing.T, repo repository.ScheduledTaskRepository, id string, runAt time.Time) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &model.ScheduledTask{
		ID:      id,
		Kind:    model.TaskOrderPaymentRetry,
		Status:  model.TaskPending,
		OrderID: "order-1",
		UserID:  "u1",
		RunAt:   runAt,
	}))
}

func TestRunOnceFiresDueTasksOnce(t *testing.T) {
	tasks, db := newTaskRepo(t)
	engine := &recordingSync{}
	now := time.Now()

	addTask(t, tasks, "due-1", now.Add(-2*time.Hour))
	addTask(t, tasks, "due-2", now.Add(-time.Hour))
	addTask(t, tasks, "later", now.Add(time.Hour))

	s := NewScheduler(config.Worker{PollInterval: 1, BatchSize: 10}, tasks, engine, logger.Nop(), nil)
	s.now = func() time.Time { return now }

	ran, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, ran)

	events := engine.dispatched()
	require.Len(t, events, 2)
	first, ok := events[0].(service.RetryDue)
	require.True(t, ok)
	assert.Equal(t, "due-1", first.Task.ID)

	ran, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, ran, "done tasks never fire again")

	assert.Equal(t, []string{"later"}, pendingTaskIDs(t, db))
}

func TestRunOnceSkipsCancelledTasks(t *testing.T) {
	tasks, _ := newTaskRepo(t)
	engine := &recordingSync{}
	now := time.Now()

	addTask(t, tasks, "due-1", now.Add(-time.Hour))
	_, err := tasks.CancelPendingForOrder(context.Background(), model.TaskOrderPaymentRetry, "order-1")
	require.NoError(t, err)

	s := NewScheduler(config.Worker{}, tasks, engine, logger.Nop(), nil)
	ran, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, ran)
	assert.Empty(t, engine.dispatched())
}

func TestRunOnceMarksFailedTasksDone(t *testing.T) {
	tasks, db := newTaskRepo(t)
	engine := &recordingSync{err: errors.New("persistence error")}

	addTask(t, tasks, "due-1", time.Now().Add(-time.Hour))

	s := NewScheduler(config.Worker{}, tasks, engine, logger.Nop(), nil)
	ran, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ran)

	assert.Empty(t, pendingTaskIDs(t, db))
}

func TestRunStopsWithContext(t *testing.T) {
	tasks, _ := newTaskRepo(t)
	engine := &recordingSync{}
	addTask(t, tasks, "due-1", time.Now().Add(-time.Hour))

	s := NewScheduler(config.Worker{PollInterval: 1}, tasks, engine, logger.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(engine.dispatched()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestShutdownDuringTaskStillMarksItDone(t *testing.T) {
	tasks, db := newTaskRepo(t)
	addTask(t, tasks, "due-1", time.Now().Add(-2*time.Hour))
	addTask(t, tasks, "due-2", time.Now().Add(-time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var taskCtxErr error
	engine := &recordingSync{onDispatch: func(taskCtx context.Context) {
		cancel()
		taskCtxErr = taskCtx.Err()
	}}

	s := NewScheduler(config.Worker{}, tasks, engine, logger.Nop(), nil)
	ran, err := s.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, ran, "the batch stops after the in-flight task")
	assert.NoError(t, taskCtxErr)

	var task model.ScheduledTask
	require.NoError(t, db.First(&task, "id = ?", "due-1").Error)
	assert.Equal(t, model.TaskDone, task.Status)
	assert.Equal(t, []string{"due-2"}, pendingTaskIDs(t, db))
}
