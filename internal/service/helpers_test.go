package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"membership-sync/internal/cache"
	"membership-sync/internal/client"
	"membership-sync/internal/logger"
	"membership-sync/internal/model"
	"membership-sync/internal/repository"
	"membership-sync/internal/settings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// fakeMembership keeps grants in memory and counts mutations.
type fakeMembership struct {
	mu      sync.Mutex
	levels  map[string]uint
	sets    []string
	clears  []string
	failSet error
}

func newFakeMembership() *fakeMembership {
	return &fakeMembership{levels: make(map[string]uint)}
}

func (f *fakeMembership) CurrentLevel(_ context.Context, userID string) (*model.MembershipLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	levelID, ok := f.levels[userID]
	if !ok {
		return nil, nil
	}
	return &model.MembershipLevel{ID: levelID}, nil
}

func (f *fakeMembership) SetLevel(_ context.Context, userID string, levelID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet != nil {
		return f.failSet
	}
	f.sets = append(f.sets, userID)
	f.levels[userID] = levelID
	return nil
}

func (f *fakeMembership) ClearLevel(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears = append(f.clears, userID)
	delete(f.levels, userID)
	return nil
}

func (f *fakeMembership) grant(userID string, levelID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[userID] = levelID
}

func (f *fakeMembership) level(userID string) uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[userID]
}

func (f *fakeMembership) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sets)
}

func (f *fakeMembership) clearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clears)
}

type gatewayCall struct {
	SubscriptionID string
	GatewayID      string
}

type fakeGateways struct {
	mu    sync.Mutex
	calls []gatewayCall
	err   error
}

func (f *fakeGateways) Cancel(_ context.Context, sub *model.Subscription, gatewayID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, gatewayCall{SubscriptionID: sub.SubscriptionID, GatewayID: gatewayID})
	return f.err
}

func (f *fakeGateways) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type harness struct {
	db               *gorm.DB
	membership       *fakeMembership
	gateways         *fakeGateways
	levels           *cache.MemoryLevelCache
	settings         *settings.Static
	productRepo      repository.ProductRepository
	orderRepo        repository.OrderRepository
	subscriptionRepo repository.SubscriptionRepository
	taskRepo         repository.ScheduledTaskRepository
	webhookEventRepo repository.WebhookEventRepository
	retry            *retrySchedulerImpl
	sync             *syncServiceImpl
	hooks            HookService
	now              time.Time
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := client.InitDBClient("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := newTestDB(t)
	h := &harness{
		db:               db,
		membership:       newFakeMembership(),
		gateways:         &fakeGateways{},
		levels:           cache.NewMemoryLevelCache(cache.DefaultLevelTTL),
		settings:         settings.NewStatic(nil),
		productRepo:      repository.NewProductRepository(db),
		orderRepo:        repository.NewOrderRepository(db),
		subscriptionRepo: repository.NewSubscriptionRepository(db),
		taskRepo:         repository.NewScheduledTaskRepository(db),
		webhookEventRepo: repository.NewWebhookEventRepository(db),
		now:              time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	h.retry = NewRetryScheduler(h.membership, h.orderRepo, h.taskRepo, h.settings, logger.Nop(), nil).(*retrySchedulerImpl)
	h.retry.now = func() time.Time { return h.now }

	h.sync = NewSyncService(
		h.membership,
		h.productRepo,
		h.orderRepo,
		h.subscriptionRepo,
		h.gateways,
		h.retry,
		h.levels,
		h.settings,
		logger.Nop(),
		nil,
	).(*syncServiceImpl)
	h.sync.now = func() time.Time { return h.now }

	h.hooks = NewHookService(h.sync, h.orderRepo, h.subscriptionRepo, h.webhookEventRepo, logger.Nop())

	require.NoError(t, db.Create([]*model.Product{
		{ID: "gold-monthly", Name: "Gold monthly", Price: 1500, Currency: "USD", Type: "SUBSCRIPTION", MembershipLevelID: 5},
		{ID: "silver-monthly", Name: "Silver monthly", Price: 900, Currency: "USD", Type: "SUBSCRIPTION", MembershipLevelID: 3},
		{ID: "t-shirt", Name: "T-shirt", Price: 2000, Currency: "USD", Type: "ONE_TIME"},
	}).Error)

	return h
}

func (h *harness) createOrder(t *testing.T, orderID, buyerID string, status model.OrderStatus, createdAt time.Time, productIDs ...string) *model.Order {
	t.Helper()

	order := &model.Order{
		OrderID:       orderID,
		Status:        status,
		BuyerID:       buyerID,
		PaymentMethod: "pagbank",
		Total:         decimal.NewFromInt(15),
		CreatedAt:     createdAt,
	}
	for _, productID := range productIDs {
		order.Items = append(order.Items, &model.OrderItem{ProductID: productID, Quantity: 1})
	}
	require.NoError(t, h.db.Create(order).Error)

	return h.reloadOrder(t, orderID)
}

func (h *harness) reloadOrder(t *testing.T, orderID string) *model.Order {
	t.Helper()
	order, err := h.orderRepo.FindByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	return order
}

func (h *harness) createSubscription(t *testing.T, subscriptionID, userID string, levelID uint, gatewayID string, status model.SubscriptionStatus) *model.Subscription {
	t.Helper()

	sub := &model.Subscription{
		SubscriptionID: subscriptionID,
		CustomerID:     userID,
		ProductID:      "gold-monthly",
		Status:         status,
		PaymentMethod:  gatewayID,
		Metadata: datatypes.JSONMap{
			model.MetaLinkedLevelID:               levelID,
			model.MetaLinkedGatewaySubscriptionID: "PRE_" + subscriptionID,
		},
	}
	require.NoError(t, h.subscriptionRepo.CreateSubscription(context.Background(), sub))

	return h.reloadSubscription(t, subscriptionID)
}

func (h *harness) reloadSubscription(t *testing.T, subscriptionID string) *model.Subscription {
	t.Helper()
	sub, err := h.subscriptionRepo.GetBySubscriptionID(context.Background(), subscriptionID)
	require.NoError(t, err)
	return sub
}

// setOrderStatus plays the commerce system moving an order.
func (h *harness) setOrderStatus(t *testing.T, orderID string, status model.OrderStatus) {
	t.Helper()
	require.NoError(t, h.db.Model(&model.Order{}).Where("order_id = ?", orderID).Update("status", status).Error)
}

func (h *harness) pendingTasks(t *testing.T) []*model.ScheduledTask {
	t.Helper()
	var tasks []*model.ScheduledTask
	require.NoError(t, h.db.Where("status = ?", model.TaskPending).Order("run_at ASC").Find(&tasks).Error)
	return tasks
}

// fireDue runs every task due at h.now the way the worker does and reports
// how many ran.
func (h *harness) fireDue(t *testing.T) int {
	t.Helper()
	ctx := context.Background()

	due, err := h.taskRepo.Due(ctx, h.now, 100)
	require.NoError(t, err)

	ran := 0
	for _, task := range due {
		claimed, err := h.taskRepo.Claim(ctx, task.ID)
		require.NoError(t, err)
		if !claimed {
			continue
		}
		require.NoError(t, h.sync.Dispatch(ctx, RetryDue{Task: task}))
		require.NoError(t, h.taskRepo.MarkDone(ctx, task.ID))
		ran++
	}
	return ran
}
