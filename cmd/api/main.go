package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"membership-sync/internal/cache"
	"membership-sync/internal/client"
	"membership-sync/internal/config"
	"membership-sync/internal/gateway"
	"membership-sync/internal/logger"
	"membership-sync/internal/metrics"
	"membership-sync/internal/repository"
	"membership-sync/internal/server"
	"membership-sync/internal/service"
	"membership-sync/internal/settings"
	"membership-sync/internal/worker"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	slogger := logger.New(cfg.Log, os.Stdout)
	log := logger.FromSlog(slogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := client.InitDBClient(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Error("database init failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	var levels cache.LevelCache = cache.NewMemoryLevelCache(cache.DefaultLevelTTL)
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Error("redis init failed", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
		defer rdb.Close()
		levels = cache.NewRedisLevelCache(rdb, cache.DefaultLevelTTL)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.MustNew(registry)

	gateways := gateway.NewDispatcher()
	if cfg.Pagbank.Token != "" {
		gateways.Register(client.PagbankGatewayID, client.NewPagbankClient(&cfg.Pagbank))
	}
	if cfg.Paypal.ClientID != "" {
		gateways.Register(client.PaypalGatewayID, client.NewPaypalClient(&cfg.Paypal))
	}
	if cfg.BrainTree.MerchantID != "" {
		gateways.Register(client.BraintreeGatewayID, client.NewBraintreeClient(&cfg.BrainTree))
	}
	log.Info("payment gateways registered", map[string]interface{}{"gateways": gateways.Gateways()})

	membershipRepo := repository.NewMembershipRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	taskRepo := repository.NewScheduledTaskRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	settingsProvider := settings.FromConfig(cfg.Sync)

	retryScheduler := service.NewRetryScheduler(membershipRepo, orderRepo, taskRepo, settingsProvider, log, m)
	syncService := service.NewSyncService(
		membershipRepo,
		productRepo,
		orderRepo,
		subscriptionRepo,
		gateways,
		retryScheduler,
		levels,
		settingsProvider,
		log,
		m,
	)
	hookService := service.NewHookService(syncService, orderRepo, subscriptionRepo, webhookEventRepo, log)

	scheduler := worker.NewScheduler(cfg.Worker, taskRepo, syncService, log, m)
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Run(ctx)
	}()

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(hookService, cfg.HookSecret, registry)

	log.Info("starting HTTP server", map[string]interface{}{"addr": serverAddr, "environment": cfg.Environment.Name})
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", map[string]interface{}{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("signal received, starting graceful shutdown", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", map[string]interface{}{"error": err.Error()})
	}

	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		log.Error("task scheduler did not stop before shutdown timeout", nil)
	}
}
