package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apphttp "offer_compare_backend/internal/http"
	"offer_compare_backend/internal/http/router"
	"offer_compare_backend/internal/offers"
	"offer_compare_backend/internal/offers/handler"
	"offer_compare_backend/internal/scheduler"
	"offer_compare_backend/platform/config"
	"offer_compare_backend/platform/logger"
	"offer_compare_backend/platform/validator"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var store *offers.Store
	if err := withRetry(ctx, log, "late offer store", 5, 2*time.Second, func() error {
		s, err := offers.OpenStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		store = s
		return nil
	}); err != nil {
		log.Error("failed to open late offer store", "error", err)
		panic("failed to open late offer store: " + err.Error())
	}
	defer func() { _ = store.Close() }()

	if store.Memory != nil && cfg.GetLateOffersTTL() > 0 {
		cleanup := scheduler.NewLateOfferCleanup(store.Memory, log, cfg.GetLateOffersSweepInterval())
		go cleanup.Run(ctx)
	}

	prefetchQueue, closeQueue := initPrefetchQueue(cfg, log)
	if closeQueue != nil {
		defer closeQueue()
	}

	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	svc := offers.NewService(cfg, store, log)
	log.Info("providers configured", "providers", svc.ProviderNames())

	offersModule := offers.NewModule(svc, prefetchQueue, val, cfg, log)

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Modules: []apphttp.Module{
			offersModule,
		},
	}
	if store.Redis != nil {
		app.Health = apphttp.HealthCheckFunc(func(ctx context.Context) error {
			return store.Redis.Ping(ctx).Err()
		})
	}

	engine := router.New(app)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		// detached provider calls still park their offers
		svc.Wait()
		log.Info("server stopped")
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initPrefetchQueue(cfg config.SchedulerConfig, log *logger.Logger) (handler.PrefetchQueue, func()) {
	if cfg.GetRedisURL() == "" {
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize prefetch queue client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
