// Package main is the entrypoint for the registry account service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nekonik/registry/internal/api"
	"github.com/nekonik/registry/internal/api/handler"
	mw "github.com/nekonik/registry/internal/api/middleware"
	"github.com/nekonik/registry/internal/api/response"
	"github.com/nekonik/registry/internal/apikey"
	"github.com/nekonik/registry/internal/auth"
	"github.com/nekonik/registry/internal/cache"
	"github.com/nekonik/registry/internal/config"
	"github.com/nekonik/registry/internal/metrics"
	"github.com/nekonik/registry/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"session_max_age", cfg.Session.MaxAge,
		"captcha_enabled", cfg.CaptchaEnabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(reg)

	// 6. Services
	pgStore := store.NewPostgresStore(pool)
	sessions := auth.NewSessionStore(redisCache, []byte(cfg.Session.Secret), cfg.Session.MaxAge)

	authOpts := []auth.Option{auth.WithMetrics(recorder)}
	if cfg.CaptchaEnabled() {
		authOpts = append(authOpts, auth.WithVerifier(
			auth.NewHCaptchaVerifier(cfg.Captcha.SecretKey, cfg.Captcha.VerifyURL, cfg.Captcha.Timeout),
		))
	}
	accounts := auth.NewService(pgStore, sessions, auth.NewHasher(cfg.Session.BcryptCost), authOpts...)
	keys := apikey.NewManager(pgStore,
		apikey.WithCost(cfg.Session.BcryptCost),
		apikey.WithMetrics(recorder),
	)

	// 7. Build router with dependencies
	cookies := handler.CookieConfig{
		Secure: cfg.Session.CookieSecure,
		Domain: cfg.Session.CookieDomain,
	}

	deps := api.Dependencies{
		Sessions:      mw.NewSessions(accounts),
		APIKeyAuth:    mw.NewAPIKeyAuth(keys),
		RateLimit:     mw.NewRateLimit(redisCache, cfg.RateLimit.PerMinute),
		Metrics:       recorder,
		AllowedOrigin: cfg.Server.CORSAllowedOrigin,

		HealthHandler:  healthHandler(pgStore, redisCache),
		MetricsHandler: metrics.Handler(reg),

		RegisterHandler:      handler.NewRegisterHandler(accounts),
		LoginHandler:         handler.NewLoginHandler(accounts, cookies),
		SessionHandler:       handler.NewSessionHandler(),
		LogoutHandler:        handler.NewLogoutHandler(accounts, cookies),
		MeHandler:            handler.NewMeHandler(accounts),
		UpdateProfileHandler: handler.NewUpdateProfileHandler(accounts),
		DeleteAccountHandler: handler.NewDeleteAccountHandler(accounts, cookies),

		CreateKeyHandler: handler.NewCreateKeyHandler(keys),
		ListKeysHandler:  handler.NewListKeysHandler(keys),
		EditKeyHandler:   handler.NewEditKeyHandler(keys),
		DeleteKeyHandler: handler.NewDeleteKeyHandler(keys),
		WhoAmIHandler:    handler.NewWhoAmIHandler(),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// pinger is satisfied by both the store and the cache.
type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler checks database and cache connectivity.
func healthHandler(db, kv pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := kv.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
