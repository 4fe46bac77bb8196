package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spanexx/personal-finance-dashboard-sub009/internal/config"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/database"
	_ "github.com/spanexx/personal-finance-dashboard-sub009/internal/docs" // swagger docs
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/logger"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/metrics"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/middleware"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/router"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/services"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/validator"
)

// @title           Personal Finance Budget API
// @version         1.0
// @description     Budgets with per-category allocations, spend analysis, status rollups and period roll-forward.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run(cfg *config.Config) error {
	log := logger.Get()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	validator.Register()

	dbManager, err := database.NewManager(database.FromAppConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnw("database close failed", "error", err)
		}
	}()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	db := dbManager.DB()

	rec := metrics.New(prometheus.DefaultRegisterer)

	transactionService := services.NewTransactionService(db)
	deps := router.Deps{
		Users:         services.NewUserService(db),
		Categories:    services.NewCategoryService(db),
		Transactions:  transactionService,
		Budgets:       services.NewBudgetService(db, transactionService, rec),
		Audit:         services.NewAuditService(db),
		Metrics:       rec,
		JWTSecret:     cfg.JWTSecret,
		JWTTTL:        cfg.JWTExpirationDur,
		CORSOrigins:   cfg.CORSOrigins,
		ExposeMetrics: true,
		MetricsAPIKey: cfg.MetricsAPIKey,
		ExposeSwagger: !cfg.IsProduction(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, rec)
		go limiter.Run(ctx, time.Minute)
		deps.Limiter = limiter
	}

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router.New(deps),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("Server starting", "port", cfg.Port, "env", cfg.Env)
		if deps.ExposeSwagger {
			log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", cfg.Port)
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("Server stopped")
	return nil
}
