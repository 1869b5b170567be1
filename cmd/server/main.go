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

	"bookstore/internal/config"
	"bookstore/internal/handler"
	"bookstore/internal/logger"
	"bookstore/internal/middleware"
	"bookstore/internal/repository"
	"bookstore/internal/service"
	"bookstore/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 5 * time.Second
	limiterSweep    = time.Minute
	limiterIdleTTL  = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if cfg.UsingDevSecret {
		log.Warn("SECRET_KEY not set, using the insecure development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database Connection ---
	pool, err := config.ConnectDB(ctx, cfg.DB, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := config.AutoMigrate(ctx, pool, log); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	// --- Utilities, Repositories, Services ---
	jwtUtil, err := utils.NewJWTUtil(cfg.JWT)
	if err != nil {
		return err
	}

	repos := repository.NewRepositories(pool)
	tx := repository.NewTransactor(pool)

	authService := service.NewAuthService(repos.Users, tx, jwtUtil, log)
	bookService := service.NewBookService(repos.Books, tx, log)
	userService := service.NewUserService(repos.Users, tx, log)

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go limiter.Run(ctx, limiterSweep, limiterIdleTTL)

	// --- Router ---
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := handler.NewRouter(handler.RouterDeps{
		Log:            log,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustedProxies: cfg.TrustedProxies,
		Limiter:        limiter,
		DB:             pool,
		Auth:           authService,
		Books:          bookService,
		Users:          userService,
	})
	if err != nil {
		return err
	}

	// --- Start Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.ServerPort), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// --- Graceful Shutdown ---
	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exiting")
	return nil
}
