package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cashflow/internal/amqp"
	"cashflow/internal/auth"
	"cashflow/internal/config"
	apphttp "cashflow/internal/http"
	"cashflow/internal/log"
	"cashflow/internal/notify"
	"cashflow/internal/services"
	"cashflow/internal/storage"
	"cashflow/internal/verification"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentApp,
		Format:    cfg.LogFormat,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository",
			log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// AMQP is optional: without a broker writes still succeed, the worker
	// just never hears about them.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, report change events disabled", log.FieldError, err)
		} else {
			defer amqpClient.Close()
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	codes := verification.NewStore(cfg.CodeTTL)
	defer codes.Stop()

	registry := notify.NewRegistry(
		notify.NewEmailSender("noreply@cashflow.local", logger),
		notify.NewSMSSender("mock", logger),
	)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authService := services.NewAuthService(repo, jwtManager, codes, registry)
	userService := services.NewUserService(repo)
	reportService := services.NewReportService(repo, amqpClient, cfg.CascadeDeleteItems)
	aiProxy := apphttp.NewAIProxy(cfg.AIServiceURL, cfg.AIHealthTimeout)

	srv := apphttp.NewServer(":"+cfg.Port, jwtManager, authService, userService, reportService, aiProxy)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 0 // SSE responses stream indefinitely
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting cashflow server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
