package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dpnr05/banking-fullstack-app/internal/config"
	"github.com/dpnr05/banking-fullstack-app/internal/db"
	"github.com/dpnr05/banking-fullstack-app/internal/domain"
	"github.com/dpnr05/banking-fullstack-app/internal/events"
	"github.com/dpnr05/banking-fullstack-app/internal/httpapi"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to create database pool", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("failed to apply schema", zap.Error(err))
	}
	logger.Info("database ready")

	accountRepo := db.NewAccountRepository(pool.Pool)
	transactionRepo := db.NewTransactionRepository(pool.Pool)
	txManager := db.NewTransactionManager(pool.Pool, logger)

	// Event publishing is optional; without a broker URL transfers still work.
	var publisher domain.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		p, err := events.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey)
		if err != nil {
			logger.Fatal("failed to create event publisher", zap.Error(err))
		}
		defer p.Close()
		publisher = p
		logger.Info("event publisher initialized",
			zap.String("exchange", cfg.RabbitMQ.Exchange),
			zap.String("routing_key", cfg.RabbitMQ.RoutingKey))
	}

	transferService := domain.NewTransferService(accountRepo, transactionRepo, txManager, publisher, logger)
	accountService := domain.NewAccountService(accountRepo)

	handler := httpapi.NewHandler(accountService, transferService, logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("ledger service listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
