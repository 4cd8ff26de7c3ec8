package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/expenseflow-prototype/internal/audit"
	"github.com/xela07ax/expenseflow-prototype/internal/console/handler"
	"github.com/xela07ax/expenseflow-prototype/internal/console/server"
	"github.com/xela07ax/expenseflow-prototype/internal/console/service"
	"github.com/xela07ax/expenseflow-prototype/internal/infra"
	"github.com/xela07ax/expenseflow-prototype/internal/infra/auth"
	"github.com/xela07ax/expenseflow-prototype/internal/notify"
	"github.com/xela07ax/expenseflow-prototype/internal/repository/postgres"
	"github.com/xela07ax/expenseflow-prototype/internal/workflow"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 2. Инфраструктура и ресурсы
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	store, err := postgres.NewStore(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to create store", zap.Error(err))
	}
	if err := store.Ping(ctx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	defer store.Close()

	// Отдельный коннект для пакетной записи аудита
	auditRepo := postgres.NewAuditRepo(cfg.Database.URL)
	if err := auditRepo.Ping(ctx); err != nil {
		logger.Fatal("audit database unreachable", zap.Error(err))
	}
	cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	trail := audit.NewTrail(auditRepo, logger, cfg.Workflow.AuditBufferSize, cfg.Workflow.AuditFlushInterval)
	trail.Start()
	defer trail.Stop()

	// 3. Ключи и аутентификация (RS256)
	privateKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("failed to parse private key", zap.Error(err))
	}
	publicKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("failed to parse public key", zap.Error(err))
	}
	validator := auth.NewBaseValidator(publicKey)

	// 4. Метрики
	reg := prometheus.NewRegistry()
	metrics := workflow.NewMetrics(reg)

	// 5. Ядро согласования (Dependency Injection)
	notifier := notify.NewNotifier(rdb, logger)
	engine := workflow.NewEngine(store, notifier, trail, metrics, logger)

	authService := service.NewAuthService(store, privateKey, cfg.Auth.TokenTTL)
	expenseService := service.NewExpenseService(engine, store, logger)
	ruleService := service.NewRuleService(store, rdb, trail, logger)
	auditService := service.NewAuditService(auditRepo)

	// 6. HTTP-слой
	srv := server.NewConsoleServer(
		cfg,
		logger,
		validator,
		handler.NewAuthHandler(authService),
		handler.NewExpenseHandler(expenseService),
		handler.NewApprovalHandler(expenseService),
		handler.NewRuleHandler(ruleService),
		handler.NewAuditHandler(auditService),
		reg,
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 7. Запуск и Graceful Shutdown
	go func() {
		logger.Info("console api started", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	// trail.Stop() и store.Close() — в defer: буфер аудита дочитается до конца
}
