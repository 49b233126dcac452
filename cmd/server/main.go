package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/monkeysworks/monkeyswork-backend/internal/config"
	"github.com/monkeysworks/monkeyswork-backend/internal/db"
	"github.com/monkeysworks/monkeyswork-backend/internal/goroutine"
	"github.com/monkeysworks/monkeyswork-backend/internal/http/handlers"
	"github.com/monkeysworks/monkeyswork-backend/internal/http/router"
	"github.com/monkeysworks/monkeyswork-backend/internal/logger"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository"
	"github.com/monkeysworks/monkeyswork-backend/internal/scheduler"
	"github.com/monkeysworks/monkeyswork-backend/internal/service"
	"github.com/monkeysworks/monkeyswork-backend/internal/storage"
	"github.com/monkeysworks/monkeyswork-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info")
		logger.Log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(os.Getenv("LOG_LEVEL"))
	if cfg.Env != "production" {
		logger.SetTextFormatter()
	}
	goroutine.SetReporter(logger.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatalf("Ошибка подключения к базе: %v", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(ctx, conn, cfg.MigrationsPath); err != nil {
		logger.Log.Fatalf("Ошибка выполнения миграций: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(conn)
	contractRepo := repository.NewContractRepository(conn)
	milestoneRepo := repository.NewMilestoneRepository(conn)
	escrowRepo := repository.NewEscrowRepository(conn)
	disputeRepo := repository.NewDisputeRepository(conn)
	evidenceRepo := repository.NewEvidenceRepository(conn)
	billingRepo := repository.NewBillingRepository(conn)
	payoutRepo := repository.NewPayoutRepository(conn)
	notificationRepo := repository.NewNotificationRepository(conn)

	// Инфраструктура.
	tokens := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	fees, err := service.NewFeeCalculator(cfg.ClientFeePercent, cfg.DefaultPlatformFee)
	if err != nil {
		logger.Log.Fatalf("Ошибка конфигурации комиссий: %v", err)
	}
	evidenceStorage, err := storage.NewEvidenceStorage(cfg.EvidencePath, cfg.MaxUploadSizeMB)
	if err != nil {
		logger.Log.Fatalf("Ошибка инициализации хранилища файлов: %v", err)
	}

	hub := ws.NewHub()
	goroutine.SafeGo(hub.Run)

	// Сервисы.
	notifications := service.NewNotificationService(notificationRepo, hub)
	authSvc := service.NewAuthService(userRepo, tokens)
	contractSvc := service.NewContractService(contractRepo, userRepo)
	escrowSvc := service.NewEscrowService(escrowRepo, milestoneRepo, contractRepo, fees)
	milestoneSvc := service.NewMilestoneService(milestoneRepo, contractRepo, escrowSvc, notifications, cfg.MilestoneAutoAcceptDays)
	disputeSvc := service.NewDisputeService(disputeRepo, contractRepo, milestoneRepo, escrowRepo, fees, notifications, cfg.DisputeResponseDays)
	billingSvc := service.NewBillingService(billingRepo)
	payoutSvc := service.NewPayoutService(payoutRepo, billingRepo, notifications)
	evidenceSvc := service.NewEvidenceService(evidenceRepo, evidenceStorage, disputeRepo)

	// Фоновые задачи.
	jobs, err := scheduler.NewManager()
	if err != nil {
		logger.Log.Fatalf("Ошибка создания планировщика: %v", err)
	}
	if err := jobs.Register(ctx, scheduler.NewDisputeDeadlineJob(disputeSvc, cfg.DeadlineCheckInterval)); err != nil {
		logger.Log.Fatalf("Ошибка регистрации задачи дедлайнов споров: %v", err)
	}
	if err := jobs.Register(ctx, scheduler.NewMilestoneAutoAcceptJob(milestoneSvc, cfg.DeadlineCheckInterval)); err != nil {
		logger.Log.Fatalf("Ошибка регистрации задачи автоприёмки этапов: %v", err)
	}
	if err := jobs.Register(ctx, scheduler.NewSessionCleanupJob(userRepo)); err != nil {
		logger.Log.Fatalf("Ошибка регистрации задачи очистки сессий: %v", err)
	}
	jobs.Start()
	defer jobs.Stop()

	// HTTP.
	h := router.Handlers{
		Health:        handlers.NewHealthHandler(conn),
		Auth:          handlers.NewAuthHandler(authSvc),
		Contracts:     handlers.NewContractHandler(contractSvc, milestoneSvc, escrowSvc),
		Milestones:    handlers.NewMilestoneHandler(milestoneSvc, escrowSvc),
		Disputes:      handlers.NewDisputeHandler(disputeSvc),
		Evidence:      handlers.NewEvidenceHandler(evidenceSvc),
		Escrow:        handlers.NewEscrowHandler(escrowSvc, billingSvc),
		Billing:       handlers.NewBillingHandler(billingSvc, escrowSvc),
		Payouts:       handlers.NewPayoutHandler(payoutSvc),
		Notifications: handlers.NewNotificationHandler(notifications),
		AdminDisputes: handlers.NewAdminDisputeHandler(disputeSvc),
		AdminContract: handlers.NewAdminContractHandler(contractSvc, escrowSvc),
		AdminBilling:  handlers.NewAdminBillingHandler(billingSvc, payoutSvc),
		WS:            handlers.NewWSHandler(hub, tokens, cfg.AllowedOrigins),
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router.SetupRouter(cfg, h, tokens),
		ReadHeaderTimeout: 10 * time.Second,
	}

	goroutine.SafeGo(func() {
		logger.Log.Infof("HTTP сервер запущен на порту %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("Ошибка HTTP сервера: %v", err)
		}
	})

	<-ctx.Done()
	logger.Log.Info("Получен сигнал остановки, завершаем работу")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("Ошибка остановки HTTP сервера: %v", err)
	}
}
