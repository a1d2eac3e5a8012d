package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ak-softwares/wa-api-sub002/internal/account"
	"github.com/ak-softwares/wa-api-sub002/internal/billing"
	"github.com/ak-softwares/wa-api-sub002/internal/chat"
	"github.com/ak-softwares/wa-api-sub002/internal/config"
	"github.com/ak-softwares/wa-api-sub002/internal/database"
	"github.com/ak-softwares/wa-api-sub002/internal/dispatch"
	"github.com/ak-softwares/wa-api-sub002/internal/inbound"
	"github.com/ak-softwares/wa-api-sub002/internal/ledger"
	"github.com/ak-softwares/wa-api-sub002/internal/logger"
	"github.com/ak-softwares/wa-api-sub002/internal/redis"
	"github.com/ak-softwares/wa-api-sub002/internal/report"
	"github.com/ak-softwares/wa-api-sub002/internal/router"
	"github.com/ak-softwares/wa-api-sub002/internal/server"
	"github.com/ak-softwares/wa-api-sub002/internal/usagelog"
	"github.com/ak-softwares/wa-api-sub002/internal/whatsapp"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService := logger.New(cfg.Observability)
	defer loggerService.Shutdown()

	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	db, err := database.New(cfg, &log, loggerService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	redisClient, err := redis.New(&log, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize redis client")
	}

	srv, err := server.NewServer(cfg, &log, loggerService, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	accountRepo := account.NewAccountRepository(db.Pool)
	ledgerRepo := ledger.NewRepository(db.Pool)
	usageRepo := usagelog.NewRepository(db.Pool)
	chatRepo := chat.NewRepository(db.Pool)
	messageRepo := dispatch.NewMessageRepository(db.Pool)
	inboundRepo := inbound.NewRepository(db.Pool)
	reportRepo := report.NewRepository(db.Pool)
	topupRepo := billing.NewRepository(db.Pool)

	accountService := account.NewAccountService(accountRepo)
	ledgerService := ledger.NewService(ledgerRepo, cfg.Billing.FreeMonthlyQuota)
	reportService := report.NewService(reportRepo)
	billingService := billing.NewService(topupRepo, redisClient, cfg.Razorpay.WebhookSecret)

	waClient := whatsapp.NewClient(&cfg.WhatsApp)
	resolver := chat.NewResolver(chatRepo)
	dispatchService := dispatch.NewService(waClient, ledgerService, resolver, chatRepo,
		messageRepo, usageRepo, redisClient, cfg.Billing)
	normalizer := inbound.NewNormalizer(accountRepo, resolver, inboundRepo, redisClient)

	handlers := &router.Handlers{
		Account:  account.NewAccountHandler(accountService),
		Dispatch: dispatch.NewHandler(dispatchService),
		Chat:     chat.NewHandler(chatRepo),
		Ledger:   ledger.NewHandler(ledgerService),
		Usage:    usagelog.NewHandler(usageRepo),
		Report:   report.NewHandler(reportService),
		Billing:  billing.NewHandler(billingService),
		Webhook:  inbound.NewWebhookHandler(cfg.WhatsApp.VerifyToken, normalizer),
	}

	r := router.NewRouter(srv, handlers)

	srv.SetupHTTPServer(r)

	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	redisClient.Close()
	db.Close()

	log.Info().Msg("server stopped")
}
