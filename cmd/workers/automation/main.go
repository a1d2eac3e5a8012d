package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ak-softwares/wa-api-sub002/internal/account"
	"github.com/ak-softwares/wa-api-sub002/internal/config"
	"github.com/ak-softwares/wa-api-sub002/internal/database"
	"github.com/ak-softwares/wa-api-sub002/internal/kafka"
	"github.com/ak-softwares/wa-api-sub002/internal/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService := logger.New(cfg.Observability)
	defer loggerService.Shutdown()
	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	log.Info().Msg("Starting Automation Worker...")

	db, err := database.New(cfg, &log, loggerService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	accounts := account.NewAccountRepository(db.Pool)

	// The forwarder is the default Responder; an AI responder slots in here.
	var responder Responder = newWebhookForwarder(accounts, &log)

	consumer, err := kafka.NewConsumer(kafka.DefaultConfig(cfg.Kafka.Brokers), &log,
		kafka.GroupAutomationWorker, kafka.TopicAutomationDispatch)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize kafka consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Run(ctx, automationHandler(responder, &log)); err != nil {
			log.Error().Err(err).Msg("Automation worker stopped with error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down Automation Worker...")
	cancel()

	log.Info().Msg("Automation Worker shutdown complete")
}
