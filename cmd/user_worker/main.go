package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-user-auth-service/config"
	"github.com/oksasatya/go-user-auth-service/internal/infrastructure/messaging"
	"github.com/oksasatya/go-user-auth-service/internal/infrastructure/search"
	"github.com/oksasatya/go-user-auth-service/pkg/helpers"
)

// user_worker keeps the search index in step with user lifecycle events.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-user-worker", cfg.Env)

	if !cfg.UserEventsEnabled {
		logger.Info("USER_EVENTS_ENABLED=false; user worker disabled")
		return
	}
	if cfg.RabbitMQURL == "" || cfg.RabbitMQUserEventsQueue == "" {
		logger.Fatal("RabbitMQ not configured")
	}

	es, err := helpers.NewESClient(cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
	if err != nil {
		logger.WithError(err).Fatal("elasticsearch client")
	}
	index := search.NewUserIndex(es, cfg.ESUsersIndex, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = index.EnsureIndex(initCtx)
	cancel()
	if err != nil {
		logger.WithError(err).Fatal("ensure index")
	}

	consumer, err := helpers.NewRabbitConsumer(cfg.RabbitMQURL, cfg.RabbitMQUserEventsQueue, 16)
	if err != nil {
		logger.WithError(err).Fatal("rabbitmq consumer")
	}
	defer consumer.Close()

	msgs, err := consumer.Deliveries(cfg.AppName + "-user-worker")
	if err != nil {
		logger.WithError(err).Fatal("consume")
	}

	helpers.LogInfo(logger, "user worker started", logrus.Fields{"queue": cfg.RabbitMQUserEventsQueue, "index": cfg.ESUsersIndex})
	messaging.NewUserEventConsumer(index, logger).Run(ctx, msgs)
	logger.Info("user worker stopped")
}
