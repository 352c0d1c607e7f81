package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/config"
	"github.com/azrulhaziq/campaign-gateway/internal/dispatch"
	gateway "github.com/azrulhaziq/campaign-gateway/internal/gateways"
	"github.com/azrulhaziq/campaign-gateway/internal/handlers"
	"github.com/azrulhaziq/campaign-gateway/internal/queue"
	"github.com/azrulhaziq/campaign-gateway/internal/receipts"
	"github.com/azrulhaziq/campaign-gateway/internal/repository"
	"github.com/azrulhaziq/campaign-gateway/internal/services"
	xhttp "github.com/azrulhaziq/campaign-gateway/pkg/http"
	"github.com/azrulhaziq/campaign-gateway/pkg/logger"
	"github.com/azrulhaziq/campaign-gateway/pkg/pg"
	"github.com/azrulhaziq/campaign-gateway/pkg/prom"
	"github.com/azrulhaziq/campaign-gateway/pkg/redis"
)

const shutdownTimeout = time.Minute

func main() {
	if err := config.Load(argContainsEnvPath()); err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	host, _ := os.Hostname()
	if err := prom.Create(host, config.Get().AppEnv, config.Get().PromNamespace); err != nil {
		logger.Error("failed creating metrics", "error", err)
	}
	go prom.ListenAndServer(config.Get().PromListenAddr, "/metrics")

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, config.Get().AppEnv == "dev")
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	client, err := gateway.NewClient(&gateway.Config{
		BaseURL:    config.Get().WhatsAppApiUrl,
		Token:      config.Get().WhatsAppApiToken,
		Timeout:    10 * time.Second,
		MaxRetries: 2,
		RetryDelay: time.Second,
	})
	if err != nil {
		logger.Error("failed creating whatsapp client", "error", err)
		return
	}

	campaignRepo := repository.NewCampaignRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	consentRepo := repository.NewConsentRepository(db)

	countryCode := config.Get().DefaultCountryCode
	eventService := services.NewEventService(recipientRepo, consentRepo, db, countryCode)

	dispatcher := dispatch.NewDispatcher(
		recipientRepo,
		campaignRepo,
		consentRepo,
		client,
		eventService,
		countryCode,
		dispatch.WithInterval(config.Get().DispatchInterval),
		dispatch.WithBatchSize(config.Get().DispatchBatchSize),
	)
	dispatcher.Start()

	receiptQueue, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().ReceiptQueueName,
		ConsumerGroup:     config.Get().ReceiptQueueConsumerGroup,
		ConsumerName:      config.Get().ReceiptQueueConsumerName,
		MaxRetries:        config.Get().ReceiptQueueMaxRetries,
		VisibilityTimeout: config.Get().ReceiptQueueVisibilityTimeout,
		PollInterval:      config.Get().ReceiptQueuePollInterval,
		BatchSize:         config.Get().ReceiptQueueBatchSize,
		MaxLen:            config.Get().ReceiptQueueMaxLen,
		EnableDLQ:         config.Get().ReceiptQueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating receipt queue", "error", err)
		return
	}

	processor := receipts.NewProcessor(eventService)
	if err := receiptQueue.Consume(processor.Process); err != nil {
		logger.Error("failed starting receipt consumer", "error", err)
		return
	}

	// Small admin surface: manual drain trigger plus health.
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()
	g := s.Router.Group("/api/v1")
	handlers.RegisterDispatchRoutes(g, handlers.NewDispatchHandler(dispatcher, config.Get().DispatchBatchSize))
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(nil))
	go func() {
		if err := s.ListenAndServe(config.Get().DispatchListenAddr); err != nil {
			logger.Error("error in running admin http-server", "error", err)
		}
	}()

	logger.Info("dispatcher service running",
		"interval", config.Get().DispatchInterval.String(),
		"batch_size", config.Get().DispatchBatchSize,
		"receipt_queue", config.Get().ReceiptQueueName)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("shutting down...")
	s.Shutdown()
	dispatcher.Stop()
	if err := receiptQueue.Stop(shutdownTimeout); err != nil {
		logger.Error("error stopping receipt queue", "error", err)
	}
	logger.Info("dispatcher service stopped")
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
