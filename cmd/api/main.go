package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/config"
	"github.com/azrulhaziq/campaign-gateway/internal/handlers"
	"github.com/azrulhaziq/campaign-gateway/internal/queue"
	"github.com/azrulhaziq/campaign-gateway/internal/receipts"
	"github.com/azrulhaziq/campaign-gateway/internal/repository"
	"github.com/azrulhaziq/campaign-gateway/internal/services"
	xhttp "github.com/azrulhaziq/campaign-gateway/pkg/http"
	"github.com/azrulhaziq/campaign-gateway/pkg/logger"
	"github.com/azrulhaziq/campaign-gateway/pkg/pg"
	"github.com/azrulhaziq/campaign-gateway/pkg/redis"
)

func main() {
	if err := config.Load(argContainsEnvPath()); err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 30))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

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

	pgDebug := config.Get().AppEnv == "dev"
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
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

	campaignRepo := repository.NewCampaignRepository(db)
	segmentRepo := repository.NewSegmentRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	consentRepo := repository.NewConsentRepository(db)

	countryCode := config.Get().DefaultCountryCode
	campaignService := services.NewCampaignService(campaignRepo, recipientRepo)
	segmentService := services.NewSegmentService(segmentRepo, campaignRepo)
	importService := services.NewImportService(recipientRepo, consentRepo, segmentRepo, db, nil, nil, countryCode)
	publisher := receipts.NewPublisher(receiptQueue)

	campaignHandler := handlers.NewCampaignHandler(campaignService, segmentService, importService)
	webhookHandler := handlers.NewWebhookHandler(publisher)
	healthHandler := handlers.NewHealthHandler(nil)

	g := s.Router.Group("/api/v1")
	handlers.RegisterCampaignRoutes(g, campaignHandler)
	handlers.RegisterWebhookRoutes(g, webhookHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(config.Get().HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
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
