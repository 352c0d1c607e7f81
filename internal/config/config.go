package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/azrulhaziq/campaign-gateway/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Config holds every env-sourced value used by the gateway. Only this
// struct should be consulted for configuration, no direct env access
// elsewhere.
type Config struct {
	AppEnv  string `env:"APP_ENV" default:"dev"`
	AppName string `env:"APP_NAME" default:"campaign_gateway"`
	AppDebug bool  `env:"APP_DEBUG" default:"1"`

	HttpListenAddr         string `env:"HTTP_LISTEN_ADDR"`
	HttpServerReadTimeout  int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace  string `env:"PROM_NAMESPACE"`
	PromListenAddr string `env:"PROM_LISTEN_ADDR" default:":9091"`

	LogLevel []string `env:"LOG_LEVEL"`

	// Campaign scheduling / dispatch
	DefaultCountryCode string        `env:"DEFAULT_COUNTRY_CODE" default:"+60"`
	DispatchInterval   time.Duration `env:"DISPATCH_INTERVAL" default:"15s"`
	DispatchBatchSize  int           `env:"DISPATCH_BATCH_SIZE" default:"25"`
	DispatchListenAddr string        `env:"DISPATCH_LISTEN_ADDR" default:":8081"`

	// Inbound status-receipt queue (redis streams)
	ReceiptQueueName              string        `env:"RECEIPT_QUEUE_NAME" default:"wa:receipts"`
	ReceiptQueueConsumerGroup     string        `env:"RECEIPT_QUEUE_CONSUMER_GROUP" default:"receipts"`
	ReceiptQueueConsumerName      string        `env:"RECEIPT_QUEUE_CONSUMER_NAME" default:"receipts-consumer"`
	ReceiptQueueMaxRetries        int           `env:"RECEIPT_QUEUE_MAX_RETRIES" default:"3"`
	ReceiptQueueVisibilityTimeout time.Duration `env:"RECEIPT_QUEUE_VISIBILITY_TIMEOUT" default:"30s"`
	ReceiptQueuePollInterval      time.Duration `env:"RECEIPT_QUEUE_POLL_INTERVAL" default:"1s"`
	ReceiptQueueBatchSize         int64         `env:"RECEIPT_QUEUE_BATCH_SIZE" default:"10"`
	ReceiptQueueMaxLen            int64         `env:"RECEIPT_QUEUE_MAX_LEN"`
	ReceiptQueueEnableDLQ         bool          `env:"RECEIPT_QUEUE_ENABLE_DLQ" default:"1"`

	// WhatsApp provider
	WhatsAppApiUrl   string `env:"WHATSAPP_API_URL"`
	WhatsAppApiToken string `env:"WHATSAPP_API_TOKEN"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
