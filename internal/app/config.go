package app

import (
	"time"

	"github.com/yungbote/commerce-backend/internal/platform/envutil"
)

type Config struct {
	Env      string
	HTTPAddr string

	KafkaBrokers string
	KafkaTopic   string

	RedisAddr     string
	RedisPassword string

	RelayBatchSize      int
	RelayPollInterval   time.Duration
	RelayHandlerTimeout time.Duration
	RelayBaseBackoff    time.Duration
	RelayMaxBackoff     time.Duration
	RelayMaxAttempts    int

	InvoiceDueDays int
}

func LoadConfig() Config {
	return Config{
		Env:      envutil.Str("APP_ENV", "dev"),
		HTTPAddr: envutil.Str("HTTP_ADDR", ":8080"),

		KafkaBrokers: envutil.Str("KAFKA_BROKERS", ""),
		KafkaTopic:   envutil.Str("KAFKA_TOPIC", "commerce.events"),

		RedisAddr:     envutil.Str("REDIS_ADDR", ""),
		RedisPassword: envutil.Str("REDIS_PASSWORD", ""),

		RelayBatchSize:      envutil.Int("RELAY_BATCH_SIZE", 50),
		RelayPollInterval:   envutil.Dur("RELAY_POLL_INTERVAL", 2*time.Second),
		RelayHandlerTimeout: envutil.Dur("RELAY_HANDLER_TIMEOUT", 10*time.Second),
		RelayBaseBackoff:    envutil.Dur("RELAY_BASE_BACKOFF", 5*time.Second),
		RelayMaxBackoff:     envutil.Dur("RELAY_MAX_BACKOFF", 10*time.Minute),
		RelayMaxAttempts:    envutil.Int("RELAY_MAX_ATTEMPTS", 8),

		InvoiceDueDays: envutil.Int("INVOICE_DUE_DAYS", 30),
	}
}
