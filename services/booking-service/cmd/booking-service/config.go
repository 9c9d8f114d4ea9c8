package main

import (
	"fmt"
	"time"

	"github.com/Omarch29/sloty-saas-appointment-system/libs/config"
)

type serviceConfig struct {
	Service            string
	HTTPPort           string
	GRPCPort           string
	DatabaseURL        string
	LogLevel           string
	KafkaBrokers       string
	RedisAddr          string
	RateLimitPerMinute int
	RateLimitFailOpen  bool
	ReservationTimeout time.Duration
	DBLockTimeout      time.Duration
	DBStatementTimeout time.Duration
	DBMaxConns         int
	MarkOccupancy      bool
	MaxQueryRangeDays  int
	CORSAllowedOrigins []string
	OutboxPollEvery    time.Duration
	OutboxBatchSize    int
	ShutdownTimeout    time.Duration
}

func loadConfig() (serviceConfig, error) {
	cfg := serviceConfig{
		Service:            config.String("SERVICE_NAME", "booking-service"),
		LogLevel:           config.String("LOG_LEVEL", "info"),
		KafkaBrokers:       config.String("KAFKA_BROKERS", ""),
		RedisAddr:          config.String("REDIS_ADDR", ""),
		CORSAllowedOrigins: config.List("CORS_ALLOWED_ORIGINS"),
	}

	var err error
	if cfg.HTTPPort, err = config.Port("PORT", "8083"); err != nil {
		return cfg, err
	}
	if cfg.GRPCPort, err = config.Port("GRPC_PORT", "9093"); err != nil {
		return cfg, err
	}
	if cfg.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
		return cfg, err
	}
	if cfg.RateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return cfg, err
	}
	if cfg.RateLimitFailOpen, err = config.Bool("RATE_LIMIT_FAIL_OPEN", true); err != nil {
		return cfg, err
	}
	if cfg.ReservationTimeout, err = config.Duration("RESERVATION_TIMEOUT", 5*time.Second); err != nil {
		return cfg, err
	}
	if cfg.DBLockTimeout, err = config.Duration("DB_LOCK_TIMEOUT", 2*time.Second); err != nil {
		return cfg, err
	}
	if cfg.DBStatementTimeout, err = config.Duration("DB_STATEMENT_TIMEOUT", 10*time.Second); err != nil {
		return cfg, err
	}
	if cfg.DBMaxConns, err = config.Int("DB_MAX_CONNS", 20); err != nil {
		return cfg, err
	}
	if cfg.MarkOccupancy, err = config.Bool("AVAILABILITY_MARK_OCCUPANCY", false); err != nil {
		return cfg, err
	}
	if cfg.MaxQueryRangeDays, err = config.Int("MAX_QUERY_RANGE_DAYS", 62); err != nil {
		return cfg, err
	}
	if cfg.OutboxPollEvery, err = config.Duration("OUTBOX_POLL_EVERY", 2*time.Second); err != nil {
		return cfg, err
	}
	if cfg.OutboxBatchSize, err = config.Int("OUTBOX_BATCH_SIZE", 50); err != nil {
		return cfg, err
	}
	if cfg.ShutdownTimeout, err = config.Duration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return cfg, err
	}

	switch {
	case cfg.ReservationTimeout <= 0:
		return cfg, fmt.Errorf("RESERVATION_TIMEOUT must be positive (got %s)", cfg.ReservationTimeout)
	case cfg.MaxQueryRangeDays < 1:
		return cfg, fmt.Errorf("MAX_QUERY_RANGE_DAYS must be at least 1 (got %d)", cfg.MaxQueryRangeDays)
	case cfg.RateLimitPerMinute < 0:
		return cfg, fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative (got %d)", cfg.RateLimitPerMinute)
	}
	return cfg, nil
}
