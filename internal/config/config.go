// Package config loads runtime settings from .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/db"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	DB          db.Config
	StoreDriver string
	HTTPPort    string
	GRPCPort    string
	LogLevel    string

	KafkaBrokers       []string
	NotificationsTopic string
	AuditTopic         string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int

	AdminUsername string
	AdminPassword string
}

// Load reads the first .env found in the working directory or its two
// parents, then builds the config from the environment. Variables already
// set in the environment win over the file.
func Load() (*Config, string, error) {
	source, err := loadEnv()
	if err != nil {
		return nil, "", err
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, source, err
	}
	return cfg, source, nil
}

func loadEnv() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("error getting working directory: %w", err)
	}

	possiblePaths := []string{
		filepath.Join(wd, ".env"),
		filepath.Join(wd, "..", ".env"),
		filepath.Join(wd, "..", "..", ".env"),
	}

	for _, envPath := range possiblePaths {
		if err := godotenv.Load(envPath); err == nil {
			return envPath, nil
		}
	}
	for _, envPath := range possiblePaths {
		examplePath := filepath.Join(filepath.Dir(envPath), ".example.env")
		if err := godotenv.Load(examplePath); err == nil {
			return examplePath, nil
		}
	}
	return "", nil
}

// FromEnv builds the config from environment variables only.
func FromEnv() (*Config, error) {
	var errs []error

	cfg := &Config{
		DB: db.Config{
			Host:     getString("DB_HOST", "localhost"),
			Port:     getInt("DB_PORT", 5432, &errs),
			User:     getString("POSTGRES_USER", "postgres"),
			Password: getString("POSTGRES_PASSWORD", ""),
			Name:     getString("POSTGRES_DB", "parcelhub"),
			MaxConns: int32(getInt("DB_MAX_CONNS", 0, &errs)),
		},
		StoreDriver: strings.ToLower(getString("STORE_DRIVER", DriverPostgres)),
		HTTPPort:    getString("HTTP_PORT", "9000"),
		GRPCPort:    getString("GRPC_PORT", "50051"),
		LogLevel:    getString("LOG_LEVEL", "debug"),

		KafkaBrokers:       splitList(getString("KAFKA_BROKERS", "localhost:9092")),
		NotificationsTopic: getString("KAFKA_NOTIFICATIONS_TOPIC", "hub_notifications"),
		AuditTopic:         getString("KAFKA_AUDIT_TOPIC", "audit_logs"),

		OutboxPollInterval: getDuration("OUTBOX_POLL_INTERVAL", 2*time.Second, &errs),
		OutboxBatchSize:    getInt("OUTBOX_BATCH_SIZE", 50, &errs),
		OutboxMaxAttempts:  getInt("OUTBOX_MAX_ATTEMPTS", 5, &errs),

		AdminUsername: getString("ADMIN_USERNAME", ""),
		AdminPassword: getString("ADMIN_PASSWORD", ""),
	}

	if cfg.StoreDriver != DriverPostgres && cfg.StoreDriver != DriverMemory {
		errs = append(errs, fmt.Errorf("STORE_DRIVER: unknown driver %q", cfg.StoreDriver))
	}
	if cfg.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE: must be positive"))
	}
	if cfg.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("OUTBOX_MAX_ATTEMPTS: must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getInt(key string, def int, errs *[]error) int {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
