package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/reservoir-volume-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// AGHyRE webservice.
	AghyreURL          string
	AghyreLogin        string
	AghyrePassword     string
	AghyreCodification string
	AghyreInsecureTLS  bool
	AghyreTimeout      time.Duration

	// Retry policy, disabled when FetchMaxRetries is 0.
	FetchMaxRetries      int
	FetchRetryMaxElapsed time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Publishing, each sink disabled when unset.
	KafkaBrokers     []string
	KafkaReportTopic string
	SQLitePath       string

	ReportCacheSize int
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore missing file

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}
	aghyreTimeout, err := parseDuration("AGHYRE_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	retryMaxElapsed, err := parseDuration("FETCH_RETRY_MAX_ELAPSED", "2m")
	if err != nil {
		return nil, err
	}
	maxRetries, err := parseInt("FETCH_MAX_RETRIES", 0)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("REPORT_CACHE_SIZE", 24)
	if err != nil {
		return nil, err
	}
	insecure, err := strconv.ParseBool(sharedcfg.EnvOrDefault("AGHYRE_INSECURE_TLS", "true"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AGHYRE_INSECURE_TLS", domain.ErrConfig)
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	cfg := &Config{
		AghyreURL:          sharedcfg.EnvOrDefault("AGHYRE_URL", "https://www.vnf.fr/aghyre/api/diffusion/donnees"),
		AghyreLogin:        os.Getenv("AGHYRE_LOGIN"),
		AghyrePassword:     os.Getenv("AGHYRE_PASSWORD"),
		AghyreCodification: sharedcfg.EnvOrDefault("AGHYRE_CODIFICATION", "ID_AGHYRE"),
		AghyreInsecureTLS:  insecure,
		AghyreTimeout:      aghyreTimeout,

		FetchMaxRetries:      maxRetries,
		FetchRetryMaxElapsed: retryMaxElapsed,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:     brokers,
		KafkaReportTopic: sharedcfg.EnvOrDefault("KAFKA_REPORT_TOPIC", "reservoir-synthesis"),
		SQLitePath:       os.Getenv("SQLITE_PATH"),

		ReportCacheSize: cacheSize,
	}

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaReportTopic == "" {
		return nil, fmt.Errorf("%w: KAFKA_REPORT_TOPIC is required when KAFKA_BROKERS is set", domain.ErrConfig)
	}
	return cfg, nil
}

// RequireCredentials reports whether the webservice credentials are set. Only
// acquisition needs them.
func (c *Config) RequireCredentials() error {
	if c.AghyreLogin == "" {
		return fmt.Errorf("%w: AGHYRE_LOGIN is required", domain.ErrConfig)
	}
	if c.AghyrePassword == "" {
		return fmt.Errorf("%w: AGHYRE_PASSWORD is required", domain.ErrConfig)
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", domain.ErrConfig, key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid %s", domain.ErrConfig, key)
	}
	return n, nil
}
