package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/teambition/rrule-go"

	"github.com/bibbank/bnpl/pkg/auth"
	"github.com/bibbank/bnpl/pkg/kafka"
	"github.com/bibbank/bnpl/pkg/observability"
	"github.com/bibbank/bnpl/pkg/postgres"
)

type DatabaseConfig struct {
	Host             string
	Port             int
	User             string
	Password         string
	Name             string
	SSLMode          string
	MaxConns         int
	// StatementTimeout caps any single query.
	StatementTimeout time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	EventsTopic   string
	PaymentsTopic string
	ConsumerGroup string
	TLS           bool
	SASLMechanism string
	SASLUsername  string
	SASLPassword  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AccrualConfig struct {
	// Rule is an RFC 5545 recurrence without DTSTART.
	Rule       string
	MaxRetries int
	BatchSize  int
	LockTTL    time.Duration
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

type JWTConfig struct {
	Secret        string
	PublicKeyFile string
	Issuer        string
	Leeway        time.Duration
}

// RateLimitConfig caps unary calls per tenant; RPS 0 disables the limiter.
type RateLimitConfig struct {
	RPS   int
	Burst int
}

type TLSConfig struct {
	CertFile     string
	KeyFile      string
	ClientCAFile string
}

type Config struct {
	GRPCPort       int
	HTTPPort       int
	DB             DatabaseConfig
	Kafka          KafkaConfig
	Redis          RedisConfig
	Accrual        AccrualConfig
	Outbox         OutboxConfig
	JWT            JWTConfig
	TLS            TLSConfig
	RateLimit      RateLimitConfig
	LogLevel       string
	LogFormat      string
	OTLPEndpoint   string
	MigrationsPath string
	ServiceName    string
	Reflection     bool
}

// Validate reports every setting that would stop the service from starting.
func (c Config) Validate() error {
	var errs []error
	if c.DB.Password == "" {
		errs = append(errs, errors.New("DB_PASSWORD environment variable is required"))
	}
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS must name at least one broker"))
	}
	if _, err := rrule.StrToROption(c.Accrual.Rule); err != nil {
		errs = append(errs, fmt.Errorf("ACCRUAL_RRULE: %w", err))
	}
	if c.Accrual.BatchSize <= 0 {
		errs = append(errs, errors.New("ACCRUAL_BATCH_SIZE must be positive"))
	}
	if c.JWT.Secret == "" && c.JWT.PublicKeyFile == "" {
		errs = append(errs, errors.New("one of JWT_SECRET or JWT_PUBLIC_KEY_FILE is required"))
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("GRPC_TLS_CERT_FILE and GRPC_TLS_KEY_FILE must be set together"))
	}
	if c.TLS.ClientCAFile != "" && c.TLS.CertFile == "" {
		errs = append(errs, errors.New("GRPC_TLS_CLIENT_CA_FILE requires GRPC_TLS_CERT_FILE"))
	}
	if c.RateLimit.RPS < 0 || (c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("GRPC_RATE_LIMIT_RPS must be >= 0 with a positive GRPC_RATE_LIMIT_BURST"))
	}
	return errors.Join(errs...)
}

// Load reads the configuration from the environment, after merging a .env
// file from the working directory when one exists. Variables already set in
// the environment win over the file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		GRPCPort: getEnvInt("GRPC_PORT", 9095),
		HTTPPort: getEnvInt("HTTP_PORT", 8095),
		DB: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "bib"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "bib_bnpl"),
			SSLMode:  getEnv("DB_SSLMODE", "require"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 20),

			StatementTimeout: getEnvDuration("DB_STATEMENT_TIMEOUT", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvList("KAFKA_BROKERS", "localhost:9092"),
			EventsTopic:   getEnv("KAFKA_EVENTS_TOPIC", "bnpl-events"),
			PaymentsTopic: getEnv("KAFKA_PAYMENTS_TOPIC", "payments.captured"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "bnpl-service"),
			TLS:           getEnvBool("KAFKA_TLS", false),
			SASLMechanism: getEnv("KAFKA_SASL_MECHANISM", ""),
			SASLUsername:  getEnv("KAFKA_SASL_USERNAME", ""),
			SASLPassword:  getEnv("KAFKA_SASL_PASSWORD", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Accrual: AccrualConfig{
			Rule:       getEnv("ACCRUAL_RRULE", "FREQ=DAILY;BYHOUR=1;BYMINUTE=0;BYSECOND=0"),
			MaxRetries: getEnvInt("ACCRUAL_MAX_RETRIES", 5),
			BatchSize:  getEnvInt("ACCRUAL_BATCH_SIZE", 200),
			LockTTL:    getEnvDuration("ACCRUAL_LOCK_TTL", 10*time.Minute),
		},
		Outbox: OutboxConfig{
			PollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize:    getEnvInt("OUTBOX_BATCH_SIZE", 100),
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET", ""),
			PublicKeyFile: getEnv("JWT_PUBLIC_KEY_FILE", ""),
			Issuer:        getEnv("JWT_ISSUER", "bib-auth"),
			Leeway:        getEnvDuration("JWT_LEEWAY", 30*time.Second),
		},
		TLS: TLSConfig{
			CertFile:     getEnv("GRPC_TLS_CERT_FILE", ""),
			KeyFile:      getEnv("GRPC_TLS_KEY_FILE", ""),
			ClientCAFile: getEnv("GRPC_TLS_CLIENT_CA_FILE", ""),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvInt("GRPC_RATE_LIMIT_RPS", 0),
			Burst: getEnvInt("GRPC_RATE_LIMIT_BURST", 20),
		},
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "file://internal/infrastructure/postgres/migrations"),
		ServiceName:    "bnpl-service",
		Reflection:     getEnvBool("GRPC_REFLECTION", false),
	}
}

func (c Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Postgres maps the database settings onto the pool config.
func (c Config) Postgres() postgres.Config {
	return postgres.Config{
		Host:     c.DB.Host,
		Port:     c.DB.Port,
		User:     c.DB.User,
		Password: c.DB.Password,
		Database: c.DB.Name,
		SSLMode:  c.DB.SSLMode,
		MaxConns: int32(c.DB.MaxConns),

		ApplicationName:  c.ServiceName,
		StatementTimeout: c.DB.StatementTimeout,
	}
}

// KafkaClient enables SASL once a username is configured.
func (c Config) KafkaClient() kafka.Config {
	cfg := kafka.Config{
		Brokers:       c.Kafka.Brokers,
		ConsumerGroup: c.Kafka.ConsumerGroup,
		TLS:           c.Kafka.TLS,
		WriteTimeout:  10 * time.Second,
	}
	if c.Kafka.SASLUsername != "" {
		cfg.SASL = &kafka.SASLConfig{
			Mechanism: c.Kafka.SASLMechanism,
			Username:  c.Kafka.SASLUsername,
			Password:  c.Kafka.SASLPassword,
		}
	}
	return cfg
}

func (c Config) Logging() observability.LogConfig {
	return observability.LogConfig{Level: c.LogLevel, Format: c.LogFormat, Service: c.ServiceName}
}

// Auth builds the JWT validator settings, reading the public key when set.
func (c Config) Auth() (auth.JWTConfig, error) {
	cfg := auth.JWTConfig{Secret: c.JWT.Secret, Issuer: c.JWT.Issuer, Leeway: c.JWT.Leeway}
	if c.JWT.PublicKeyFile != "" {
		pem, err := auth.LoadKeyFromFile(c.JWT.PublicKeyFile)
		if err != nil {
			return auth.JWTConfig{}, err
		}
		cfg.PublicKeyPEM = string(pem)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	var out []string
	for _, s := range strings.Split(getEnv(key, fallback), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
