// Package config holds the runtime configuration of the loan engine binaries.
// Values come from an optional .env file layered under environment variables.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/loan-lifecycle-engine/internal/domain/interest"
)

// Config aggregates the settings of every subsystem. It is validated once at startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Outbox      OutboxConfig
	WorkerPool  WorkerPoolConfig
	Interest    InterestConfig
}

type ApplicationConfig struct {
	Env  string
	Name string
}

type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// KafkaConfig covers the lifecycle event stream, the repayment intake topic and its DLQ.
type KafkaConfig struct {
	Brokers           string
	LoanEventsTopic   string
	RepaymentTopic    string
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string
}

type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// MigrationsPath overrides the embedded schema with a directory on disk.
	MigrationsPath string
}

type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RedisConfig backs the Idempotency-Key store of the HTTP gateway.
type RedisConfig struct {
	Addr           string
	DB             int
	IdempotencyTTL time.Duration
}

// AuthConfig holds the shared secret used to verify caller identity tokens
// minted by the upstream auth service.
type AuthConfig struct {
	CallerTokenSecret string
}

type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
}

type WorkerPoolConfig struct {
	Size int
}

// InterestConfig carries the annual base rate per loan type (percent) and the accepted credit score band.
type InterestConfig struct {
	RateProperty  float64
	RateEducation float64
	RateGold      float64
	RateVehicle   float64
	ScoreMin      int
	ScoreMax      int
}

// RateSchedule converts the interest settings into the calculator's schedule.
func (c *Config) RateSchedule() interest.RateSchedule {
	schedule := interest.DefaultRateSchedule()
	schedule.BaseRates = map[string]float64{
		interest.LoanTypeProperty:  c.Interest.RateProperty,
		interest.LoanTypeEducation: c.Interest.RateEducation,
		interest.LoanTypeGold:      c.Interest.RateGold,
		interest.LoanTypeVehicle:   c.Interest.RateVehicle,
	}
	schedule.MinScore = c.Interest.ScoreMin
	schedule.MaxScore = c.Interest.ScoreMax
	return schedule
}

// validate collects every violation so a misconfigured deployment is reported in one pass
func (c *Config) validate() error {
	var validationErrors []string

	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.LoanEventsTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_LOAN_EVENTS_TOPIC is required")
	}
	if c.Kafka.RepaymentTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_REPAYMENT_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}

	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	if c.Redis.Addr == "" {
		validationErrors = append(validationErrors, "REDIS_ADDR is required")
	}
	if c.Redis.IdempotencyTTL <= 0 {
		validationErrors = append(validationErrors, "REDIS_IDEMPOTENCY_TTL must be greater than 0")
	}

	if c.Auth.CallerTokenSecret == "" {
		validationErrors = append(validationErrors, "AUTH_CALLER_TOKEN_SECRET is required")
	}

	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	}

	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	for name, rate := range map[string]float64{
		"INTEREST_RATE_PROPERTY":  c.Interest.RateProperty,
		"INTEREST_RATE_EDUCATION": c.Interest.RateEducation,
		"INTEREST_RATE_GOLD":      c.Interest.RateGold,
		"INTEREST_RATE_VEHICLE":   c.Interest.RateVehicle,
	} {
		if rate <= 0 {
			validationErrors = append(validationErrors, name+" must be greater than 0")
		}
	}
	if c.Interest.ScoreMin <= 0 || c.Interest.ScoreMax < c.Interest.ScoreMin {
		validationErrors = append(validationErrors, "INTEREST_SCORE_MIN and INTEREST_SCORE_MAX must form a positive band")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
