package config

import (
	"fmt"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"clover-api"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Tracing
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:""`

	// PostgreSQL
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"clover"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis (scheduler coordination)
	RedisAddr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Kafka Consumer (ingestion company events)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"company-events"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"clover-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`

	// Kafka Producer (duplicate events)
	KafkaOutputTopic  string `env:"KAFKA_OUTPUT_TOPIC" env-default:"duplicate-events"`
	KafkaBatchSize    int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Matching weights (renormalized over present fields)
	NameWeight    float64 `env:"MATCH_NAME_WEIGHT" env-default:"0.40"`
	AddressWeight float64 `env:"MATCH_ADDRESS_WEIGHT" env-default:"0.20"`
	PhoneWeight   float64 `env:"MATCH_PHONE_WEIGHT" env-default:"0.20"`
	WebsiteWeight float64 `env:"MATCH_WEBSITE_WEIGHT" env-default:"0.20"`

	// Per-field gates: scores below the gate count as 0 in the aggregate
	NameGate    float64 `env:"MATCH_NAME_GATE" env-default:"0.85"`
	AddressGate float64 `env:"MATCH_ADDRESS_GATE" env-default:"0.80"`
	PhoneGate   float64 `env:"MATCH_PHONE_GATE" env-default:"0.90"`
	WebsiteGate float64 `env:"MATCH_WEBSITE_GATE" env-default:"0.95"`

	// Classification thresholds
	AutoMergeThreshold float64 `env:"AUTO_MERGE_THRESHOLD" env-default:"0.95"`
	CandidateThreshold float64 `env:"CANDIDATE_THRESHOLD" env-default:"0.80"`

	// Phone normalization: country code substituted for a leading 0
	DefaultCountryCode string `env:"DEFAULT_COUNTRY_CODE" env-default:"49"`

	// Detection
	MaxPoolSize         int `env:"MATCH_MAX_POOL_SIZE" env-default:"50"`
	DetectorWorkerCount int `env:"DETECTOR_WORKER_COUNT" env-default:"4"`

	// Batch scan
	ScanBatchSize    int           `env:"SCAN_BATCH_SIZE" env-default:"100"`
	ScanWorkerCount  int           `env:"SCAN_WORKER_COUNT" env-default:"4"`
	ScanBatchTimeout time.Duration `env:"SCAN_BATCH_TIMEOUT" env-default:"2m"`
	ScanInterval     time.Duration `env:"SCAN_INTERVAL" env-default:"24h"`

	// Retention
	CandidateRetentionDays  int           `env:"CANDIDATE_RETENTION_DAYS" env-default:"90"`
	CleanupDeleteConfirmed  bool          `env:"CLEANUP_DELETE_CONFIRMED" env-default:"false"`
	JanitorInterval         time.Duration `env:"JANITOR_INTERVAL" env-default:"168h"`
	SchedulerPollInterval   time.Duration `env:"SCHEDULER_POLL_INTERVAL" env-default:"30s"`
	SchedulerLockTTL        time.Duration `env:"SCHEDULER_LOCK_TTL" env-default:"10m"`
	SchedulerEnabled        bool          `env:"SCHEDULER_ENABLED" env-default:"true"`
}

// Load reads the environment (plus an optional .env file) into a Config.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate rejects configurations that would misbehave at runtime.
// Called once at startup so bad thresholds never reach the hot path.
func (c Config) Validate() error {
	unit := map[string]float64{
		"MATCH_NAME_WEIGHT":    c.NameWeight,
		"MATCH_ADDRESS_WEIGHT": c.AddressWeight,
		"MATCH_PHONE_WEIGHT":   c.PhoneWeight,
		"MATCH_WEBSITE_WEIGHT": c.WebsiteWeight,
		"MATCH_NAME_GATE":      c.NameGate,
		"MATCH_ADDRESS_GATE":   c.AddressGate,
		"MATCH_PHONE_GATE":     c.PhoneGate,
		"MATCH_WEBSITE_GATE":   c.WebsiteGate,
		"AUTO_MERGE_THRESHOLD": c.AutoMergeThreshold,
		"CANDIDATE_THRESHOLD":  c.CandidateThreshold,
	}
	for name, value := range unit {
		if value < 0 || value > 1 {
			return fmt.Errorf("config: %s must be within [0,1], got %v", name, value)
		}
	}

	if c.AutoMergeThreshold < c.CandidateThreshold {
		return fmt.Errorf("config: AUTO_MERGE_THRESHOLD (%v) must be >= CANDIDATE_THRESHOLD (%v)",
			c.AutoMergeThreshold, c.CandidateThreshold)
	}

	if c.NameWeight+c.AddressWeight+c.PhoneWeight+c.WebsiteWeight <= 0 {
		return fmt.Errorf("config: matching weights must not all be zero")
	}

	if c.ScanBatchSize <= 0 {
		return fmt.Errorf("config: SCAN_BATCH_SIZE must be positive, got %d", c.ScanBatchSize)
	}

	if c.CandidateRetentionDays <= 0 {
		return fmt.Errorf("config: CANDIDATE_RETENTION_DAYS must be positive, got %d", c.CandidateRetentionDays)
	}

	if c.MaxPoolSize <= 0 {
		return fmt.Errorf("config: MATCH_MAX_POOL_SIZE must be positive, got %d", c.MaxPoolSize)
	}

	return nil
}
