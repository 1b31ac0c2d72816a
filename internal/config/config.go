package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"3002"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	Database  DatabaseConfig
	QA        QAConfig
	Scheduler SchedulerConfig
	Storage   StorageConfig
	Otel      OtelConfig

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30m"` // a full run can be triggered synchronously
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"2m"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"reactome"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"reactome"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"2"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// QAConfig selects the schema, the instance source and the check suite.
type QAConfig struct {
	// SchemaSource is "file" (SchemaPath) or "database" (schema tables).
	SchemaSource string `env:"QA_SCHEMA_SOURCE" envDefault:"file"`
	SchemaPath   string `env:"QA_SCHEMA_PATH" envDefault:"configs/schema.yaml"`

	// SnapshotPath, when set, loads instances from a YAML snapshot instead
	// of the database.
	SnapshotPath string `env:"QA_SNAPSHOT_PATH" envDefault:""`

	// SuitePath overrides the built-in suite.
	SuitePath string `env:"QA_SUITE_PATH" envDefault:""`

	// Parallelism overrides the suite's parallelism when positive.
	Parallelism int `env:"QA_PARALLELISM" envDefault:"0"`

	// QueryRateLimit caps store queries per second; 0 disables the limit.
	QueryRateLimit float64 `env:"QA_QUERY_RATE_LIMIT" envDefault:"0"`
	QueryBurst     int     `env:"QA_QUERY_BURST" envDefault:"5"`
}

// UsesDatabase reports whether instances or schema come from PostgreSQL.
func (q *QAConfig) UsesDatabase() bool {
	return q.SnapshotPath == "" || q.SchemaSource == "database"
}

// SchedulerConfig controls periodic runs.
type SchedulerConfig struct {
	Enabled bool `env:"SCHEDULER_ENABLED" envDefault:"false"`
	// Cron format: "second minute hour day-of-month month day-of-week"
	RunCron string `env:"QA_RUN_CRON" envDefault:"0 0 3 * * *"`
}

// StorageConfig holds S3-compatible archive settings
type StorageConfig struct {
	// Endpoint is the S3 endpoint; empty uses AWS defaults
	Endpoint        string `env:"S3_ENDPOINT" envDefault:""`
	AccessKeyID     string `env:"S3_ACCESS_KEY" envDefault:""`
	SecretAccessKey string `env:"S3_SECRET_KEY" envDefault:""`
	Bucket          string `env:"S3_BUCKET" envDefault:""`
	Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	Prefix          string `env:"S3_PREFIX" envDefault:"release-qa"`
}

// IsConfigured returns true if run archiving is configured
func (s *StorageConfig) IsConfigured() bool {
	return s.Bucket != ""
}

// OtelConfig holds OpenTelemetry configuration.
// Tracing is disabled when ExporterEndpoint is empty.
type OtelConfig struct {
	ExporterEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	ServiceName      string  `env:"OTEL_SERVICE_NAME" envDefault:"release-qa"`
	SamplingRate     float64 `env:"OTEL_SAMPLING_RATE" envDefault:"1.0"`
}

// Enabled returns true when an OTLP endpoint is configured.
func (c OtelConfig) Enabled() bool {
	return c.ExporterEndpoint != ""
}

// Load parses the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// NewConfig loads configuration from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
		slog.String("schema_source", cfg.QA.SchemaSource),
		slog.Bool("archive", cfg.Storage.IsConfigured()),
	)

	return cfg, nil
}
