package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"5600"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// Database settings
	Database DatabaseConfig

	// Schema settings
	Schema SchemaConfig

	// Graph write/delete behavior
	Graph GraphConfig

	// Search settings
	Search SearchConfig

	// Deferred shortcut-edge worker
	Shortcuts ShortcutWorkerConfig

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"pangloss"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"pangloss"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
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

// SchemaConfig holds model descriptor loading settings
type SchemaConfig struct {
	// Directory of YAML model descriptor files loaded at startup.
	// Empty means the registry starts with no models (tests register
	// descriptors programmatically).
	ModelDir string `env:"SCHEMA_MODEL_DIR" envDefault:""`
}

// GraphConfig holds graph write behavior settings
type GraphConfig struct {
	// PhysicalDelete switches delete from logical (is_deleted flag) to
	// physical row removal. Logical deletion is the default: deleted nodes
	// stay addressable for audit but are excluded from every read path.
	PhysicalDelete bool `env:"GRAPH_PHYSICAL_DELETE" envDefault:"false"`

	// MaxReadDepth caps recursive relation/embed resolution on reads.
	MaxReadDepth int `env:"GRAPH_MAX_READ_DEPTH" envDefault:"3"`
}

// SearchConfig holds full-text search settings
type SearchConfig struct {
	// PageSize is the fixed result-page ceiling.
	PageSize int `env:"SEARCH_PAGE_SIZE" envDefault:"50"`

	// PerTermLimit caps raw hits fetched per search term before head
	// resolution and intersection.
	PerTermLimit int `env:"SEARCH_PER_TERM_LIMIT" envDefault:"1000"`
}

// ShortcutWorkerConfig holds deferred shortcut-edge worker settings
type ShortcutWorkerConfig struct {
	PollInterval          time.Duration `env:"SHORTCUT_WORKER_POLL_INTERVAL" envDefault:"2s"`
	BatchSize             int           `env:"SHORTCUT_WORKER_BATCH_SIZE" envDefault:"20"`
	MaxAttempts           int           `env:"SHORTCUT_WORKER_MAX_ATTEMPTS" envDefault:"5"`
	BaseRetryDelaySec     int           `env:"SHORTCUT_WORKER_RETRY_DELAY_SEC" envDefault:"5"`
	MaxRetryDelaySec      int           `env:"SHORTCUT_WORKER_MAX_RETRY_DELAY_SEC" envDefault:"300"`
	StaleThresholdMinutes int           `env:"SHORTCUT_WORKER_STALE_THRESHOLD_MINUTES" envDefault:"10"`

	// StaleRecoverySchedule is a cron expression for periodic recovery of
	// jobs stuck in 'processing' after a crash.
	StaleRecoverySchedule string `env:"SHORTCUT_STALE_RECOVERY_SCHEDULE" envDefault:"@every 5m"`
}

// NewConfig loads configuration from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
		slog.String("model_dir", cfg.Schema.ModelDir),
	)

	return cfg, nil
}
