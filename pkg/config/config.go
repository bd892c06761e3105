package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config represents the reconciler application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`

	// RoutesFile points at the YAML route registry document.
	RoutesFile string `mapstructure:"routes_file" validate:"required"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	// MaxOpenConns caps the pool; every route cycle shares it.
	MaxOpenConns int `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// SyncConfig contains reconciliation engine settings. Per-route overrides
// live in the route registry; these are the process-wide defaults.
type SyncConfig struct {
	// DefaultInterval is how often a route's reconciliation cycle fires.
	DefaultInterval time.Duration `mapstructure:"default_interval"`
	// IngestPageSize bounds how many new transfer events one cycle pulls.
	IngestPageSize int `mapstructure:"ingest_page_size" validate:"gte=1,lte=100"`
	// StatusPageSize bounds how many unsettled records one cycle polls.
	StatusPageSize int `mapstructure:"status_page_size" validate:"gte=1,lte=100"`
	// ReorgWindow is how long a record may stay pending before its nonce
	// slot is re-checked against the source indexer.
	ReorgWindow time.Duration `mapstructure:"reorg_window"`
	// WithdrawCadence queries the withdraw-waiting batch every Nth cycle.
	WithdrawCadence int `mapstructure:"withdraw_cadence" validate:"gte=1"`
	// IndexerTimeout applies to every outbound indexer query.
	IndexerTimeout time.Duration `mapstructure:"indexer_timeout"`
}

// NotifyConfig contains downstream event publishing settings
type NotifyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	NatsURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "bridge_reconciler")
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.max_idle_conns", 5)

	// Sync defaults
	viper.SetDefault("sync.default_interval", "10s")
	viper.SetDefault("sync.ingest_page_size", 20)
	viper.SetDefault("sync.status_page_size", 20)
	viper.SetDefault("sync.reorg_window", "900s")
	viper.SetDefault("sync.withdraw_cadence", 5)
	viper.SetDefault("sync.indexer_timeout", "10s")

	// Notify defaults
	viper.SetDefault("notify.enabled", false)
	viper.SetDefault("notify.nats_url", "nats://localhost:4222")
	viper.SetDefault("notify.subject", "bridge.records.settled")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")

	viper.SetDefault("routes_file", "routes.yaml")
}
