package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Webhooks WebhooksConfig `mapstructure:"webhooks"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// GatewayConfig defines the presence event source connection
type GatewayConfig struct {
	URL              string   `mapstructure:"url"`
	Token            string   `mapstructure:"token"`
	ProfileURL       string   `mapstructure:"profile_url"` // Base URL for on-demand display name lookups
	Identities       []string `mapstructure:"identities"`  // Identity IDs to monitor
	NameCacheSize    int      `mapstructure:"name_cache_size"`
	ReconnectMin     string   `mapstructure:"reconnect_min"`
	ReconnectMax     string   `mapstructure:"reconnect_max"`
	HandshakeTimeout string   `mapstructure:"handshake_timeout"`
}

// StorageConfig defines where the session log lives
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// WebhooksConfig defines outbound notification endpoints
type WebhooksConfig struct {
	Status  WebhookConfig `mapstructure:"status"`  // Per-transition status updates
	Reports WebhookConfig `mapstructure:"reports"` // Aggregation reports
}

// WebhookConfig defines a single webhook destination
type WebhookConfig struct {
	URL       string `mapstructure:"url"`
	Username  string `mapstructure:"username"`
	AvatarURL string `mapstructure:"avatar_url"`
}

// AdminConfig defines the administrative HTTP API
type AdminConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BindAddress string `mapstructure:"bind_address"`
	Port        int    `mapstructure:"port"`
}

// MetricsConfig defines the metrics endpoint
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BindAddress string `mapstructure:"bind_address"`
	Port        int    `mapstructure:"port"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("PRESENCED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Gateway defaults
	v.SetDefault("gateway.name_cache_size", 256)
	v.SetDefault("gateway.reconnect_min", "1s")
	v.SetDefault("gateway.reconnect_max", "1m")
	v.SetDefault("gateway.handshake_timeout", "10s")
	v.SetDefault("gateway.identities", []string{})

	// Storage defaults
	v.SetDefault("storage.path", "/var/lib/presenced/session_data.json")

	// Webhook defaults
	v.SetDefault("webhooks.status.username", "Session Monitor")
	v.SetDefault("webhooks.reports.username", "Data Analyst")

	// Admin defaults
	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.bind_address", "127.0.0.1")
	v.SetDefault("admin.port", 8081)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.bind_address", "0.0.0.0")
	v.SetDefault("metrics.port", 9091)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}

	if cfg.Admin.Port <= 0 || cfg.Admin.Port > 65535 {
		return fmt.Errorf("invalid admin port: %d", cfg.Admin.Port)
	}
	if cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Metrics.Port)
	}

	if cfg.Gateway.NameCacheSize <= 0 {
		return fmt.Errorf("gateway name cache size must be positive")
	}

	// Ensure storage directory exists
	storageDir := filepath.Dir(cfg.Storage.Path)
	if err := os.MkdirAll(storageDir, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	return nil
}
