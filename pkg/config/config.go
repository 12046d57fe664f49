package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// SMTP configuration for outbound notifications
	SMTP SMTPConfig `mapstructure:"smtp"`

	// Moderation workflow configuration
	Moderation ModerationConfig `mapstructure:"moderation"`

	// Reporting window defaults applied to new laboratories
	Windows WindowConfig `mapstructure:"windows"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`

	// Monitoring configuration
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// SMTPConfig holds outbound mail configuration. When Host is empty the
// mailer logs messages instead of sending them.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// ModerationConfig holds the moderated-proposal workflow configuration
type ModerationConfig struct {
	// TokenSecret signs moderation link tokens (HS256)
	TokenSecret string `mapstructure:"token_secret"`

	// TokenTTLHours bounds moderation link validity
	TokenTTLHours int `mapstructure:"token_ttl_hours"`

	// Moderators receive action links for every new proposal
	Moderators []string `mapstructure:"moderators"`

	// BaseURL is the externally reachable prefix for action links
	BaseURL string `mapstructure:"base_url"`
}

// WindowConfig holds default reporting window thresholds
type WindowConfig struct {
	EditDeadlineDay  int    `mapstructure:"edit_deadline_day"`
	CaptureCutoffDay int    `mapstructure:"capture_cutoff_day"`
	Timezone         string `mapstructure:"timezone"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
	HealthPath  string `mapstructure:"health_path"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/evaluat")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Override with environment variables
	overrideWithEnv(&config)

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "evaluat")
	viper.SetDefault("database.user", "evaluat")
	viper.SetDefault("database.ssl_mode", "require")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// SMTP defaults
	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("smtp.from", "no-reply@evaluat.local")

	// Moderation defaults
	viper.SetDefault("moderation.token_ttl_hours", 72)
	viper.SetDefault("moderation.base_url", "http://localhost:8080")

	// Reporting window defaults
	viper.SetDefault("windows.edit_deadline_day", 15)
	viper.SetDefault("windows.capture_cutoff_day", 25)
	viper.SetDefault("windows.timezone", "America/Mexico_City")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")
	viper.SetDefault("monitoring.health_path", "/health")

	// Logging defaults
	viper.SetDefault("log_level", "info")
}

// overrideWithEnv overrides configuration with environment variables
func overrideWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if secret := os.Getenv("MODERATION_TOKEN_SECRET"); secret != "" {
		config.Moderation.TokenSecret = secret
	}

	if moderators := os.Getenv("MODERATION_MODERATORS"); moderators != "" {
		config.Moderation.Moderators = strings.Split(moderators, ",")
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Moderation.TokenSecret == "" {
		return fmt.Errorf("moderation token secret is required")
	}

	if config.Database.Password == "" {
		return fmt.Errorf("database password is required")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Windows.EditDeadlineDay < 1 || config.Windows.EditDeadlineDay > 28 {
		return fmt.Errorf("invalid edit deadline day: %d", config.Windows.EditDeadlineDay)
	}

	if config.Windows.CaptureCutoffDay < 1 || config.Windows.CaptureCutoffDay > 28 {
		return fmt.Errorf("invalid capture cutoff day: %d", config.Windows.CaptureCutoffDay)
	}

	return nil
}
