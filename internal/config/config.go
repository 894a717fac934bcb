package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Anki     AnkiConfig     `mapstructure:"anki"     validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains authentication settings. JWTSecret verifies the
// tokens minted by the session layer that fronts this service; ExportKey
// protects the bulk export endpoint.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
	ExportKey string `mapstructure:"export_key" validate:"required"`
}

// AnkiConfig contains the settings for reaching the local AnkiConnect
// endpoint.
type AnkiConfig struct {
	ConnectURL string        `mapstructure:"connect_url" validate:"required,url"`
	DeckPrefix string        `mapstructure:"deck_prefix" validate:"required"`
	Timeout    time.Duration `mapstructure:"timeout"     validate:"required"`
}

// WorkerConfig contains the sync worker's scheduling bounds.
type WorkerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required"`
	BatchSize    int           `mapstructure:"batch_size"    validate:"required,gt=0,lte=500"`
	MaxBackoff   time.Duration `mapstructure:"max_backoff"   validate:"required"`
}
