package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for all environment variables read by Load,
// e.g. ANKIBRIDGE_SERVER_PORT or ANKIBRIDGE_ANKI_CONNECT_URL.
const envPrefix = "ANKIBRIDGE"

// Load reads configuration from environment variables, applies defaults,
// and validates the result. Returns a populated Config struct or an error
// describing which settings are missing or invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("anki.connect_url", "http://localhost:8765")
	v.SetDefault("anki.deck_prefix", "Language Learning")
	v.SetDefault("anki.timeout", "10s")
	v.SetDefault("worker.poll_interval", "30s")
	v.SetDefault("worker.batch_size", 25)
	v.SetDefault("worker.max_backoff", "10m")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not surface env-only keys through Unmarshal,
	// so every key is bound explicitly.
	for _, key := range []string{
		"server.port", "server.log_level",
		"database.url",
		"auth.jwt_secret", "auth.export_key",
		"anki.connect_url", "anki.deck_prefix", "anki.timeout",
		"worker.poll_interval", "worker.batch_size", "worker.max_backoff",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate runs struct-tag validation and converts the result into a
// readable error listing every failed setting.
func validate(cfg *Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	problems := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		problems = append(problems, fmt.Sprintf("%s (%s)", fieldErr.Namespace(), fieldErr.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
}
