package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config
// file. Environment variables take precedence over values from config
// files. Returns a populated Config struct or an error if loading or
// validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file in the working directory.
	v.SetConfigName("forma")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables: FORMA_SERVER_PORT -> server.port.
	v.SetEnvPrefix("FORMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every known key. Secrets default to empty strings:
// viper only reads environment variables for keys it already knows about,
// so each key needs at least a default to be bindable.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("auth.rate_limit_per_minute", 60)

	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl_seconds", 3600)
	v.SetDefault("cache.max_local_entries", 1000)

	v.SetDefault("storage.kind", "local")
	v.SetDefault("storage.local_dir", "./data/models")
	v.SetDefault("storage.s3_bucket", "")
	v.SetDefault("storage.s3_region", "")
	v.SetDefault("storage.s3_access_key", "")
	v.SetDefault("storage.s3_secret_key", "")
	v.SetDefault("storage.s3_endpoint", "")

	v.SetDefault("provider.default", "meshy")
	v.SetDefault("provider.meshy.base_url", "https://api.meshy.ai")
	v.SetDefault("provider.meshy.api_key", "")
	v.SetDefault("provider.meshy.poll_interval_seconds", 5)
	v.SetDefault("provider.meshy.max_duration_seconds", 300)
	v.SetDefault("provider.sketchfab.base_url", "https://api.sketchfab.com/v3")
	v.SetDefault("provider.sketchfab.api_token", "")
	v.SetDefault("provider.sketchfab.min_interval_ms", 1000)
}
