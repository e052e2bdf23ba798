package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
	Provider ProviderConfig `mapstructure:"provider" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
// The URL is optional: without one the feedback endpoints are disabled.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret          string `mapstructure:"jwt_secret" validate:"required,min=32"`
	APIKey             string `mapstructure:"api_key"`
	TokenLifetimeMin   int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute" validate:"required,gt=0"`
}

// CacheConfig controls the result cache tiers.
type CacheConfig struct {
	// RedisURL is the shared store address; empty means local-only.
	RedisURL        string `mapstructure:"redis_url"`
	TTLSeconds      int    `mapstructure:"ttl_seconds" validate:"required,gt=0"`
	MaxLocalEntries int    `mapstructure:"max_local_entries" validate:"required,gt=0"`
}

// StorageConfig selects and configures the artifact storage backend.
type StorageConfig struct {
	Kind     string `mapstructure:"kind" validate:"required,oneof=local s3"`
	LocalDir string `mapstructure:"local_dir" validate:"required_if=Kind local"`

	S3Bucket    string `mapstructure:"s3_bucket" validate:"required_if=Kind s3"`
	S3Region    string `mapstructure:"s3_region" validate:"required_if=Kind s3"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3Endpoint  string `mapstructure:"s3_endpoint"`
}

// ProviderConfig selects the default provider and configures each one.
type ProviderConfig struct {
	Default   string          `mapstructure:"default" validate:"required,oneof=meshy localgen sketchfab"`
	Meshy     MeshyConfig     `mapstructure:"meshy"`
	Sketchfab SketchfabConfig `mapstructure:"sketchfab"`
}

// MeshyConfig configures the remote generation API client and its polling
// loop.
type MeshyConfig struct {
	BaseURL             string `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey              string `mapstructure:"api_key"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds" validate:"required,gt=0"`
	MaxDurationSeconds  int    `mapstructure:"max_duration_seconds" validate:"required,gt=0"`
}

// SketchfabConfig configures the content index client.
type SketchfabConfig struct {
	BaseURL       string `mapstructure:"base_url" validate:"omitempty,url"`
	APIToken      string `mapstructure:"api_token"`
	MinIntervalMS int    `mapstructure:"min_interval_ms" validate:"gte=0"`
}
