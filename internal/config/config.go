package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Blacklist BlacklistConfig `yaml:"blacklist"`
	Auth      AuthConfig      `yaml:"auth"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the item storage database settings.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	Driver          string `yaml:"driver"` // "postgres" (lib/pq) or "pgx"
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// Lifetime returns the connection max lifetime as a duration
func (c DatabaseConfig) Lifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Second
}

// RedisConfig holds Redis connection settings. Redis is optional; when URL is
// empty the settings store and writer lock fall back to other backends.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig selects the settings backend that holds the blacklist.
type StorageConfig struct {
	Type          string `yaml:"type"` // memory, local, postgres, sqlite, redis, s3, dynamodb
	LocalPath     string `yaml:"local_path"`
	SQLitePath    string `yaml:"sqlite_path"`
	Table         string `yaml:"table"`
	RedisPrefix   string `yaml:"redis_prefix"`
	S3Bucket      string `yaml:"s3_bucket"`
	S3Prefix      string `yaml:"s3_prefix"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	AWSRegion     string `yaml:"aws_region"`
	AWSProfile    string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	AWSAccessKey  string `yaml:"aws_access_key"`
	AWSSecretKey  string `yaml:"aws_secret_key"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// BlacklistConfig controls the feed item blacklist.
type BlacklistConfig struct {
	SettingsKey      string `yaml:"settings_key"`
	ItemKind         string `yaml:"item_kind"`
	ListingURL       string `yaml:"listing_url"` // Liquid template, receives kind and paged
	ActionURL        string `yaml:"action_url"`  // Liquid template, receives id, kind, paged and nonce
	PersistAttempts  int    `yaml:"persist_attempts"`
	RetryDelayMillis int    `yaml:"retry_delay_ms"`
	LockTTLSeconds   int    `yaml:"lock_ttl_seconds"`
	LockWaitMillis   int    `yaml:"lock_wait_ms"`
	DistributedLock  bool   `yaml:"distributed_lock"`
}

// RetryDelay returns the base delay between persistence attempts
func (c BlacklistConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMillis) * time.Millisecond
}

// LockTTL returns the writer lock TTL
func (c BlacklistConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// LockWait returns how long a writer waits for the lock before giving up
func (c BlacklistConfig) LockWait() time.Duration {
	return time.Duration(c.LockWaitMillis) * time.Millisecond
}

// AuthConfig holds the nonce guard configuration for the blacklist command.
type AuthConfig struct {
	NonceSecret          string `yaml:"nonce_secret"`
	NonceLifetimeSeconds int    `yaml:"nonce_lifetime_seconds"`
	Disabled             bool   `yaml:"disabled"`
}

// NonceLifetime returns the nonce lifetime as a duration
func (c AuthConfig) NonceLifetime() time.Duration {
	return time.Duration(c.NonceLifetimeSeconds) * time.Second
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "postgres"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data/settings"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "./data/settings.db"
	}
	if cfg.Storage.Table == "" {
		cfg.Storage.Table = "feed_settings"
	}
	if cfg.Storage.RedisPrefix == "" {
		cfg.Storage.RedisPrefix = "settings:"
	}
	if cfg.Storage.S3Prefix == "" {
		cfg.Storage.S3Prefix = "settings/"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-west-2"
	}
	if cfg.Blacklist.SettingsKey == "" {
		cfg.Blacklist.SettingsKey = "feed_blacklist"
	}
	if cfg.Blacklist.ItemKind == "" {
		cfg.Blacklist.ItemKind = "feed_item"
	}
	if cfg.Blacklist.ListingURL == "" {
		cfg.Blacklist.ListingURL = "/admin/feed-items?kind={{ kind }}{% if paged > 0 %}&paged={{ paged }}{% endif %}"
	}
	if cfg.Blacklist.ActionURL == "" {
		cfg.Blacklist.ActionURL = "/admin/feed-items/blacklist?item={{ id }}&_nonce={{ nonce }}{% if paged > 0 %}&paged={{ paged }}{% endif %}"
	}
	if cfg.Blacklist.PersistAttempts == 0 {
		cfg.Blacklist.PersistAttempts = 2
	}
	if cfg.Blacklist.RetryDelayMillis == 0 {
		cfg.Blacklist.RetryDelayMillis = 200
	}
	if cfg.Blacklist.LockTTLSeconds == 0 {
		cfg.Blacklist.LockTTLSeconds = 30
	}
	if cfg.Blacklist.LockWaitMillis == 0 {
		cfg.Blacklist.LockWaitMillis = 5000
	}
	if cfg.Auth.NonceLifetimeSeconds == 0 {
		cfg.Auth.NonceLifetimeSeconds = 86400
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("SETTINGS_STORE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("SETTINGS_S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("SETTINGS_DYNAMODB_TABLE"); v != "" {
		cfg.Storage.DynamoDBTable = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.AWSAccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.AWSSecretKey = v
	}
	if v := os.Getenv("BLACKLIST_NONCE_SECRET"); v != "" {
		cfg.Auth.NonceSecret = v
	}
	if v := os.Getenv("BLACKLIST_ITEM_KIND"); v != "" {
		cfg.Blacklist.ItemKind = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	return cfg, nil
}
