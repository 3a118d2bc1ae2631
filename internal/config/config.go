// Package config loads the worker configuration: a YAML file with defaults,
// overridden by environment variables so secrets stay out of the file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the outreach worker.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Provider  ProviderConfig  `yaml:"provider"`
	Storage   StorageConfig   `yaml:"storage"`
	Engine    EngineConfig    `yaml:"engine"`
	Compose   ComposeConfig   `yaml:"compose"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig is the webhook HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// DatabaseConfig is the Postgres connection.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig is the optional Redis used for distributed tick locks.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ProviderConfig is the LinkedIn provider API.
type ProviderConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// StorageConfig is the S3 bucket holding prospect lists and workflow
// documents.
type StorageConfig struct {
	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	AWSProfile string `yaml:"aws_profile"`
}

// EngineConfig tunes the tick cadence.
type EngineConfig struct {
	StepIntervalSeconds   int `yaml:"step_interval_seconds"`
	HourlyIntervalSeconds int `yaml:"hourly_interval_seconds"`
}

// StepInterval returns the due-step pass cadence.
func (c EngineConfig) StepInterval() time.Duration {
	return time.Duration(c.StepIntervalSeconds) * time.Second
}

// HourlyInterval returns the cadence of the scheduled-campaign and retry
// passes.
func (c EngineConfig) HourlyInterval() time.Duration {
	return time.Duration(c.HourlyIntervalSeconds) * time.Second
}

// ComposeConfig is the AI message generation via AWS Bedrock.
type ComposeConfig struct {
	Enabled bool   `yaml:"enabled"`
	ModelID string `yaml:"model_id"`
	Region  string `yaml:"region"`
}

// RateLimitConfig caps connection requests per campaign.
type RateLimitConfig struct {
	Daily  int `yaml:"daily"`
	Weekly int `yaml:"weekly"`
}

// Load reads a YAML config file and fills in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Provider.TimeoutSeconds == 0 {
		cfg.Provider.TimeoutSeconds = 30
	}
	if cfg.Provider.MaxRetries == 0 {
		cfg.Provider.MaxRetries = 3
	}
	if cfg.Storage.S3Region == "" {
		cfg.Storage.S3Region = "us-east-1"
	}
	if cfg.Engine.StepIntervalSeconds == 0 {
		cfg.Engine.StepIntervalSeconds = 60
	}
	if cfg.Engine.HourlyIntervalSeconds == 0 {
		cfg.Engine.HourlyIntervalSeconds = 3600
	}
	if cfg.Compose.ModelID == "" {
		cfg.Compose.ModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	if cfg.Compose.Region == "" {
		cfg.Compose.Region = cfg.Storage.S3Region
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides. A
// .env file is read first when present, so secrets can live there locally
// and in real env vars on deployed workers.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("PROVIDER_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("OUTREACH_S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("OUTREACH_S3_REGION"); v != "" {
		cfg.Storage.S3Region = v
	}
	if v := os.Getenv("AWS_PROFILE"); v != "" {
		cfg.Storage.AWSProfile = v
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		cfg.Compose.ModelID = v
		cfg.Compose.Enabled = true
	}
	if n := envInt("DAILY_LIMIT"); n > 0 {
		cfg.RateLimit.Daily = n
	}
	if n := envInt("WEEKLY_LIMIT"); n > 0 {
		cfg.RateLimit.Weekly = n
	}

	return cfg, nil
}

func envInt(key string) int {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
