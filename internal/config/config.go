package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server          ServerConfig          `yaml:"server"`
	Database        DatabaseConfig        `yaml:"database"`
	Redis           RedisConfig           `yaml:"redis"`
	AI              AIConfig              `yaml:"ai"`
	Personalization PersonalizationConfig `yaml:"personalization"`
	Batch           BatchConfig           `yaml:"batch"`
	Storage         StorageConfig         `yaml:"storage"`
	Logging         LoggingConfig         `yaml:"logging"`
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

// Addr returns host:port for the HTTP listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds PostgreSQL settings. An empty URL selects the
// in-memory recipient store.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MigrationsDir   string `yaml:"migrations_dir"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// RedisConfig holds Redis settings for batch locks and the stats cache.
// An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AIConfig holds generative text provider settings.
type AIConfig struct {
	// Providers lists the provider chain in order: anthropic, openai, bedrock.
	Providers      []string        `yaml:"providers"`
	TimeoutSeconds int             `yaml:"timeout_seconds"`
	MaxRetries     int             `yaml:"max_retries"`
	MaxTokens      int             `yaml:"max_tokens"`
	Anthropic      AnthropicConfig `yaml:"anthropic"`
	OpenAI         OpenAIConfig    `yaml:"openai"`
	Bedrock        BedrockConfig   `yaml:"bedrock"`
}

// Timeout returns the per-request provider timeout.
func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AnthropicConfig holds Anthropic API settings
type AnthropicConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// OpenAIConfig holds OpenAI API settings
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// BedrockConfig holds AWS Bedrock settings. Empty keys use the default
// credential chain (IAM role on ECS).
type BedrockConfig struct {
	Region    string `yaml:"region"`
	ModelID   string `yaml:"model_id"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// TierOverride replaces a tier's fixed cost and time budget.
type TierOverride struct {
	Cost             float64 `yaml:"cost"`
	ProcessingTimeMs int64   `yaml:"processing_time_ms"`
}

// PersonalizationConfig holds engine settings.
type PersonalizationConfig struct {
	Tiers           map[string]TierOverride `yaml:"tiers"`
	BackgroundModel string                  `yaml:"background_model"`
	SubjectTemplate string                  `yaml:"subject_template"`
	BodyTemplate    string                  `yaml:"body_template"`
}

// BatchConfig holds batch run settings.
type BatchConfig struct {
	LockTTLSeconds       int `yaml:"lock_ttl_seconds"`
	StatsCacheTTLSeconds int `yaml:"stats_cache_ttl_seconds"`
}

// LockTTL returns the campaign lock lease.
func (c BatchConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// StatsCacheTTL returns how long computed campaign stats are cached.
func (c BatchConfig) StatsCacheTTL() time.Duration {
	return time.Duration(c.StatsCacheTTLSeconds) * time.Second
}

// StorageConfig holds content manifest storage settings.
type StorageConfig struct {
	Type      string `yaml:"type"` // none, local or s3
	LocalPath string `yaml:"local_path"`
	S3Bucket  string `yaml:"s3_bucket"`
	S3Prefix  string `yaml:"s3_prefix"`
	AWSRegion string `yaml:"aws_region"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	RedactPII  *bool  `yaml:"redact_pii"`
}

// ShouldRedactPII reports whether PII redaction is on. Defaults to true.
func (c LoggingConfig) ShouldRedactPII() bool {
	return c.RedactPII == nil || *c.RedactPII
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
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.MigrationsDir == "" {
		cfg.Database.MigrationsDir = "migrations"
	}
	if len(cfg.AI.Providers) == 0 {
		cfg.AI.Providers = []string{"anthropic", "openai"}
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.AI.MaxTokens == 0 {
		cfg.AI.MaxTokens = 1024
	}
	if cfg.AI.Bedrock.Region == "" {
		cfg.AI.Bedrock.Region = "us-east-1"
	}
	if cfg.Batch.LockTTLSeconds == 0 {
		cfg.Batch.LockTTLSeconds = 120
	}
	if cfg.Batch.StatsCacheTTLSeconds == 0 {
		cfg.Batch.StatsCacheTTLSeconds = 30
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "none"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data/manifests"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-east-1"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 100
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 5
	}
	if cfg.Logging.MaxAgeDays == 0 {
		cfg.Logging.MaxAgeDays = 28
	}
}

// Validate rejects settings the server cannot start with.
func (cfg *Config) Validate() error {
	for _, p := range cfg.AI.Providers {
		switch p {
		case "anthropic", "openai", "bedrock":
		default:
			return fmt.Errorf("config: unknown ai provider %q", p)
		}
	}
	for tier := range cfg.Personalization.Tiers {
		switch tier {
		case "basic", "smart", "advanced":
		default:
			return fmt.Errorf("config: unknown personalization tier %q", tier)
		}
	}
	switch cfg.Storage.Type {
	case "none", "local":
	case "s3":
		if cfg.Storage.S3Bucket == "" {
			return fmt.Errorf("config: storage.s3_bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("config: unknown storage type %q", cfg.Storage.Type)
	}
	return nil
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

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	// Database override (critical for ECS deployment where config.yaml has local defaults)
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("AI_PROVIDERS"); v != "" {
		cfg.AI.Providers = splitList(v)
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AI.Anthropic.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_MODEL"); v != "" {
		cfg.AI.Anthropic.Model = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.AI.OpenAI.Model = v
	}
	if v := os.Getenv("BEDROCK_REGION"); v != "" {
		cfg.AI.Bedrock.Region = v
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		cfg.AI.Bedrock.ModelID = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.AI.Bedrock.AccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.AI.Bedrock.SecretKey = v
	}
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("STORAGE_S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
