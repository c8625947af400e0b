package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Log      LogConfig      `yaml:"log"`
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

// Storage backend types.
const (
	StorageLocal    = "local"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageS3       = "s3"
	StorageDynamoDB = "dynamodb"
)

// StorageConfig selects where the provider settings and the campaign
// documents live.
type StorageConfig struct {
	Type          string `yaml:"type"`
	LocalPath     string `yaml:"local_path"`
	DatabaseURL   string `yaml:"database_url"`
	RedisURL      string `yaml:"redis_url"`
	S3Bucket      string `yaml:"s3_bucket"`
	S3Prefix      string `yaml:"s3_prefix"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	AWSRegion     string `yaml:"aws_region"`
	AWSProfile    string `yaml:"aws_profile"` // Empty string uses default credential chain
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

// DispatchConfig tunes the send pipeline.
type DispatchConfig struct {
	Workers            int    `yaml:"workers"`
	DialTimeoutSeconds int    `yaml:"dial_timeout_seconds"`
	SendTimeoutSeconds int    `yaml:"send_timeout_seconds"`
	LockTTLSeconds     int    `yaml:"lock_ttl_seconds"`
	HelloName          string `yaml:"hello_name"`
	TestSubject        string `yaml:"test_subject"`
	TestBody           string `yaml:"test_body"`
}

// DialTimeout returns the connect timeout as a duration
func (c DispatchConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutSeconds) * time.Second
}

// SendTimeout returns the per-message timeout as a duration
func (c DispatchConfig) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

// LockTTL returns how long a campaign dispatch may hold the send lock
func (c DispatchConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// LogConfig holds logger settings
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on. It defaults to true.
func (c LogConfig) Redact() bool {
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
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = StorageLocal
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./config"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-east-1"
	}
	if cfg.Storage.S3Prefix == "" {
		cfg.Storage.S3Prefix = "mailmerge/"
	}
	if cfg.Dispatch.Workers == 0 {
		cfg.Dispatch.Workers = 1
	}
	if cfg.Dispatch.DialTimeoutSeconds == 0 {
		cfg.Dispatch.DialTimeoutSeconds = 30
	}
	if cfg.Dispatch.SendTimeoutSeconds == 0 {
		cfg.Dispatch.SendTimeoutSeconds = 60
	}
	if cfg.Dispatch.LockTTLSeconds == 0 {
		cfg.Dispatch.LockTTLSeconds = 3600
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars.
// A missing config file is not an error: defaults plus env vars apply.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("STORAGE_LOCAL_PATH"); v != "" {
		cfg.Storage.LocalPath = v
	}
	// Database override (ECS deployments keep local defaults in config.yaml)
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Storage.RedisURL = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("DYNAMODB_TABLE"); v != "" {
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
	if v := os.Getenv("DISPATCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Dispatch.Workers = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
