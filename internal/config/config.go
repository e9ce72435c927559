package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"irisapi/internal/model"
)

// EnvPrefix is stripped from environment variables before they are mapped
// onto config keys: IRIS_API_JWT_SECRET -> jwt_secret.
const EnvPrefix = "IRIS_API_"

// ConfigPathEnvVar names an optional YAML file layered between defaults and env.
const ConfigPathEnvVar = "IRIS_API_CONFIG"

// DefaultConfigPaths are searched when ConfigPathEnvVar is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// Config holds application level configuration.
type Config struct {
	AppName    string `koanf:"app_name"`
	AppVersion string `koanf:"app_version"`
	ServerPort string `koanf:"server_port"`

	// MySQLDSN selects the gorm-backed user store. Empty runs with an in-memory store.
	MySQLDSN  string `koanf:"mysql_dsn"`
	RedisAddr string `koanf:"redis_addr"`
	RedisDB   int    `koanf:"redis_db"`
	RedisPass string `koanf:"redis_password"`

	// JWTSecret has no default; Load fails until it is set.
	JWTSecret       string        `koanf:"jwt_secret"`
	JWTAlgorithm    string        `koanf:"jwt_algorithm"`
	JWTIssuer       string        `koanf:"jwt_issuer"`
	AccessTokenTTL  time.Duration `koanf:"access_token_ttl"`
	RefreshTokenTTL time.Duration `koanf:"refresh_token_ttl"`
	BcryptCost      int           `koanf:"bcrypt_cost"`

	// DataPath is a local CSV path or an s3://bucket/key URL.
	DataPath    string   `koanf:"data_path"`
	Categories  []string `koanf:"categories"`
	LabelPrefix string   `koanf:"label_prefix"`
	PreloadData bool     `koanf:"preload_data"`

	S3Region    string `koanf:"s3_region"`
	S3Endpoint  string `koanf:"s3_endpoint"`
	S3AccessKey string `koanf:"s3_access_key"`
	S3SecretKey string `koanf:"s3_secret_key"`

	CORSOrigins   []string `koanf:"cors_origins"`
	RequireAPIKey bool     `koanf:"require_api_key"`
	APIKey        string   `koanf:"api_key"`

	// RateLimitRequests <= 0 disables rate limiting.
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitBackend  string        `koanf:"rate_limit_backend"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

func defaultConfig() *Config {
	return &Config{
		AppName:           "Iris Data API",
		AppVersion:        "1.0.0",
		ServerPort:        "8000",
		RedisAddr:         "localhost:6379",
		JWTAlgorithm:      "HS256",
		JWTIssuer:         "iris-data-api",
		AccessTokenTTL:    30 * time.Minute,
		RefreshTokenTTL:   7 * 24 * time.Hour,
		BcryptCost:        10,
		DataPath:          "data/iris.csv",
		Categories:        append([]string(nil), model.DefaultCategories...),
		LabelPrefix:       "iris-",
		PreloadData:       true,
		S3Region:          "us-east-1",
		CORSOrigins:       []string{"http://localhost:3000"},
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		RateLimitBackend:  "memory",
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

var sliceKeys = []string{"categories", "cors_origins"}

// Load builds Config from defaults, an optional YAML file and the environment,
// in increasing order of precedence.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	for _, key := range sliceKeys {
		if raw, ok := k.Get(key).(string); ok {
			if err := k.Set(key, splitCSV(raw)); err != nil {
				return nil, fmt.Errorf("parse %s: %w", key, err)
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	categories := make([]string, 0, len(c.Categories))
	for _, category := range c.Categories {
		if category = strings.ToLower(strings.TrimSpace(category)); category != "" {
			categories = append(categories, category)
		}
	}
	c.Categories = categories
	c.LabelPrefix = strings.ToLower(strings.TrimSpace(c.LabelPrefix))
	c.JWTAlgorithm = strings.ToUpper(strings.TrimSpace(c.JWTAlgorithm))
	c.RateLimitBackend = strings.ToLower(strings.TrimSpace(c.RateLimitBackend))
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("unsupported jwt_algorithm %q", c.JWTAlgorithm))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if len(c.Categories) == 0 {
		errs = append(errs, errors.New("at least one category is required"))
	}
	for _, category := range c.Categories {
		if category == model.AccessAll {
			errs = append(errs, fmt.Errorf("%q is reserved and cannot be a category", model.AccessAll))
		}
	}
	switch c.RateLimitBackend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unsupported rate_limit_backend %q", c.RateLimitBackend))
	}
	if c.RateLimitRequests > 0 && c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("rate_limit_window must be positive"))
	}
	if c.RequireAPIKey && c.APIKey == "" {
		errs = append(errs, errors.New("api_key is required when require_api_key is set"))
	}
	return errors.Join(errs...)
}

// Redacted returns a copy safe to expose on the admin config endpoint.
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"app_name":            c.AppName,
		"version":             c.AppVersion,
		"data_path":           c.DataPath,
		"categories":          c.Categories,
		"preload_data":        c.PreloadData,
		"cors_origins":        c.CORSOrigins,
		"access_token_ttl":    c.AccessTokenTTL.String(),
		"refresh_token_ttl":   c.RefreshTokenTTL.String(),
		"rate_limit_requests": c.RateLimitRequests,
		"rate_limit_window":   c.RateLimitWindow.String(),
		"rate_limit_backend":  c.RateLimitBackend,
		"user_store":          c.userStore(),
		"log_level":           c.LogLevel,
	}
}

func (c *Config) userStore() string {
	if c.MySQLDSN == "" {
		return "memory"
	}
	return "mysql"
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func splitCSV(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
