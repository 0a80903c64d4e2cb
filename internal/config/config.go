// Package config loads settings from config files and the environment via viper.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultJWTSecret     = "your-secret-key-change-in-production"
	defaultMessageKey    = "dev-only-message-key-change-me"
	defaultAllowedOrigin = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
)

// Config is the process configuration. Field tags name the environment variables.
type Config struct {
	JWTSecret                string  `mapstructure:"JWT_SECRET"`
	Port                     string  `mapstructure:"PORT"`
	DBHost                   string  `mapstructure:"DB_HOST"`
	DBPort                   string  `mapstructure:"DB_PORT"`
	DBUser                   string  `mapstructure:"DB_USER"`
	DBPassword               string  `mapstructure:"DB_PASSWORD"`
	DBName                   string  `mapstructure:"DB_NAME"`
	DBSSLMode                string  `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns           int     `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int     `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int     `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	RedisURL                 string  `mapstructure:"REDIS_URL"`
	AllowedOrigins           string  `mapstructure:"ALLOWED_ORIGINS"`
	Env                      string  `mapstructure:"APP_ENV"`
	MessageEncryptionKey     string  `mapstructure:"MESSAGE_ENCRYPTION_KEY"`
	RecommendationLimit      int     `mapstructure:"RECOMMENDATION_LIMIT"`
	RecommendationMinScore   float64 `mapstructure:"RECOMMENDATION_MIN_SCORE"`
	CoverUploadDir           string  `mapstructure:"COVER_UPLOAD_DIR"`
	CoverMaxUploadSizeMB     int     `mapstructure:"COVER_MAX_UPLOAD_SIZE_MB"`
	TracingEnabled           bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter          string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint             string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio      float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
	// TracingResourceAttributes is a comma separated key=value list added to
	// every exported span's resource.
	TracingResourceAttributes string `mapstructure:"TRACING_RESOURCE_ATTRIBUTES"`
	ServiceName               string `mapstructure:"SERVICE_NAME"`
	ServiceVersion            string `mapstructure:"SERVICE_VERSION"`
}

// defaults apply when neither a config file nor the environment sets a key.
var defaults = map[string]any{
	"PORT":                         "8375",
	"APP_ENV":                      "development",
	"DB_HOST":                      "localhost",
	"DB_PORT":                      "5432",
	"DB_USER":                      "user",
	"DB_PASSWORD":                  "password",
	"DB_NAME":                      "quad",
	"DB_SSLMODE":                   "disable",
	"DB_MAX_OPEN_CONNS":            25,
	"DB_MAX_IDLE_CONNS":            5,
	"DB_CONN_MAX_LIFETIME_MINUTES": 5,
	"REDIS_URL":                    "localhost:6379",
	"JWT_SECRET":                   defaultJWTSecret,
	"ALLOWED_ORIGINS":              defaultAllowedOrigin,
	"MESSAGE_ENCRYPTION_KEY":       defaultMessageKey,
	"RECOMMENDATION_LIMIT":         10,
	"RECOMMENDATION_MIN_SCORE":     0.15,
	"COVER_UPLOAD_DIR":             "/tmp/quad/uploads/covers",
	"COVER_MAX_UPLOAD_SIZE_MB":     5,
	"TRACING_ENABLED":              false,
	"TRACING_EXPORTER":             "stdout",
	"OTLP_ENDPOINT":                "localhost:4318",
	"TRACING_SAMPLER_RATIO":        1.0,
	"TRACING_RESOURCE_ATTRIBUTES":  "",
	"SERVICE_NAME":                 "quad-api",
	"SERVICE_VERSION":              "dev",
}

// LoadConfig reads config.yml, overlays config.<APP_ENV>.yml and then the
// environment. The profile file is mandatory for every env except
// development and test.
func LoadConfig() (*Config, error) {
	for _, dir := range []string{".", "..", "../.."} {
		viper.AddConfigPath(dir)
	}
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}

	// The base file is optional.
	_ = viper.ReadInConfig()

	if err := mergeProfile(viper.GetString("APP_ENV")); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func mergeProfile(env string) error {
	if env == "" || env == "development" {
		return nil
	}
	viper.SetConfigName("config." + env)
	err := viper.MergeInConfig()
	if err == nil {
		slog.Info("loaded profile configuration", slog.String("file", "config."+env+".yml"))
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if env == "test" && errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("profile config config.%s.yml: %w", env, err)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.TracingExporter = strings.ToLower(strings.TrimSpace(c.TracingExporter))
}

// ResourceAttributes parses TRACING_RESOURCE_ATTRIBUTES, for example
// "team=campus,region=eu". Blank entries are skipped.
func (c *Config) ResourceAttributes() (map[string]string, error) {
	out := make(map[string]string)
	for _, entry := range strings.Split(c.TracingResourceAttributes, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		k, v, ok := strings.Cut(entry, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("TRACING_RESOURCE_ATTRIBUTES entry %q is not key=value", entry)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate reports every problem with c at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(bad bool, msg string) {
		if bad {
			errs = append(errs, errors.New(msg))
		}
	}

	check(c.Port == "", "PORT is required")
	check(c.JWTSecret == "", "JWT_SECRET is required")
	check(c.MessageEncryptionKey == "", "MESSAGE_ENCRYPTION_KEY is required")
	check(c.CoverMaxUploadSizeMB < 0, "COVER_MAX_UPLOAD_SIZE_MB must not be negative")
	check(c.RecommendationMinScore < 0 || c.RecommendationMinScore > 1, "RECOMMENDATION_MIN_SCORE must be between 0 and 1")
	check(c.TracingSamplerRatio < 0 || c.TracingSamplerRatio > 1, "TRACING_SAMPLER_RATIO must be between 0 and 1")
	check(c.TracingEnabled && c.TracingExporter != "stdout" && c.TracingExporter != "otlp",
		"TRACING_EXPORTER must be stdout or otlp")
	if _, err := c.ResourceAttributes(); err != nil {
		errs = append(errs, err)
	}

	if c.IsProduction() {
		check(c.JWTSecret == defaultJWTSecret || len(c.JWTSecret) < 32,
			"JWT_SECRET must be a non-default secret of at least 32 characters in production")
		check(c.DBPassword == "" || c.DBPassword == "password", "a strong DB_PASSWORD is required in production")
		check(c.DBSSLMode == "" || c.DBSSLMode == "disable", "DB_SSLMODE must enable TLS in production")
		check(c.MessageEncryptionKey == defaultMessageKey || len(c.MessageEncryptionKey) < 32,
			"MESSAGE_ENCRYPTION_KEY must be a unique secret of at least 32 characters in production")
		if c.AllowedOrigins == "*" {
			slog.Warn("ALLOWED_ORIGINS is '*' in production")
		}
	} else if len(c.JWTSecret) < 32 {
		slog.Warn("JWT_SECRET is shorter than 32 characters")
	}

	return errors.Join(errs...)
}
