// Package config loads settings from .env, YAML profiles and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config is the flattened application configuration.
type Config struct {
	JWTSecret                     string  `mapstructure:"JWT_SECRET"`
	JWTAudience                   string  `mapstructure:"JWT_AUDIENCE"`
	Port                          string  `mapstructure:"PORT"`
	DBHost                        string  `mapstructure:"DB_HOST"`
	DBPort                        string  `mapstructure:"DB_PORT"`
	DBUser                        string  `mapstructure:"DB_USER"`
	DBPassword                    string  `mapstructure:"DB_PASSWORD"`
	DBName                        string  `mapstructure:"DB_NAME"`
	DBSSLMode                     string  `mapstructure:"DB_SSLMODE"`
	DBReadHost                    string  `mapstructure:"DB_READ_HOST"`
	DBReadPort                    string  `mapstructure:"DB_READ_PORT"`
	DBReadUser                    string  `mapstructure:"DB_READ_USER"`
	DBReadPassword                string  `mapstructure:"DB_READ_PASSWORD"`
	DBSchemaMode                  string  `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateAllowDestructive bool    `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`
	DBMaxOpenConns                int     `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns                int     `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes      int     `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	RedisURL                      string  `mapstructure:"REDIS_URL"`
	AllowedOrigins                string  `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags                  string  `mapstructure:"FEATURE_FLAGS"`
	Env                           string  `mapstructure:"APP_ENV"`
	EdgeFunctionsURL              string  `mapstructure:"EDGE_FUNCTIONS_URL"`
	EdgeFunctionsKey              string  `mapstructure:"EDGE_FUNCTIONS_KEY"`
	AuthURL                       string  `mapstructure:"AUTH_URL"`
	NotificationWindow            int     `mapstructure:"NOTIFICATION_WINDOW"`
	RecentSearchLimit             int     `mapstructure:"RECENT_SEARCH_LIMIT"`
	TracingEnabled                bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter               string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint                  string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio           float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// defaults registers every key with viper so AutomaticEnv can fill it.
var defaults = map[string]any{
	"PORT":                             "8380",
	"APP_ENV":                          "development",
	"DB_HOST":                          "localhost",
	"DB_PORT":                          "5432",
	"DB_USER":                          "matchday",
	"DB_PASSWORD":                      "password",
	"DB_NAME":                          "matchday",
	"DB_SSLMODE":                       "disable",
	"DB_READ_HOST":                     "",
	"DB_READ_PORT":                     "5432",
	"DB_READ_USER":                     "matchday",
	"DB_READ_PASSWORD":                 "password",
	"DB_SCHEMA_MODE":                   "hybrid",
	"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE": false,
	"DB_MAX_OPEN_CONNS":                25,
	"DB_MAX_IDLE_CONNS":                5,
	"DB_CONN_MAX_LIFETIME_MINUTES":     5,
	"REDIS_URL":                        "localhost:6379",
	"JWT_SECRET":                       defaultJWTSecret,
	"JWT_AUDIENCE":                     "authenticated",
	"ALLOWED_ORIGINS":                  "http://localhost:5173,http://localhost:3000",
	"FEATURE_FLAGS":                    "comment_like_batching=on,realtime_notifications=on",
	"EDGE_FUNCTIONS_URL":               "http://localhost:54321/functions/v1",
	"AUTH_URL":                         "http://localhost:54321/auth/v1",
	"NOTIFICATION_WINDOW":              50,
	"RECENT_SEARCH_LIMIT":              10,
	"TRACING_ENABLED":                  false,
	"TRACING_EXPORTER":                 "stdout",
	"TRACING_SAMPLER_RATIO":            1.0,
}

// LoadConfig reads .env, config.yml and, outside development and test, the
// required config.<APP_ENV>.yml profile. Environment variables win.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	for _, dir := range []string{".", "..", "../.."} {
		viper.AddConfigPath(dir)
	}
	viper.SetConfigType("yml")
	viper.SetConfigName("config")
	viper.AutomaticEnv()
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
	_ = viper.ReadInConfig()

	if err := mergeProfile(strings.ToLower(viper.GetString("APP_ENV"))); err != nil {
		return nil, err
	}

	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &c, nil
}

func mergeProfile(env string) error {
	switch env {
	case "", "development", "test":
		return nil
	}
	viper.SetConfigName("config." + env)
	if err := viper.MergeInConfig(); err != nil {
		return fmt.Errorf("profile config.%s.yml: %w", env, err)
	}
	slog.Info("Loaded profile configuration", slog.String("profile", "config."+env+".yml"))
	return nil
}

func (c *Config) normalize() {
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.EdgeFunctionsURL = strings.TrimRight(strings.TrimSpace(c.EdgeFunctionsURL), "/")
	c.AuthURL = strings.TrimRight(strings.TrimSpace(c.AuthURL), "/")
	if c.NotificationWindow <= 0 {
		c.NotificationWindow = 50
	}
	if c.RecentSearchLimit <= 0 {
		c.RecentSearchLimit = 10
	}
}

// IsProduction reports whether the config targets a production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate reports every missing or unsafe setting at once. Production
// additionally requires real secrets and TLS to Postgres.
func (c *Config) Validate() error {
	var errs []error
	check := func(bad bool, msg string) {
		if bad {
			errs = append(errs, errors.New(msg))
		}
	}

	check(c.Port == "", "PORT is required")
	check(c.JWTSecret == "", "JWT_SECRET is required")
	if c.EdgeFunctionsURL != "" {
		u, err := url.Parse(c.EdgeFunctionsURL)
		check(err != nil || u.Scheme == "" || u.Host == "", "EDGE_FUNCTIONS_URL must be an absolute URL")
	}

	if !c.IsProduction() {
		if len(c.JWTSecret) < 32 {
			slog.Warn("JWT_SECRET is shorter than 32 characters")
		}
		return errors.Join(errs...)
	}

	check(c.JWTSecret == defaultJWTSecret, "JWT_SECRET still has the default value")
	check(len(c.JWTSecret) < 32, "JWT_SECRET must be at least 32 characters in production")
	check(c.DBPassword == "" || c.DBPassword == "password", "DB_PASSWORD must be set to a strong value in production")
	check(c.DBSSLMode == "" || c.DBSSLMode == "disable", "DB_SSLMODE must enable TLS in production")
	check(c.EdgeFunctionsKey == "", "EDGE_FUNCTIONS_KEY is required in production")
	if c.AllowedOrigins == "*" {
		slog.Warn("ALLOWED_ORIGINS is '*' in production")
	}
	return errors.Join(errs...)
}
