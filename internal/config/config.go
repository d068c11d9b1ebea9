package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Repository drivers.
const (
	DriverMemory   = "memory"
	DriverDynamoDB = "dynamodb"
	DriverPostgres = "postgres"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"user-management"`

	RepositoryDriver string `env:"REPOSITORY_DRIVER" envDefault:"memory"`
	TableName        string `env:"TABLE_NAME"`
	DatabaseURL      string `env:"DATABASE_URL"`

	UserCreatedTopicARN string `env:"USER_CREATED_TOPIC_ARN"`

	SessionTokenSecret string        `env:"SESSION_TOKEN_SECRET" envDefault:"This is a sample secret key - please don't use in production environment."`
	SessionTokenTTL    time.Duration `env:"SESSION_TOKEN_TTL" envDefault:"24h"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	AuthCodeTTL        time.Duration `env:"AUTH_CODE_TTL" envDefault:"10m"`

	CORSAllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
	CORSAllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	CORSAllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envDefault:"Authorization,Content-Type"`
	CORSAllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`
}

// Load reads configuration from the environment, after loading a local .env
// file when one exists.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	switch cfg.RepositoryDriver {
	case DriverMemory:
	case DriverDynamoDB:
		if cfg.TableName == "" {
			return Config{}, fmt.Errorf("TABLE_NAME is required with the dynamodb driver")
		}
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required with the postgres driver")
		}
	default:
		return Config{}, fmt.Errorf("unknown repository driver %q", cfg.RepositoryDriver)
	}

	return cfg, nil
}
