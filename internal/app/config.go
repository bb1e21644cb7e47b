package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppHost           string        `envconfig:"APP_HOST" default:"localhost"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	StoreURL             string `envconfig:"STORE_URL"`
	StoreAnonKey         string `envconfig:"STORE_ANON_KEY"`
	StorePassword        string `envconfig:"STORE_PASSWORD"`
	StoreConfigEndpoint  string `envconfig:"STORE_CONFIG_ENDPOINT"`
	StoreCredentialsFile string `envconfig:"STORE_CREDENTIALS_FILE" default:"config/credentials.yml"`
	StoreMaxConns        int32  `envconfig:"STORE_MAX_CONNS" default:"10"`
	MigrateOnStart       bool   `envconfig:"MIGRATE_ON_START" default:"false"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	ReceiptFrom string `envconfig:"RECEIPT_FROM" default:"donations@phoenixbikes.org"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
