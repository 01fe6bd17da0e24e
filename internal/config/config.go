// Package config loads process configuration from app.env, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variable.
type Config struct {
	AppName  string `mapstructure:"APP_NAME"`
	AppEnv   string `mapstructure:"APP_ENV"` // "development" or "production"
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"` // e.g. "debug", "info", "warn", "error"

	// Store selection
	DBDriver   string `mapstructure:"DB_DRIVER"` // "postgres" or "sqlite"
	SQLitePath string `mapstructure:"SQLITE_PATH"`

	// PostgreSQL configuration
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     int    `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSL_MODE"`
	DBMaxConns int32  `mapstructure:"DB_MAX_CONNS"`

	// Serialization-conflict retry
	TxMaxAttempts int           `mapstructure:"TX_MAX_ATTEMPTS"`
	TxMinBackoff  time.Duration `mapstructure:"TX_MIN_BACKOFF"`
	TxMaxBackoff  time.Duration `mapstructure:"TX_MAX_BACKOFF"`

	// HTTP
	JWTSecret    string  `mapstructure:"JWT_SECRET"`
	CORSOrigins  string  `mapstructure:"CORS_ORIGINS"` // comma separated
	RateLimitRPS float64 `mapstructure:"RATE_LIMIT_RPS"`

	// Fan-out
	FanoutBuffer  int `mapstructure:"FANOUT_BUFFER"`
	FanoutWorkers int `mapstructure:"FANOUT_WORKERS"`

	// Optional sinks; empty disables them
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	PushWebhookURL   string `mapstructure:"PUSH_WEBHOOK_URL"`
	PushWebhookToken string `mapstructure:"PUSH_WEBHOOK_TOKEN"`
	RabbitMQURL      string `mapstructure:"RABBITMQ_URL"`
	EventsExchange   string `mapstructure:"EVENTS_EXCHANGE"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "swapmeet")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("SQLITE_PATH", "swapmeet.db")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "swapmeet")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 10)

	v.SetDefault("TX_MAX_ATTEMPTS", 5)
	v.SetDefault("TX_MIN_BACKOFF", 5*time.Millisecond)
	v.SetDefault("TX_MAX_BACKOFF", 250*time.Millisecond)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_RPS", 20)

	v.SetDefault("FANOUT_BUFFER", 1024)
	v.SetDefault("FANOUT_WORKERS", 4)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("PUSH_WEBHOOK_URL", "")
	v.SetDefault("PUSH_WEBHOOK_TOKEN", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("EVENTS_EXCHANGE", "swapmeet.events")
}

// Load reads configuration from path/app.env and the environment. A .env in
// the working directory is loaded into the environment first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err == nil {
		log.Info().Str("file", v.ConfigFileUsed()).Msg("using config file")
	} else {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Debug().Msg("no config file found, using environment variables and defaults")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.TxMaxAttempts < 1 {
		return errors.New("TX_MAX_ATTEMPTS must be at least 1")
	}
	if c.FanoutWorkers < 1 || c.FanoutBuffer < 1 {
		return errors.New("FANOUT_WORKERS and FANOUT_BUFFER must be positive")
	}
	return nil
}

// Origins splits CORS_ORIGINS.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
