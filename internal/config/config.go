package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

type Config struct {
	Port                     string `env:"PORT" envDefault:"8080"`
	AllowedOrigin            string `env:"ALLOWED_ORIGIN" envDefault:"http://127.0.0.1:3000"`
	StoreBackend             string `env:"STORE_BACKEND" envDefault:"sqlite"`
	DatabaseURL              string `env:"DATABASE_URL"`
	SQLitePath               string `env:"SQLITE_PATH" envDefault:"inventory.db"`
	RedisAddr                string `env:"REDIS_ADDR"`
	RedisPassword            string `env:"REDIS_PASSWORD"`
	RedisDB                  int    `env:"REDIS_DB" envDefault:"0"`
	CheckoutReplayTTLSeconds int    `env:"CHECKOUT_REPLAY_TTL_SECONDS" envDefault:"600"`
	AuthSecret               string `env:"AUTH_SECRET"`
	AccessTokenTTLMinutes    int    `env:"ACCESS_TOKEN_TTL_MINUTES" envDefault:"480"`
	AdminUsername            string `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword            string `env:"ADMIN_PASSWORD"`
	LowStockThreshold        int    `env:"LOW_STOCK_THRESHOLD" envDefault:"5"`
	SeedCatalog              string `env:"SEED_CATALOG"`
	OTLPEndpoint             string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName              string `env:"SERVICE_NAME" envDefault:"smart-store"`
	LogLevel                 string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat                string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads an optional dotenv file (ENV_FILE, default ".env") and then the
// process environment. Values already set in the environment win.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	if c.StoreBackend == "" {
		c.StoreBackend = "sqlite"
	}
	if c.StoreBackend == "sqlite" && c.DatabaseURL != "" {
		c.StoreBackend = "postgres"
	}
	c.AuthSecret = strings.TrimSpace(c.AuthSecret)
	if c.CheckoutReplayTTLSeconds < 1 {
		c.CheckoutReplayTTLSeconds = 600
	}
	if c.AccessTokenTTLMinutes < 1 {
		c.AccessTokenTTLMinutes = 480
	}
	if c.LowStockThreshold < 1 {
		c.LowStockThreshold = 5
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) CheckoutReplayTTL() time.Duration {
	return time.Duration(c.CheckoutReplayTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}
