package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Environment string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`

	DBDSN       string `mapstructure:"DB_DSN"`
	StoreDriver string `mapstructure:"STORE_DRIVER"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
	JWTIssuer string `mapstructure:"JWT_ISSUER"`

	PurgeToken      string        `mapstructure:"PURGE_TOKEN"`
	PurgeSchedule   string        `mapstructure:"PURGE_SCHEDULE"`
	PurgeTimeout    time.Duration `mapstructure:"PURGE_TIMEOUT"`
	PurgeBatchSize  int           `mapstructure:"PURGE_BATCH_SIZE"`
	PurgeMaxBatches int           `mapstructure:"PURGE_MAX_BATCHES"`

	NotificationTTL time.Duration `mapstructure:"NOTIFICATION_TTL"`
	TelegramToken   string        `mapstructure:"TELEGRAM_TOKEN"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RateCacheTTL  time.Duration `mapstructure:"RATE_CACHE_TTL"`
}

var defaults = map[string]any{
	"ENV":               "development",
	"LOG_LEVEL":         "",
	"HTTP_ADDR":         ":8080",
	"DB_DSN":            "",
	"STORE_DRIVER":      StoreDriverPostgres,
	"JWT_SECRET":        "",
	"JWT_ISSUER":        "timetutor",
	"PURGE_TOKEN":       "",
	"PURGE_SCHEDULE":    "0 3 * * *",
	"PURGE_TIMEOUT":     9 * time.Minute,
	"PURGE_BATCH_SIZE":  400,
	"PURGE_MAX_BATCHES": 50,
	"NOTIFICATION_TTL":  30 * 24 * time.Hour,
	"TELEGRAM_TOKEN":    "",
	"REDIS_ADDR":        "",
	"REDIS_PASSWORD":    "",
	"RATE_CACHE_TTL":    10 * time.Minute,
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет обязательные поля и диапазоны
func (c *Config) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DBDSN == "" {
			return errors.New("DB_DSN is required but not set")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	// пустым ключом подписывается любой HS256 токен
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required but not set")
	}

	if c.PurgeBatchSize <= 0 {
		return errors.New("PURGE_BATCH_SIZE must be positive")
	}
	if c.PurgeMaxBatches <= 0 {
		return errors.New("PURGE_MAX_BATCHES must be positive")
	}
	if c.NotificationTTL <= 0 {
		return errors.New("NOTIFICATION_TTL must be positive")
	}
	return nil
}
