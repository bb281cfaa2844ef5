package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Configはアプリ全体の設定
type Config struct {
	Addr            string        `envconfig:"APP_ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"APP_SHUTDOWN_TIMEOUT" default:"10s"`

	GoEnv     string `envconfig:"GO_ENV" default:"dev"`      // dev/prod
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"` // text/json

	DatabaseURL      string `envconfig:"DATABASE_URL"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"postgres"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"postgres"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"tigu"`
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	AutoMigrate      bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`

	JWTSecret  string        `envconfig:"JWT_SECRET" required:"true"`
	AccessTTL  time.Duration `envconfig:"JWT_ACCESS_TTL" default:"15m"`
	RefreshTTL time.Duration `envconfig:"JWT_REFRESH_TTL" default:"336h"`

	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	ProductCacheTTL time.Duration `envconfig:"PRODUCT_CACHE_TTL" default:"5m"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"tigu.lifecycle"`

	RateLimitPerMinute int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	CORSOrigins        []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
}

// Loadは環境変数
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}

	//必須チェック
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" && (cfg.PostgresHost == "" || cfg.PostgresDB == "") {
		return Config{}, errors.New("DATABASE_URL or POSTGRES_HOST/POSTGRES_DB is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return Config{}, errors.New("JWT_ACCESS_TTL and JWT_REFRESH_TTL must be positive")
	}

	return cfg, nil
}

// DSNはpostgres接続文字列（DATABASE_URL優先）
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func (c Config) IsProduction() bool {
	return c.GoEnv == "prod"
}
