package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type MySQL struct {
	User     string
	Password string
	Host     string
	Port     string
	Database string
	MaxOpen  int
	MaxIdle  int
}

type Config struct {
	Port   string
	AppEnv string

	MySQL MySQL

	RedisAddr     string
	RabbitMQURL   string
	OrderExchange string

	CatalogServiceURL string
	CatalogTimeout    time.Duration
	CatalogCacheTTL   time.Duration
	// CatalogWarmupRefs are product refs whose promotions are cached at startup.
	CatalogWarmupRefs []string

	StripeSecretKey  string
	StripeWebhookKey string
	PaymentCurrency  string

	// DepositAmount is the fixed first tranche for deposit orders.
	DepositAmount      int64
	CancellationWindow time.Duration
	PollAttempts       int
	PollInterval       time.Duration
	PollMaxInterval    time.Duration
	IntentRetries      int

	SessionTTL time.Duration

	// AdminToken guards the operator endpoints. Empty disables them.
	AdminToken string
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads the environment, after merging a .env file when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "development"),
		MySQL: MySQL{
			User:     os.Getenv("MYSQL_USER"),
			Password: os.Getenv("MYSQL_PASSWORD"),
			Host:     getEnv("MYSQL_HOST", "localhost"),
			Port:     getEnv("MYSQL_PORT", "3306"),
			Database: os.Getenv("MYSQL_DATABASE"),
		},
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RabbitMQURL:       os.Getenv("RABBITMQ_URL"),
		OrderExchange:     getEnv("ORDER_EXCHANGE", "order.exchange"),
		CatalogServiceURL: os.Getenv("CATALOG_SERVICE_URL"),
		StripeSecretKey:   os.Getenv("STRIPE_API_KEY"),
		StripeWebhookKey:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		PaymentCurrency:   getEnv("PAYMENT_CURRENCY", "vnd"),
		AdminToken:        os.Getenv("ADMIN_TOKEN"),
		CatalogWarmupRefs: getList("CATALOG_WARMUP_REFS"),
	}

	var err error
	if cfg.MySQL.MaxOpen, err = getInt("MYSQL_MAX_OPEN_CONNS", 100); err != nil {
		return nil, err
	}
	if cfg.MySQL.MaxIdle, err = getInt("MYSQL_MAX_IDLE_CONNS", 20); err != nil {
		return nil, err
	}
	if cfg.CatalogTimeout, err = getDuration("CATALOG_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.CatalogCacheTTL, err = getDuration("CATALOG_CACHE_TTL", time.Minute); err != nil {
		return nil, err
	}
	deposit, err := getInt("DEPOSIT_AMOUNT", 3_000_000)
	if err != nil {
		return nil, err
	}
	cfg.DepositAmount = int64(deposit)
	if cfg.CancellationWindow, err = getDuration("CANCELLATION_WINDOW", 48*time.Hour); err != nil {
		return nil, err
	}
	if cfg.PollAttempts, err = getInt("PAYMENT_POLL_ATTEMPTS", 10); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = getDuration("PAYMENT_POLL_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.PollMaxInterval, err = getDuration("PAYMENT_POLL_MAX_INTERVAL", 8*time.Second); err != nil {
		return nil, err
	}
	if cfg.IntentRetries, err = getInt("PAYMENT_INTENT_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 2*time.Hour); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MySQL.User == "" || c.MySQL.Database == "" || c.RabbitMQURL == "" || c.CatalogServiceURL == "" ||
		c.StripeSecretKey == "" || c.StripeWebhookKey == "" {
		return fmt.Errorf("missing required environment variables")
	}
	if c.DepositAmount <= 0 {
		return fmt.Errorf("DEPOSIT_AMOUNT must be positive")
	}
	if c.PollAttempts <= 0 {
		return fmt.Errorf("PAYMENT_POLL_ATTEMPTS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
