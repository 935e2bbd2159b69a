package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort int

	DBConfig struct {
		Host     string `env:"STOREFRONT_DB_HOST"`
		Port     int    `env:"STOREFRONT_DB_PORT"`
		User     string `env:"STOREFRONT_DB_USER"`
		Password string `env:"STOREFRONT_DB_PASSWORD"`
		Name     string `env:"STOREFRONT_DB_NAME"`
		SSLMode  string `env:"STOREFRONT_DB_SSLMODE"`
	}

	KafkaBrokerURL   string `env:"KAFKA_BROKER_URL"`
	OrderStatusTopic string `env:"ORDER_STATUS_TOPIC"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL"`
	OutboxPollTimeout  time.Duration `env:"OUTBOX_POLL_TIMEOUT"`

	MigrationsURL string `env:"MIGRATIONS_URL"`

	SiteBaseURL string `env:"SITE_BASE_URL"`

	Stripe struct {
		SecretKey     string `env:"STRIPE_SECRET_KEY"`
		WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
		APIBase       string `env:"STRIPE_API_BASE"`
	}

	Daraja struct {
		ConsumerKey    string `env:"DARAJA_CONSUMER_KEY"`
		ConsumerSecret string `env:"DARAJA_CONSUMER_SECRET"`
		ShortCode      string `env:"DARAJA_SHORTCODE"`
		PassKey        string `env:"DARAJA_PASSKEY"`
		APIBase        string `env:"DARAJA_API_BASE"`
		CallbackURL    string `env:"DARAJA_CALLBACK_URL"`
		CallbackToken  string `env:"DARAJA_CALLBACK_TOKEN"`
	}

	// AllowTerminalOverride lets a callback move a payment out of a
	// terminal state (last-write-wins). Off by default.
	AllowTerminalOverride bool `env:"PAYMENTS_ALLOW_TERMINAL_OVERRIDE"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.HTTPPort = getEnvAsInt("STOREFRONT_HTTP_PORT", 8080)

	cfg.DBConfig.Host = getEnvOrDefault("STOREFRONT_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("STOREFRONT_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("STOREFRONT_DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("STOREFRONT_DB_PASSWORD", "password")
	cfg.DBConfig.Name = getEnvOrDefault("STOREFRONT_DB_NAME", "storefront_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("STOREFRONT_DB_SSLMODE", "disable")

	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.OrderStatusTopic = getEnvOrDefault("ORDER_STATUS_TOPIC", "order_status_updates")

	cfg.OutboxPollInterval = getEnvAsDuration("OUTBOX_POLL_INTERVAL", 1*time.Second)
	cfg.OutboxPollTimeout = getEnvAsDuration("OUTBOX_POLL_TIMEOUT", 500*time.Millisecond)

	cfg.MigrationsURL = getEnvOrDefault("MIGRATIONS_URL", "file://migrations")

	cfg.SiteBaseURL = getEnvOrDefault("SITE_BASE_URL", "http://localhost:3000")

	cfg.Stripe.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
	cfg.Stripe.WebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	cfg.Stripe.APIBase = getEnvOrDefault("STRIPE_API_BASE", "https://api.stripe.com")

	cfg.Daraja.ConsumerKey = os.Getenv("DARAJA_CONSUMER_KEY")
	cfg.Daraja.ConsumerSecret = os.Getenv("DARAJA_CONSUMER_SECRET")
	cfg.Daraja.ShortCode = os.Getenv("DARAJA_SHORTCODE")
	cfg.Daraja.PassKey = os.Getenv("DARAJA_PASSKEY")
	cfg.Daraja.APIBase = getEnvOrDefault("DARAJA_API_BASE", "https://sandbox.safaricom.co.ke")
	cfg.Daraja.CallbackURL = os.Getenv("DARAJA_CALLBACK_URL")
	cfg.Daraja.CallbackToken = os.Getenv("DARAJA_CALLBACK_TOKEN")

	cfg.AllowTerminalOverride = getEnvAsBool("PAYMENTS_ALLOW_TERMINAL_OVERRIDE", false)

	return cfg, nil
}

func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	return strings.Split(c.KafkaBrokerURL, ",")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnvOrDefault(key, strconv.FormatBool(defaultValue))
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
