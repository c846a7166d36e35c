package internal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Queue         QueueConfig         `mapstructure:"queue"`
	Gateways      GatewaysConfig      `mapstructure:"gateways"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

// QueueConfig configures the Kafka transport for payment lifecycle events.
// When Brokers is empty the publisher runs in disabled mode: every publish
// is a logged no-op so payment processing never depends on the queue.
type QueueConfig struct {
	Brokers       []string      `mapstructure:"brokers"`
	EventsTopic   string        `mapstructure:"events_topic"`
	ConsumerGroup string        `mapstructure:"consumer_group"`
	MaxRedeliver  int           `mapstructure:"max_redeliver"`
	FetchWait     time.Duration `mapstructure:"fetch_wait"`
}

func (c *QueueConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// GatewaysConfig holds the webhook secrets used to verify inbound gateway
// callbacks. Secrets for unconfigured gateways stay empty; verification for
// those gateways fails closed.
type GatewaysConfig struct {
	StripeWebhookSecret      string        `mapstructure:"stripe_webhook_secret"`
	PaystackWebhookSecret    string        `mapstructure:"paystack_webhook_secret"`
	FlutterwaveWebhookSecret string        `mapstructure:"flutterwave_webhook_secret"`
	InternalWebhookSecret    string        `mapstructure:"internal_webhook_secret"`
	ReplayTolerance          time.Duration `mapstructure:"replay_tolerance"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ----------------- ENV LOADING -----------------

// LoadConfigFromEnv builds a Config purely from environment variables, used
// for container deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:           getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			ReadHeaderTimeout: getEnvAsDuration("SERVER_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			IdleTimeout:       getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DB_SOURCE", ""),
		},
		Queue: QueueConfig{
			Brokers:       splitNonEmpty(getEnv("QUEUE_BROKERS", "")),
			EventsTopic:   getEnv("QUEUE_EVENTS_TOPIC", "payment-events"),
			ConsumerGroup: getEnv("QUEUE_CONSUMER_GROUP", "payment-aggregator"),
			MaxRedeliver:  getEnvAsInt("QUEUE_MAX_REDELIVER", 3),
			FetchWait:     getEnvAsDuration("QUEUE_FETCH_WAIT", 20*time.Second),
		},
		Gateways: GatewaysConfig{
			StripeWebhookSecret:      getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PaystackWebhookSecret:    getEnv("PAYSTACK_WEBHOOK_SECRET", ""),
			FlutterwaveWebhookSecret: getEnv("FLUTTERWAVE_WEBHOOK_SECRET", ""),
			InternalWebhookSecret:    getEnv("INTERNAL_WEBHOOK_SECRET", ""),
			ReplayTolerance:          getEnvAsDuration("WEBHOOK_REPLAY_TOLERANCE", 5*time.Minute),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnv("METRICS_ENABLED", "true") == "true",
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Queue.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("queue config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *QueueConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.EventsTopic == "" {
		return errors.New("events_topic is required when brokers are configured")
	}
	if c.MaxRedeliver < 0 {
		return errors.New("max_redeliver cannot be negative")
	}
	return nil
}
