package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ----------------------------
	// SMTP
	// ----------------------------
	SMTPHost     string        `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int           `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUser     string        `envconfig:"SMTP_USER" default:""`
	SMTPPassword string        `envconfig:"SMTP_PASSWORD" default:""`
	SMTPFrom     string        `envconfig:"SMTP_FROM" default:"security@phishsim.local"`
	SMTPTimeout  time.Duration `envconfig:"SMTP_TIMEOUT" default:"30s"`

	// ----------------------------
	// Workers
	// ----------------------------
	WorkerCount   int           `envconfig:"WORKER_COUNT" default:"5"`
	QueueSize     int           `envconfig:"QUEUE_SIZE" default:"1000"`
	RateLimit     int           `envconfig:"RATE_LIMIT" default:"10"`
	RetryAttempts int           `envconfig:"RETRY_ATTEMPTS" default:"3"`
	SendDelay     time.Duration `envconfig:"SEND_DELAY" default:"0s"`

	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort     string   `envconfig:"API_PORT" default:"8080"`
	JWTSecret   string   `envconfig:"JWT_SECRET" default:""`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
	MaxCSVRows  int      `envconfig:"MAX_CSV_ROWS" default:"1000"`

	// ----------------------------
	// Tracking
	// ----------------------------
	TrackingURL string `envconfig:"TRACKING_URL" default:"http://localhost:8080/api/tracking/open"`
	LandingURL  string `envconfig:"LANDING_URL" default:""`

	// ----------------------------
	// Metrics
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	// ----------------------------
	// Storage
	// ----------------------------
	StoreDriver      string        `envconfig:"STORE_DRIVER" default:"postgres"`
	DatabaseURL      string        `envconfig:"DATABASE_URL" default:""`
	RedisAddr        string        `envconfig:"REDIS_ADDR" default:""`
	RedisDB          int           `envconfig:"REDIS_DB" default:"0"`
	TokenCacheTTL    time.Duration `envconfig:"TOKEN_CACHE_TTL" default:"24h"`
	TemplateCacheTTL time.Duration `envconfig:"TEMPLATE_CACHE_TTL" default:"5m"`

	LogDevelopment bool `envconfig:"LOG_DEVELOPMENT" default:"false"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.WorkerCount <= 0 {
		return errors.New("WORKER_COUNT must be positive")
	}
	if c.QueueSize <= 0 {
		return errors.New("QUEUE_SIZE must be positive")
	}
	if c.RateLimit <= 0 {
		return errors.New("RATE_LIMIT must be positive")
	}
	if c.SMTPTimeout <= 0 {
		return errors.New("SMTP_TIMEOUT must be positive")
	}

	u, err := url.Parse(c.TrackingURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("TRACKING_URL must be an absolute URL, got %q", c.TrackingURL)
	}

	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}
