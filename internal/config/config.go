package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBUser      string `env:"DB_USER" envDefault:"postgres"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBName      string `env:"DB_NAME" envDefault:"nullpass"`
	DBSSLMode   string `env:"DB_SSLMODE" envDefault:"disable"`

	// Tokens and sessions
	JWTSecret          string `env:"JWT_SECRET"`
	JWTExpiresIn       string `env:"JWT_EXPIRES_IN" envDefault:"7d"`
	SessionExpiresDays int    `env:"SESSION_EXPIRES_DAYS" envDefault:"7"`

	// Service-to-service
	InternalSecret  string `env:"INTERNAL_SECRET"`
	IPEncryptionKey string `env:"IP_ENCRYPTION_KEY"`

	// Rate limiting and bot detection
	ShieldKey     string        `env:"ARCJET_KEY"`
	ShieldURL     string        `env:"SHIELD_URL"`
	ShieldMode    string        `env:"SHIELD_MODE" envDefault:"LIVE"`
	ShieldTimeout time.Duration `env:"SHIELD_TIMEOUT" envDefault:"2s"`

	// Billing
	PolarAccessToken string        `env:"POLAR_ACCESS_TOKEN"`
	PolarAPIURL      string        `env:"POLAR_API_URL" envDefault:"https://api.polar.sh"`
	PolarTimeout     time.Duration `env:"POLAR_TIMEOUT" envDefault:"10s"`

	// Downstream service registry
	ServicesConfigPath string `env:"SERVICES_CONFIG_PATH"`

	// Outbound notifications
	WebhookTicket  string        `env:"WEBHOOK_TICKET"`
	WebhookTimeout time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`

	// Background jobs
	SessionReaperInterval time.Duration `env:"SESSION_REAPER_INTERVAL" envDefault:"1h"`
	SessionReaperGrace    time.Duration `env:"SESSION_REAPER_GRACE" envDefault:"24h"`

	// Server
	Port           string `env:"PORT" envDefault:"3000"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`
	SentryDSN      string `env:"SENTRY_DSN"`
	AppEnv         string `env:"APP_ENV" envDefault:"development"`

	// Forwarding headers are read only from these peers.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
	ProxyHeader    string   `env:"PROXY_HEADER" envDefault:"X-Forwarded-For"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads configuration from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if c.DatabaseURL == "" && c.DBPassword == "" {
		return errors.New("DATABASE_URL or DB_PASSWORD environment variable is required")
	}
	if c.SessionExpiresDays <= 0 {
		return fmt.Errorf("SESSION_EXPIRES_DAYS must be positive, got %d", c.SessionExpiresDays)
	}
	return nil
}

func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionExpiresDays) * 24 * time.Hour
}

// Origins splits ALLOWED_ORIGINS. Empty means no cross-origin access.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
