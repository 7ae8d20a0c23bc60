package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Stripe   StripeConfig
	Paystack PaystackConfig
	Payments PaymentsConfig
	Webhooks WebhooksConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LEARNHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"LEARNHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LEARNHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LEARNHUB_LOG_WARN_STACK" default:"false"`
	BaseURL      string `envconfig:"LEARNHUB_APP_BASE_URL" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LEARNHUB_DB_DSN"`
	Driver string `envconfig:"LEARNHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LEARNHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"LEARNHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LEARNHUB_DB_USER"`
	LegacyPassword string `envconfig:"LEARNHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"LEARNHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"LEARNHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LEARNHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEARNHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEARNHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEARNHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	AutoMigrate     bool          `envconfig:"LEARNHUB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LEARNHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LEARNHUB_REDIS_ADDR"`
	Password     string        `envconfig:"LEARNHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEARNHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEARNHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEARNHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEARNHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEARNHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEARNHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LEARNHUB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LEARNHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LEARNHUB_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey string `envconfig:"LEARNHUB_STRIPE_API_KEY"`
	Secret string `envconfig:"LEARNHUB_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"LEARNHUB_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PaystackConfig struct {
	SecretKey     string        `envconfig:"LEARNHUB_PAYSTACK_SECRET_KEY"`
	WebhookSecret string        `envconfig:"LEARNHUB_PAYSTACK_WEBHOOK_SECRET"`
	BaseURL       string        `envconfig:"LEARNHUB_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	Timeout       time.Duration `envconfig:"LEARNHUB_PAYSTACK_TIMEOUT" default:"8s"`
}

// PaymentsConfig carries the commission and currency-conversion policy.
// The conversion rate applies once, at checkout-session creation; webhooks
// never re-convert.
type PaymentsConfig struct {
	CommissionRate   float64 `envconfig:"LEARNHUB_COMMISSION_RATE" default:"0.10"`
	USDToNGNRate     int64   `envconfig:"LEARNHUB_USD_NGN_RATE" default:"1600"`
	DisplayCurrency  string  `envconfig:"LEARNHUB_DISPLAY_CURRENCY" default:"USD"`
	PaystackCurrency string  `envconfig:"LEARNHUB_PAYSTACK_CURRENCY" default:"NGN"`
}

type WebhooksConfig struct {
	IdempotencyTTL time.Duration `envconfig:"LEARNHUB_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
