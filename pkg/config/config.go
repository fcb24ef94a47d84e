package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Razorpay     RazorpayConfig
	Checkout     CheckoutConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"ZEVAR_APP_ENV" required:"true"`
	Port         string `envconfig:"ZEVAR_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ZEVAR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ZEVAR_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ZEVAR_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ZEVAR_DB_DSN"`
	Driver string `envconfig:"ZEVAR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ZEVAR_DB_HOST"`
	LegacyPort     int    `envconfig:"ZEVAR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ZEVAR_DB_USER"`
	LegacyPassword string `envconfig:"ZEVAR_DB_PASSWORD"`
	LegacyName     string `envconfig:"ZEVAR_DB_NAME"`
	LegacySSLMode  string `envconfig:"ZEVAR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ZEVAR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ZEVAR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ZEVAR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ZEVAR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ZEVAR_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ZEVAR_REDIS_ADDR"`
	Password     string        `envconfig:"ZEVAR_REDIS_PASSWORD"`
	DB           int           `envconfig:"ZEVAR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ZEVAR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ZEVAR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ZEVAR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ZEVAR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ZEVAR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type RazorpayConfig struct {
	KeyID         string        `envconfig:"ZEVAR_RAZORPAY_KEY_ID" required:"true"`
	KeySecret     string        `envconfig:"ZEVAR_RAZORPAY_KEY_SECRET" required:"true"`
	WebhookSecret string        `envconfig:"ZEVAR_RAZORPAY_WEBHOOK_SECRET"`
	BaseURL       string        `envconfig:"ZEVAR_RAZORPAY_BASE_URL" default:"https://api.razorpay.com"`
	Timeout       time.Duration `envconfig:"ZEVAR_RAZORPAY_TIMEOUT" default:"10s"`
}

type CheckoutConfig struct {
	PendingOrderTTL time.Duration `envconfig:"ZEVAR_CHECKOUT_PENDING_ORDER_TTL" default:"168h"`
	IdempotencyTTL  time.Duration `envconfig:"ZEVAR_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ZEVAR_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ZEVAR_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"ZEVAR_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ZEVAR_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"ZEVAR_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ZEVAR_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"ZEVAR_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription string `envconfig:"ZEVAR_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ZEVAR_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ZEVAR_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ZEVAR_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
