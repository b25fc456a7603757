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
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Issuance     IssuanceConfig
	Cron         CronConfig
	Notify       NotifyConfig
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
	Env          string `envconfig:"SITESTOCK_APP_ENV" required:"true"`
	Port         string `envconfig:"SITESTOCK_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SITESTOCK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SITESTOCK_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SITESTOCK_LOG_FORMAT" default:"json"`
	// CORSOrigins is comma separated.
	CORSOrigins []string `envconfig:"SITESTOCK_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SITESTOCK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SITESTOCK_DB_DSN"`
	Driver string `envconfig:"SITESTOCK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SITESTOCK_DB_HOST"`
	LegacyPort     int    `envconfig:"SITESTOCK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SITESTOCK_DB_USER"`
	LegacyPassword string `envconfig:"SITESTOCK_DB_PASSWORD"`
	LegacyName     string `envconfig:"SITESTOCK_DB_NAME"`
	LegacySSLMode  string `envconfig:"SITESTOCK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SITESTOCK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SITESTOCK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SITESTOCK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SITESTOCK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"SITESTOCK_DB_SLOW_QUERY" default:"250ms"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite engine.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"SITESTOCK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SITESTOCK_REDIS_ADDR"`
	Password     string        `envconfig:"SITESTOCK_REDIS_PASSWORD"`
	DB           int           `envconfig:"SITESTOCK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SITESTOCK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SITESTOCK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SITESTOCK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SITESTOCK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SITESTOCK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SITESTOCK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SITESTOCK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SITESTOCK_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	AutoMigrate  bool `envconfig:"SITESTOCK_AUTO_MIGRATE" default:"false"`
	IssuanceLock bool `envconfig:"SITESTOCK_FEATURE_ISSUANCE_LOCK" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"SITESTOCK_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	HTTPIdempotencyTTL   time.Duration `envconfig:"SITESTOCK_HTTP_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SITESTOCK_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"SITESTOCK_PUBSUB_DOMAIN_TOPIC" default:"sitestock-material-events"`
	NotificationTopic        string `envconfig:"SITESTOCK_PUBSUB_NOTIFICATION_TOPIC" default:"sitestock-notification-events"`
	DomainSubscription       string `envconfig:"SITESTOCK_PUBSUB_DOMAIN_SUBSCRIPTION"`
	NotificationSubscription string `envconfig:"SITESTOCK_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SITESTOCK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SITESTOCK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SITESTOCK_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type IssuanceConfig struct {
	LockTTL  time.Duration `envconfig:"SITESTOCK_ISSUANCE_LOCK_TTL" default:"30s"`
	LockWait time.Duration `envconfig:"SITESTOCK_ISSUANCE_LOCK_WAIT" default:"2s"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"SITESTOCK_CRON_INTERVAL" default:"1h"`
	LockKey               string        `envconfig:"SITESTOCK_CRON_LOCK_KEY" default:"sitestock:cron:lock"`
	LockTTL               time.Duration `envconfig:"SITESTOCK_CRON_LOCK_TTL" default:"55m"`
	OutboxRetentionDays   int           `envconfig:"SITESTOCK_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	NotificationRetention int           `envconfig:"SITESTOCK_CRON_NOTIFICATION_RETENTION_DAYS" default:"90"`
}

type NotifyConfig struct {
	StockManagerID string `envconfig:"SITESTOCK_NOTIFY_STOCK_MANAGER_ID"`
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
