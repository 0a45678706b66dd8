package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Gateway   GatewayConfig
	JWT       JWTConfig
	Inventory InventoryConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
	Outbox    OutboxConfig
	Cron      CronConfig
	Flags     FeatureFlagsConfig
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
	Env            string        `envconfig:"SRMS_APP_ENV" required:"true"`
	Port           string        `envconfig:"SRMS_APP_PORT" default:"8080"`
	LogLevel       string        `envconfig:"SRMS_LOG_LEVEL" default:"info"`
	LogWarnStack   bool          `envconfig:"SRMS_LOG_WARN_STACK" default:"false"`
	RequestTimeout time.Duration `envconfig:"SRMS_REQUEST_TIMEOUT" default:"15s"`
	DefaultLocale  string        `envconfig:"SRMS_DEFAULT_LOCALE" default:"en"`
	IdempotencyTTL time.Duration `envconfig:"SRMS_IDEMPOTENCY_TTL" default:"24h"`
	MetricsPort    string        `envconfig:"SRMS_METRICS_PORT" default:"9090"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"SRMS_DB_DSN"`

	Host     string `envconfig:"SRMS_DB_HOST"`
	Port     int    `envconfig:"SRMS_DB_PORT" default:"5432"`
	User     string `envconfig:"SRMS_DB_USER"`
	Password string `envconfig:"SRMS_DB_PASSWORD"`
	Name     string `envconfig:"SRMS_DB_NAME"`
	SSLMode  string `envconfig:"SRMS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SRMS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SRMS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SRMS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SRMS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"SRMS_DB_SLOW_QUERY" default:"250ms"`
	ConnectTimeout  time.Duration `envconfig:"SRMS_DB_CONNECT_TIMEOUT" default:"5s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SRMS_REDIS_URL"`
	Address      string        `envconfig:"SRMS_REDIS_ADDR"`
	Password     string        `envconfig:"SRMS_REDIS_PASSWORD"`
	DB           int           `envconfig:"SRMS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SRMS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SRMS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SRMS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SRMS_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"SRMS_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Enabled reports whether any Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// CacheConfig holds per-cache-name TTLs. A zero TTL keeps entries until evicted.
type CacheConfig struct {
	Backend      string        `envconfig:"SRMS_CACHE_BACKEND" default:"redis"`
	CustomerTTL  time.Duration `envconfig:"SRMS_CACHE_CUSTOMERS_TTL" default:"10m"`
	ContactorTTL time.Duration `envconfig:"SRMS_CACHE_CONTACTORS_TTL" default:"10m"`
	WarehouseTTL time.Duration `envconfig:"SRMS_CACHE_WAREHOUSES_TTL" default:"10m"`
	InventoryTTL time.Duration `envconfig:"SRMS_CACHE_INVENTORY_TTL" default:"2m"`
	PageTTL      time.Duration `envconfig:"SRMS_CACHE_PAGES_TTL" default:"30s"`
}

type GatewayConfig struct {
	Port             string        `envconfig:"SRMS_GATEWAY_PORT" default:"8000"`
	CustomerURL      string        `envconfig:"SRMS_GATEWAY_CUSTOMER_URL" default:"http://localhost:8080"`
	ContactorURL     string        `envconfig:"SRMS_GATEWAY_CONTACTOR_URL" default:"http://localhost:8080"`
	WarehouseURL     string        `envconfig:"SRMS_GATEWAY_WAREHOUSE_URL" default:"http://localhost:8080"`
	AdminURL         string        `envconfig:"SRMS_GATEWAY_ADMIN_URL" default:"http://localhost:8080"`
	UpstreamTimeout  time.Duration `envconfig:"SRMS_GATEWAY_UPSTREAM_TIMEOUT" default:"10s"`
	RateLimitBackend string        `envconfig:"SRMS_GATEWAY_RATE_LIMIT_BACKEND" default:"redis"`
	RateLimit        int           `envconfig:"SRMS_GATEWAY_RATE_LIMIT" default:"120"`
	RateLimitWindow  time.Duration `envconfig:"SRMS_GATEWAY_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitBurst   int           `envconfig:"SRMS_GATEWAY_RATE_LIMIT_BURST" default:"20"`
	BreakerFailures  uint32        `envconfig:"SRMS_GATEWAY_BREAKER_FAILURES" default:"5"`
	BreakerOpenFor   time.Duration `envconfig:"SRMS_GATEWAY_BREAKER_OPEN_FOR" default:"30s"`
	BreakerHalfOpen  uint32        `envconfig:"SRMS_GATEWAY_BREAKER_HALF_OPEN_REQUESTS" default:"3"`
	AllowedOrigins   []string      `envconfig:"SRMS_GATEWAY_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type JWTConfig struct {
	Secret       string `envconfig:"SRMS_JWT_SECRET"`
	PublicKeyPEM string `envconfig:"SRMS_JWT_PUBLIC_KEY"`
	Issuer       string `envconfig:"SRMS_JWT_ISSUER"`
	Audience     string `envconfig:"SRMS_JWT_AUDIENCE"`
}

type InventoryConfig struct {
	LockTTL        time.Duration `envconfig:"SRMS_INVENTORY_LOCK_TTL" default:"10s"`
	StatisticsDays int           `envconfig:"SRMS_INVENTORY_STATISTICS_DAYS" default:"30"`
	AlertsEnabled  bool          `envconfig:"SRMS_INVENTORY_ALERTS_ENABLED" default:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SRMS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SRMS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SRMS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AlertsTopic    string        `envconfig:"SRMS_PUBSUB_ALERTS_TOPIC" default:"srms-inventory-alerts"`
	EmulatorHost   string        `envconfig:"SRMS_PUBSUB_EMULATOR_HOST"`
	DelayThreshold time.Duration `envconfig:"SRMS_PUBSUB_DELAY_THRESHOLD" default:"10ms"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SRMS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SRMS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SRMS_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// CronConfig drives cmd/cron-worker.
type CronConfig struct {
	Interval                time.Duration `envconfig:"SRMS_CRON_INTERVAL" default:"1h"`
	LockTTL                 time.Duration `envconfig:"SRMS_CRON_LOCK_TTL" default:"55m"`
	JobTimeout              time.Duration `envconfig:"SRMS_CRON_JOB_TIMEOUT" default:"10m"`
	OutboxRetentionDays     int           `envconfig:"SRMS_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	DeadLetterRetentionDays int           `envconfig:"SRMS_CRON_DLQ_RETENTION_DAYS" default:"90"`
	LowStockDigest          bool          `envconfig:"SRMS_CRON_LOW_STOCK_DIGEST" default:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SRMS_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
