package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Pricing       PricingConfig
	Delivery      DeliveryConfig
	Payout        PayoutConfig
	Digital       DigitalConfig
	Notification  NotificationConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Digital.TokenSecret) == "" {
		cfg.Digital.TokenSecret = cfg.JWT.Secret
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BAZAAR_APP_ENV" required:"true"`
	Port         string `envconfig:"BAZAAR_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BAZAAR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BAZAAR_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"BAZAAR_LOG_FORMAT" default:"json"`
	BaseURL      string `envconfig:"BAZAAR_BASE_URL" default:"http://localhost:8080"`
	UserWebURL   string `envconfig:"BAZAAR_USER_WEB_URL" default:"http://localhost:3000"`

	// Empty means the built-in first-party origins.
	CORSOrigins []string `envconfig:"BAZAAR_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BAZAAR_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BAZAAR_DB_DSN"`
	Driver string `envconfig:"BAZAAR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BAZAAR_DB_HOST"`
	LegacyPort     int    `envconfig:"BAZAAR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BAZAAR_DB_USER"`
	LegacyPassword string `envconfig:"BAZAAR_DB_PASSWORD"`
	LegacyName     string `envconfig:"BAZAAR_DB_NAME"`
	LegacySSLMode  string `envconfig:"BAZAAR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BAZAAR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BAZAAR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BAZAAR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BAZAAR_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQuery is the duration above which a statement is logged at warn.
	// Zero disables slow query logging.
	SlowQuery time.Duration `envconfig:"BAZAAR_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BAZAAR_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BAZAAR_REDIS_ADDR"`
	Password     string        `envconfig:"BAZAAR_REDIS_PASSWORD"`
	DB           int           `envconfig:"BAZAAR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BAZAAR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BAZAAR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BAZAAR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BAZAAR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BAZAAR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BAZAAR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BAZAAR_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BAZAAR_JWT_EXPIRATION_MINUTES" required:"true"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BAZAAR_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BAZAAR_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BAZAAR_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BAZAAR_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BAZAAR_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"BAZAAR_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"BAZAAR_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"BAZAAR_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow  time.Duration `envconfig:"BAZAAR_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterIPLimit int           `envconfig:"BAZAAR_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BAZAAR_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BAZAAR_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"BAZAAR_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BAZAAR_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"BAZAAR_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BAZAAR_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"BAZAAR_PUBSUB_DOMAIN_TOPIC" required:"true"`
	NotificationSubscription string `envconfig:"BAZAAR_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	AnalyticsSubscription    string `envconfig:"BAZAAR_PUBSUB_ANALYTICS_SUBSCRIPTION"`
}

type BigQueryConfig struct {
	Dataset          string        `envconfig:"BAZAAR_BIGQUERY_DATASET" default:"bazaar"`
	SalesEventsTable string        `envconfig:"BAZAAR_BIGQUERY_SALES_TABLE" default:"sales_events"`
	InsertBatchSize  int           `envconfig:"BAZAAR_BIGQUERY_INSERT_BATCH_SIZE" default:"500"`
	InsertAttempts   int           `envconfig:"BAZAAR_BIGQUERY_INSERT_ATTEMPTS" default:"3"`
	InsertBackoff    time.Duration `envconfig:"BAZAAR_BIGQUERY_INSERT_BACKOFF" default:"250ms"`
	InsertMaxBackoff time.Duration `envconfig:"BAZAAR_BIGQUERY_INSERT_MAX_BACKOFF" default:"2s"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BAZAAR_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BAZAAR_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BAZAAR_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// PricingConfig holds the marketplace-wide pricing defaults.
type PricingConfig struct {
	CommissionFee float64 `envconfig:"BAZAAR_COMMISSION_FEE" default:"0.1"`
	SiteCurrency  string  `envconfig:"BAZAAR_SITE_CURRENCY" default:"ZMW"`
}

type DeliveryConfig struct {
	DefaultCommission    float64 `envconfig:"BAZAAR_DELIVERY_DEFAULT_COMMISSION" default:"0.1"`
	DefaultDeliveryPrice float64 `envconfig:"BAZAAR_DELIVERY_DEFAULT_SHIPPING_PRICE" default:"1"`
}

type PayoutConfig struct {
	MaxRequestsPerDay int           `envconfig:"BAZAAR_MAX_PAYOUT_REQUEST_PER_DAY" default:"3"`
	RequestWindow     time.Duration `envconfig:"BAZAAR_PAYOUT_REQUEST_WINDOW" default:"24h"`
	LockTTL           time.Duration `envconfig:"BAZAAR_PAYOUT_LOCK_TTL" default:"30s"`
}

// DigitalConfig signs download links for digital products. The secret falls
// back to the JWT secret.
type DigitalConfig struct {
	TokenSecret string        `envconfig:"BAZAAR_DIGITAL_TOKEN_SECRET"`
	TokenTTL    time.Duration `envconfig:"BAZAAR_DIGITAL_TOKEN_TTL" default:"24h"`
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"BAZAAR_CRON_INTERVAL" default:"24h"`
	LockTTL                   time.Duration `envconfig:"BAZAAR_CRON_LOCK_TTL" default:"1h"`
	OutboxRetentionDays       int           `envconfig:"BAZAAR_OUTBOX_RETENTION_DAYS" default:"30"`
	NotificationRetentionDays int           `envconfig:"BAZAAR_NOTIFICATION_RETENTION_DAYS" default:"90"`
}

type NotificationConfig struct {
	AdminEmail  string `envconfig:"BAZAAR_EMAIL_NOTIFICATION_ADMIN" default:"admin@bazaar.local"`
	RefundEmail string `envconfig:"BAZAAR_EMAIL_NOTIFICATION_REFUND" default:"refunds@bazaar.local"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, DriverSQLite) {
		db.DSN = "file:bazaar.db?cache=shared&_fk=1"
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
