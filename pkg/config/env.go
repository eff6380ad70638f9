package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "BAZAAR"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv    = "BAZAAR_APP_ENV"
	EnvPort      = "BAZAAR_APP_PORT"
	EnvDBDSN     = "BAZAAR_DB_DSN"
	EnvDBHost    = "BAZAAR_DB_HOST"
	EnvDBUser    = "BAZAAR_DB_USER"
	EnvDBName    = "BAZAAR_DB_NAME"
	EnvUseSQLite = "BAZAAR_USE_SQLITE"

	EnvRedisURL   = "BAZAAR_REDIS_URL"
	EnvJWTSecret  = "BAZAAR_JWT_SECRET"
	EnvJWTIssuer  = "BAZAAR_JWT_ISSUER"
	EnvJWTExpMins = "BAZAAR_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID          = "BAZAAR_GCP_PROJECT_ID"
	EnvPubSubDomainTopic     = "BAZAAR_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubNotificationSub = "BAZAAR_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvPubSubAnalyticsSub    = "BAZAAR_PUBSUB_ANALYTICS_SUBSCRIPTION"

	EnvCommissionFee      = "BAZAAR_COMMISSION_FEE"
	EnvSiteCurrency       = "BAZAAR_SITE_CURRENCY"
	EnvMaxPayoutRequests  = "BAZAAR_MAX_PAYOUT_REQUEST_PER_DAY"
	EnvDigitalTokenSecret = "BAZAAR_DIGITAL_TOKEN_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
