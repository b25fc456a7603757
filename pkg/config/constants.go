package config

// EnvPrefix is the envconfig prefix shared by every service binary.
const EnvPrefix = "SITESTOCK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names referenced outside struct tags (tests, DSN fallback).
const (
	EnvAppEnv   = "SITESTOCK_APP_ENV"
	EnvPort     = "SITESTOCK_APP_PORT"
	EnvLogLevel = "SITESTOCK_LOG_LEVEL"

	EnvDBDSN    = "SITESTOCK_DB_DSN"
	EnvDBDriver = "SITESTOCK_DB_DRIVER"
	EnvDBHost   = "SITESTOCK_DB_HOST"
	EnvDBUser   = "SITESTOCK_DB_USER"
	EnvDBName   = "SITESTOCK_DB_NAME"

	EnvRedisURL = "SITESTOCK_REDIS_URL"

	EnvJWTSecret = "SITESTOCK_JWT_SECRET"
	EnvJWTIssuer = "SITESTOCK_JWT_ISSUER"

	EnvGCPProjectID            = "SITESTOCK_GCP_PROJECT_ID"
	EnvPubSubDomainTopic       = "SITESTOCK_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubNotificationTopic = "SITESTOCK_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubDomainSub         = "SITESTOCK_PUBSUB_DOMAIN_SUBSCRIPTION"
	EnvPubSubNotificationSub   = "SITESTOCK_PUBSUB_NOTIFICATION_SUBSCRIPTION"

	EnvStockManagerID = "SITESTOCK_NOTIFY_STOCK_MANAGER_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
