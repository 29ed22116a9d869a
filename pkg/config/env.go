package config

const (
	EnvPrefix = "FORGE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "FORGE_APP_ENV"
	EnvPort     = "FORGE_APP_PORT"
	EnvLogLevel = "FORGE_LOG_LEVEL"

	EnvDBDSN  = "FORGE_DB_DSN"
	EnvDBHost = "FORGE_DB_HOST"
	EnvDBUser = "FORGE_DB_USER"
	EnvDBName = "FORGE_DB_NAME"

	EnvRedisURL = "FORGE_REDIS_URL"

	EnvJWTSecret              = "FORGE_JWT_SECRET"
	EnvJWTIssuer              = "FORGE_JWT_ISSUER"
	EnvJWTExpMins             = "FORGE_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "FORGE_REFRESH_TOKEN_TTL_MINUTES"

	EnvGCPProjectID          = "FORGE_GCP_PROJECT_ID"
	EnvPubSubDomainTopic     = "FORGE_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubNotificationSub = "FORGE_PUBSUB_NOTIFICATION_SUBSCRIPTION"

	EnvMailHost = "FORGE_MAIL_HOST"
	EnvMailFrom = "FORGE_MAIL_FROM"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
