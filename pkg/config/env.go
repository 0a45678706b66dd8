package config

const EnvPrefix = "SRMS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv      = "SRMS_APP_ENV"
	EnvPort        = "SRMS_APP_PORT"
	EnvLogLevel    = "SRMS_LOG_LEVEL"
	EnvDBDSN       = "SRMS_DB_DSN"
	EnvDBHost      = "SRMS_DB_HOST"
	EnvDBUser      = "SRMS_DB_USER"
	EnvDBName      = "SRMS_DB_NAME"
	EnvDBPassword  = "SRMS_DB_PASSWORD"
	EnvRedisURL    = "SRMS_REDIS_URL"
	EnvJWTSecret   = "SRMS_JWT_SECRET"
	EnvJWTIssuer   = "SRMS_JWT_ISSUER"
	EnvCustomerTTL = "SRMS_CACHE_CUSTOMERS_TTL"
	EnvGatewayRL   = "SRMS_GATEWAY_RATE_LIMIT"
)

var discreteDBEnvVars = []string{
	EnvDBHost,
	EnvDBUser,
	EnvDBName,
}
