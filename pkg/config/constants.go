package config

const (
	EnvPrefix = "ALLOCATIONS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv       = "ALLOCATIONS_APP_ENV"
	EnvPort         = "ALLOCATIONS_APP_PORT"
	EnvLogLevel     = "ALLOCATIONS_LOG_LEVEL"
	EnvCORSOrigins  = "ALLOCATIONS_CORS_ORIGINS"
	EnvDBDSN        = "ALLOCATIONS_DB_DSN"
	EnvDBHost       = "ALLOCATIONS_DB_HOST"
	EnvDBPort       = "ALLOCATIONS_DB_PORT"
	EnvDBUser       = "ALLOCATIONS_DB_USER"
	EnvDBPassword   = "ALLOCATIONS_DB_PASSWORD"
	EnvDBName       = "ALLOCATIONS_DB_NAME"
	EnvRedisURL     = "ALLOCATIONS_REDIS_URL"
	EnvJWTSecret    = "ALLOCATIONS_JWT_SECRET"
	EnvJWTIssuer    = "ALLOCATIONS_JWT_ISSUER"
	EnvJWTExpMins   = "ALLOCATIONS_JWT_EXPIRATION_MINUTES"
	EnvUseSQLite    = "ALLOCATIONS_USE_SQLITE"
	EnvReportingURL = "ALLOCATIONS_REPORTING_BASE_URL"
	EnvReportingKey = "ALLOCATIONS_REPORTING_API_KEY"
	EnvMemberTTL    = "ALLOCATIONS_AUDIENCE_MEMBER_CACHE_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
