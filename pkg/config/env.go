package config

const (
	EnvPrefix = "POS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"

	EnvAppEnv            = "POS_APP_ENV"
	EnvPort              = "POS_APP_PORT"
	EnvDeviceID          = "POS_DEVICE_ID"
	EnvDeviceSecret      = "POS_DEVICE_SECRET"
	EnvDBDSN             = "POS_DB_DSN"
	EnvDBDriver          = "POS_DB_DRIVER"
	EnvDBSQLitePath      = "POS_DB_SQLITE_PATH"
	EnvDBHost            = "POS_DB_HOST"
	EnvDBUser            = "POS_DB_USER"
	EnvDBName            = "POS_DB_NAME"
	EnvRedisURL          = "POS_REDIS_URL"
	EnvRemoteBaseURL     = "POS_REMOTE_BASE_URL"
	EnvSearchDebounce    = "POS_SEARCH_DEBOUNCE"
	EnvSyncBackoffBase   = "POS_SYNC_BACKOFF_BASE"
	EnvPubSubCatalogSub  = "POS_PUBSUB_CATALOG_SUBSCRIPTION"
	EnvGCPProjectID      = "POS_GCP_PROJECT_ID"
	EnvCatalogRefreshDur = "POS_CATALOG_REFRESH_INTERVAL"
)

var postgresDBEnvVars = []string{
	EnvDBHost,
	EnvDBUser,
	EnvDBName,
}
