package config

// EnvPrefix is handed to envconfig; every field carries its full name in the tag.
const EnvPrefix = "CARRENTAL"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	StorageBackendLocal = "local"
	StorageBackendGCS   = "gcs"
)

const (
	EnvAppEnv   = "CARRENTAL_APP_ENV"
	EnvPort     = "CARRENTAL_APP_PORT"
	EnvLogLevel = "CARRENTAL_LOG_LEVEL"
	EnvLogFile  = "CARRENTAL_LOG_FILE"

	EnvDBDSN    = "CARRENTAL_DB_DSN"
	EnvDBDriver = "CARRENTAL_DB_DRIVER"
	EnvDBHost   = "CARRENTAL_DB_HOST"
	EnvDBUser   = "CARRENTAL_DB_USER"
	EnvDBName   = "CARRENTAL_DB_NAME"

	EnvRedisURL = "CARRENTAL_REDIS_URL"

	EnvJWTSecret = "CARRENTAL_JWT_SECRET"
	EnvJWTIssuer = "CARRENTAL_JWT_ISSUER"

	EnvStorageBackend  = "CARRENTAL_STORAGE_BACKEND"
	EnvStorageLocalDir = "CARRENTAL_STORAGE_LOCAL_DIR"
	EnvGCSBucket       = "CARRENTAL_GCS_BUCKET_NAME"

	EnvPricingTaxRate    = "CARRENTAL_PRICING_TAX_RATE"
	EnvPricingDropOffFee = "CARRENTAL_PRICING_DROP_OFF_FEE"
	EnvPricingCurrency   = "CARRENTAL_PRICING_CURRENCY"

	EnvPaymentsMaxProofMB = "CARRENTAL_PAYMENTS_MAX_PROOF_MB"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
