package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Storage      StorageConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Pricing      PricingConfig
	Payments     PaymentsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"CARRENTAL_APP_ENV" required:"true"`
	Port         string   `envconfig:"CARRENTAL_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"CARRENTAL_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"CARRENTAL_LOG_WARN_STACK" default:"false"`
	LogFile      string   `envconfig:"CARRENTAL_LOG_FILE"`
	CORSOrigins  []string `envconfig:"CARRENTAL_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CARRENTAL_DB_DSN"`
	Driver string `envconfig:"CARRENTAL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CARRENTAL_DB_HOST"`
	LegacyPort     int    `envconfig:"CARRENTAL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CARRENTAL_DB_USER"`
	LegacyPassword string `envconfig:"CARRENTAL_DB_PASSWORD"`
	LegacyName     string `envconfig:"CARRENTAL_DB_NAME"`
	LegacySSLMode  string `envconfig:"CARRENTAL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CARRENTAL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARRENTAL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARRENTAL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARRENTAL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"CARRENTAL_DB_SLOW_QUERY" default:"500ms"`
}

// IsSQLite reports whether the local sqlite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"CARRENTAL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CARRENTAL_REDIS_ADDR"`
	Password     string        `envconfig:"CARRENTAL_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARRENTAL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARRENTAL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CARRENTAL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CARRENTAL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARRENTAL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARRENTAL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CARRENTAL_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CARRENTAL_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CARRENTAL_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CARRENTAL_AUTO_MIGRATE" default:"false"`
}

// StorageConfig selects where payment proof images are written.
type StorageConfig struct {
	Backend  string `envconfig:"CARRENTAL_STORAGE_BACKEND" default:"local"`
	LocalDir string `envconfig:"CARRENTAL_STORAGE_LOCAL_DIR" default:"./data/proofs"`
}

func (s StorageConfig) IsGCS() bool {
	return strings.EqualFold(s.Backend, StorageBackendGCS)
}

func (s StorageConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Backend)) {
	case StorageBackendLocal:
		if strings.TrimSpace(s.LocalDir) == "" {
			return fmt.Errorf("%s is required for local storage", EnvStorageLocalDir)
		}
		return nil
	case StorageBackendGCS:
		return nil
	default:
		return fmt.Errorf("unsupported storage backend %q", s.Backend)
	}
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CARRENTAL_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CARRENTAL_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CARRENTAL_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"CARRENTAL_GCS_BUCKET_NAME"`
	BaseURL    string `envconfig:"CARRENTAL_GCS_BASE_URL" default:"https://storage.googleapis.com"`
}

// PricingConfig holds the fixed-formula inputs shared by every quote.
type PricingConfig struct {
	TaxRate    string `envconfig:"CARRENTAL_PRICING_TAX_RATE" default:"0.07"`
	DropOffFee string `envconfig:"CARRENTAL_PRICING_DROP_OFF_FEE" default:"0"`
	Currency   string `envconfig:"CARRENTAL_PRICING_CURRENCY" default:"THB"`
}

// TaxRateDecimal parses the configured tax rate.
func (p PricingConfig) TaxRateDecimal() decimal.Decimal {
	return decimal.RequireFromString(p.TaxRate)
}

// DropOffFeeDecimal parses the configured drop-off fee.
func (p PricingConfig) DropOffFeeDecimal() decimal.Decimal {
	return decimal.RequireFromString(p.DropOffFee)
}

func (p PricingConfig) validate() error {
	rate, err := decimal.NewFromString(p.TaxRate)
	if err != nil {
		return fmt.Errorf("%s invalid: %w", EnvPricingTaxRate, err)
	}
	if rate.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvPricingTaxRate)
	}
	fee, err := decimal.NewFromString(p.DropOffFee)
	if err != nil {
		return fmt.Errorf("%s invalid: %w", EnvPricingDropOffFee, err)
	}
	if fee.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvPricingDropOffFee)
	}
	if strings.TrimSpace(p.Currency) == "" {
		return fmt.Errorf("%s is required", EnvPricingCurrency)
	}
	return nil
}

// PaymentsConfig carries the manual-transfer destination shown to renters.
type PaymentsConfig struct {
	BankName          string        `envconfig:"CARRENTAL_PAYMENTS_BANK_NAME" default:"Kasikorn Bank"`
	BankAccountName   string        `envconfig:"CARRENTAL_PAYMENTS_BANK_ACCOUNT_NAME" default:"Car Rental Co., Ltd."`
	BankAccountNumber string        `envconfig:"CARRENTAL_PAYMENTS_BANK_ACCOUNT_NUMBER"`
	PromptPayID       string        `envconfig:"CARRENTAL_PAYMENTS_PROMPTPAY_ID"`
	MaxProofMB        int           `envconfig:"CARRENTAL_PAYMENTS_MAX_PROOF_MB" default:"5"`
	UploadWindow      time.Duration `envconfig:"CARRENTAL_PAYMENTS_UPLOAD_WINDOW" default:"1m"`
	UploadLimit       int           `envconfig:"CARRENTAL_PAYMENTS_UPLOAD_LIMIT" default:"10"`
}

// MaxProofBytes converts the configured megabyte ceiling to bytes.
func (p PaymentsConfig) MaxProofBytes() int64 {
	if p.MaxProofMB <= 0 {
		return 5 << 20
	}
	return int64(p.MaxProofMB) << 20
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
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
