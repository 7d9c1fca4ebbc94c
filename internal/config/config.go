package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides the loaded configuration.
var Module = fx.Provide(Load)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	// Bound on any single engine operation, including its I/O.
	OpTimeoutSeconds int

	Filing         FilingConfig
	Reconciliation ReconciliationConfig
}

// OpTimeout returns the per-operation deadline.
func (c Config) OpTimeout() time.Duration {
	if c.OpTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.OpTimeoutSeconds) * time.Second
}

// FilingConfig controls due-date derivation and late-fee accrual.
type FilingConfig struct {
	// Day of the following month each sub-return falls due.
	SubReturnADueDay int
	SubReturnBDueDay int

	// Flat late fee accrued per day past the summary-return due date.
	LateFeePerDay int64
	// Annual interest rate applied to unpaid tax, as a fraction (0.18 = 18%).
	InterestAnnualRate float64
}

// ReconciliationConfig holds the auto-review thresholds. These are tunable
// policy, not business law.
type ReconciliationConfig struct {
	MaxDiscrepancyPct float64
	MaxDiscrepancyAbs int64
	MaxPendingCredit  int64
	MaxRejectedCredit int64
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "taxtrail"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "taxtrail"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		OpTimeoutSeconds: getenvInt("ENGINE_OP_TIMEOUT_SECONDS", 10),

		Filing: FilingConfig{
			SubReturnADueDay:   getenvInt("FILING_SUB_RETURN_A_DUE_DAY", 11),
			SubReturnBDueDay:   getenvInt("FILING_SUB_RETURN_B_DUE_DAY", 20),
			LateFeePerDay:      getenvInt64("FILING_LATE_FEE_PER_DAY", 50),
			InterestAnnualRate: getenvFloat("FILING_INTEREST_ANNUAL_RATE", 0.18),
		},
		Reconciliation: ReconciliationConfig{
			MaxDiscrepancyPct: getenvFloat("RECON_MAX_DISCREPANCY_PCT", 5.0),
			MaxDiscrepancyAbs: getenvInt64("RECON_MAX_DISCREPANCY_ABS", 10000),
			MaxPendingCredit:  getenvInt64("RECON_MAX_PENDING_CREDIT", 50000),
			MaxRejectedCredit: getenvInt64("RECON_MAX_REJECTED_CREDIT", 25000),
		},
	}

	return cfg
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt64(key string, fallback int64) int64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}
