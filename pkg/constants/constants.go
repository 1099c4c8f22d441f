// Package constants provides shared constants for the maxtabil simulators.
package constants

// Labor constants
const (
	// DaysPerMonth is the commercial month used to derive daily rates.
	DaysPerMonth = 30

	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100
)

// Simples Nacional constants
const (
	// SimplesRevenueCeiling is the annual gross revenue ceiling covered by
	// the Simples Nacional bracket tables.
	SimplesRevenueCeiling = 4_800_000.0

	// BandGapTolerance is the largest accepted gap between one band's max
	// and the next band's min (one cent plus float slack).
	BandGapTolerance = 0.011
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// EnvPrefix prefixes environment overrides, e.g. MAXTABIL_STORAGE_DRIVER.
	EnvPrefix = "MAXTABIL"

	// DefaultTenant is used when neither the request nor the config names one.
	DefaultTenant = "default"
)

// Storage drivers
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverSupabase = "supabase"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the API
	DefaultServerAddress = ":8080"

	// DefaultMaxBodySizeBytes is the default maximum request body size (256 KB)
	DefaultMaxBodySizeBytes int64 = 256 * 1024
)

// Cache defaults
const (
	// DefaultCacheTTLSeconds bounds how long a resolved rule set stays cached.
	DefaultCacheTTLSeconds = 300

	// CacheKeyPrefix namespaces resolved rule sets in Redis.
	CacheKeyPrefix = "maxtabil:ruleset:"
)

// Validation constants
const (
	// SumTolerance is the tolerance for comparing a total with its breakdown.
	SumTolerance = 1e-6

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01
)
