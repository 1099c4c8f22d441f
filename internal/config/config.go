// Package config defines the runtime configuration of the maxtabil binaries
// and loads it from a YAML file, the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/leadtunic/maxtabil-app-sub001/pkg/constants"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/validation"
)

// Configuration holds all configuration for maxtabil.
type Configuration struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging,omitempty"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output,omitempty"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server,omitempty"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage,omitempty"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache,omitempty"`
	Tenant  string        `mapstructure:"tenant" yaml:"tenant,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level,omitempty"`           // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format,omitempty"`         // json, console
	OutputFile string `mapstructure:"outputFile" yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format,omitempty"` // pretty, csv, json
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Address     string `mapstructure:"address" yaml:"address,omitempty"`
	MaxBodySize string `mapstructure:"maxBodySize" yaml:"maxBodySize,omitempty"` // e.g. 256K, 1M
}

// StorageConfig selects where rule sets are persisted.
type StorageConfig struct {
	Driver      string `mapstructure:"driver" yaml:"driver,omitempty"` // memory, postgres, supabase
	PostgresDSN string `mapstructure:"postgresDsn" yaml:"postgresDsn,omitempty"`
	Migrate     bool   `mapstructure:"migrate" yaml:"migrate,omitempty"`
	SupabaseURL string `mapstructure:"supabaseUrl" yaml:"supabaseUrl,omitempty"`
	SupabaseKey string `mapstructure:"supabaseKey" yaml:"supabaseKey,omitempty"`
}

// CacheConfig configures the Redis cache in front of the store.
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled,omitempty"`
	RedisAddr     string        `mapstructure:"redisAddr" yaml:"redisAddr,omitempty"`
	RedisPassword string        `mapstructure:"redisPassword" yaml:"redisPassword,omitempty"`
	RedisDB       int           `mapstructure:"redisDb" yaml:"redisDb,omitempty"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl,omitempty"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("output.format", constants.OutputFormatPretty)
	v.SetDefault("server.address", constants.DefaultServerAddress)
	v.SetDefault("server.maxBodySize", "256K")
	v.SetDefault("storage.driver", constants.StorageDriverMemory)
	v.SetDefault("storage.postgresDsn", "")
	v.SetDefault("storage.migrate", false)
	v.SetDefault("storage.supabaseUrl", "")
	v.SetDefault("storage.supabaseKey", "")
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.redisAddr", "localhost:6379")
	v.SetDefault("cache.redisPassword", "")
	v.SetDefault("cache.redisDb", 0)
	v.SetDefault("cache.ttl", time.Duration(constants.DefaultCacheTTLSeconds)*time.Second)
	v.SetDefault("tenant", constants.DefaultTenant)

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. Environment variables such as
// MAXTABIL_STORAGE_DRIVER override file values.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}
	return decode(v)
}

// LoadConfigurationOrDefaults behaves like LoadConfiguration, except that a
// missing file yields the defaults (still subject to environment overrides).
func LoadConfigurationOrDefaults(configPath string) (*Configuration, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return LoadConfiguration(configPath)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file, %s", err)
		}
	}
	return decode(newViper())
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	configuration.normalize()
	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	return &configuration, nil
}

func (c *Configuration) normalize() {
	c.Tenant = strings.TrimSpace(c.Tenant)
	if c.Tenant == "" {
		c.Tenant = constants.DefaultTenant
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = constants.StorageDriverMemory
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = time.Duration(constants.DefaultCacheTTLSeconds) * time.Second
	}
}

// Validate checks the tenant and output format, and that the selected
// storage driver has what it needs.
func (c *Configuration) Validate() error {
	if err := validation.ValidateTenant(c.Tenant); err != nil {
		return err
	}
	if c.Output.Format != "" {
		if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
			return err
		}
	}
	switch c.Storage.Driver {
	case constants.StorageDriverMemory:
	case constants.StorageDriverPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgresDsn is required for the %s driver", c.Storage.Driver)
		}
	case constants.StorageDriverSupabase:
		if c.Storage.SupabaseURL == "" || c.Storage.SupabaseKey == "" {
			return fmt.Errorf("storage.supabaseUrl and storage.supabaseKey are required for the %s driver", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unsupported storage driver %q, expected %s, %s or %s", c.Storage.Driver,
			constants.StorageDriverMemory, constants.StorageDriverPostgres, constants.StorageDriverSupabase)
	}
	if c.Cache.Enabled && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redisAddr is required when the cache is enabled")
	}
	return nil
}

// LoadDotEnv exports the variables of a .env file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
