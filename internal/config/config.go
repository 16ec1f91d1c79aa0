// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase = "sqlite"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName       string   `mapstructure:"appname"`
	AppPort       string   `mapstructure:"appport"`
	Environment   string   `mapstructure:"environment"`
	LogLevel      LogLevel `mapstructure:"loglevel"`
	SessionSecret string   `mapstructure:"sessionsecret"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	GeoDBPath             string `mapstructure:"geodbpath"`
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`

	// View events older than this are soft-deleted by the retention job. 0 disables it.
	ViewRetentionDays  int `mapstructure:"viewretentiondays"`
	RetentionBatchSize int `mapstructure:"retentionbatchsize"`

	// Dashboard response cache, in seconds. 0 disables caching.
	DashboardCacheSeconds int `mapstructure:"dashboardcacheseconds"`

	// How many dashboard queries run at once.
	DashboardWorkers int `mapstructure:"dashboardworkers"`

	// Origins allowed to send view beacons, comma separated.
	CORSAllowOrigins string `mapstructure:"corsalloworigins"`
}

const defaultSessionSecret = "88888888888888888888888888888888"

var defaults = map[string]any{
	"appname":               "linblog",
	"appport":               "3000",
	"environment":           Development,
	"loglevel":              string(LogLevelDebug),
	"sessionsecret":         defaultSessionSecret,
	"storagepath":           "storage",
	"geodbpath":             "storage/GeoLite2-Country.mmdb",
	"publicdir":             "public",
	"publicassetsurlprefix": "/",
	"logsdir":               "logs",
	"logsmaxsizeinmb":       20,
	"logsmaxbackups":        10,
	"logsmaxageindays":      30,
	"dbtype":                SQLiteDatabase,
	"dbmaxopenconns":        0,
	"dbmaxidleconns":        0,
	"jobintervalseconds":    3600,
	"viewretentiondays":     400,
	"retentionbatchsize":    500,
	"dashboardcacheseconds": 60,
	"dashboardworkers":      4,
	"corsalloworigins":      "*",
}

// envBindings maps config keys to LINBLOG_* environment variables.
var envBindings = map[string]string{
	"appname":               "LINBLOG_APP_NAME",
	"appport":               "LINBLOG_APP_PORT",
	"environment":           "LINBLOG_ENV",
	"loglevel":              "LINBLOG_LOG_LEVEL",
	"sessionsecret":         "LINBLOG_SESSION_SECRET",
	"storagepath":           "LINBLOG_STORAGE_PATH",
	"geodbpath":             "LINBLOG_GEO_DB_PATH",
	"publicdir":             "LINBLOG_PUBLIC_DIR",
	"publicassetsurlprefix": "LINBLOG_PUBLIC_ASSETS_URL_PREFIX",
	"logsdir":               "LINBLOG_LOGS_DIR",
	"logsmaxsizeinmb":       "LINBLOG_LOGS_MAX_SIZE_IN_MB",
	"logsmaxbackups":        "LINBLOG_LOGS_MAX_BACKUPS",
	"logsmaxageindays":      "LINBLOG_LOGS_MAX_AGE_IN_DAYS",
	"dbtype":                "LINBLOG_DB_TYPE",
	"dbmaxopenconns":        "LINBLOG_DB_MAX_OPEN_CONNS",
	"dbmaxidleconns":        "LINBLOG_DB_MAX_IDLE_CONNS",
	"jobintervalseconds":    "LINBLOG_JOB_INTERVAL_SECONDS",
	"viewretentiondays":     "LINBLOG_VIEW_RETENTION_DAYS",
	"retentionbatchsize":    "LINBLOG_RETENTION_BATCH_SIZE",
	"dashboardcacheseconds": "LINBLOG_DASHBOARD_CACHE_SECONDS",
	"dashboardworkers":      "LINBLOG_DASHBOARD_WORKERS",
	"corsalloworigins":      "LINBLOG_CORS_ALLOW_ORIGINS",
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		for key, value := range defaults {
			v.SetDefault(key, value)
		}
		for key, env := range envBindings {
			if err := v.BindEnv(key, env); err != nil {
				log.Fatalf("config: failed to bind %s: %v", env, err)
			}
		}

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		if cfg.IsProduction() && cfg.SessionSecret == defaultSessionSecret {
			log.Fatal("Production requires a unique LINBLOG_SESSION_SECRET (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validDBTypes := map[string]bool{
		SQLiteDatabase: true,
	}
	if !validDBTypes[c.DatabaseType] {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	if c.ViewRetentionDays < 0 {
		return fmt.Errorf("invalid view retention days: %d", c.ViewRetentionDays)
	}
	if c.DashboardWorkers <= 0 {
		return fmt.Errorf("invalid dashboard workers: %d", c.DashboardWorkers)
	}
	if c.RetentionBatchSize <= 0 {
		return fmt.Errorf("invalid retention batch size: %d", c.RetentionBatchSize)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// The getters below satisfy cartridge's Config, FactoryConfig and
// LogConfigProvider interfaces.

// GetPort returns the HTTP server port.
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets.
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets.
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name.
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string.
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key.
func (c *Config) GetSessionSecret() string {
	return c.SessionSecret
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment.
// An explicit env var wins; otherwise tests get 1 and everything else 10 so the
// dashboard fan-out can read in parallel.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string.
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory.
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB.
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups.
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files.
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
