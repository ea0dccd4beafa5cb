// Package conf loads lifer settings from config files, environment variables and flags.
package conf

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/logger"
	"github.com/tphakala/lifer/internal/secrets"
)

// Settings is the root configuration structure.
type Settings struct {
	Debug bool // true to enable debug logging

	// Runtime values, not stored in config file
	Version   string `yaml:"-"`
	BuildDate string `yaml:"-"`

	EBird      EBirdSettings        `yaml:"ebird"`
	Macaulay   MacaulaySettings     `yaml:"macaulay"`
	Cache      CacheSettings        `yaml:"cache"`
	Aggregator AggregatorSettings   `yaml:"aggregator"`
	Database   DatabaseSettings     `yaml:"database"`
	Server     ServerSettings       `yaml:"server"`
	Logging    logger.LoggingConfig `yaml:"logging"`
	Telemetry  TelemetrySettings    `yaml:"telemetry"`
}

// EBirdSettings configures the upstream observation API client.
type EBirdSettings struct {
	APIKey            string          `yaml:"apikey"`                            // eBird API token, ${VAR} references expanded
	APIKeyFile        string          `yaml:"apikeyfile"`                        // file holding the token, wins over apikey
	BaseURL           string          `yaml:"baseurl" validate:"required,url"`   // API root, without trailing slash
	Timeout           time.Duration   `yaml:"timeout" validate:"gt=0"`           // per-attempt timeout
	Retries           int             `yaml:"retries" validate:"gte=0,lte=10"`   // extra attempts after the first
	RetryDelay        time.Duration   `yaml:"retrydelay" validate:"gte=0"`       // base backoff delay
	RequestsPerSecond float64         `yaml:"requestspersecond" validate:"gt=0"` // outbound pacing
	Breaker           BreakerSettings `yaml:"breaker"`
}

// BreakerSettings configures the upstream circuit breaker.
type BreakerSettings struct {
	Threshold   uint32        `yaml:"threshold" validate:"gte=1"`  // consecutive failures before opening
	OpenTimeout time.Duration `yaml:"opentimeout" validate:"gt=0"` // time spent open before a trial request
}

// MacaulaySettings configures checklist photo lookups.
type MacaulaySettings struct {
	Enabled      bool          `yaml:"enabled"`
	BaseURL      string        `yaml:"baseurl" validate:"omitempty,url"`      // media search API root, empty for the default
	AssetBaseURL string        `yaml:"assetbaseurl" validate:"omitempty,url"` // photo CDN root, empty for the default
	Timeout      time.Duration `yaml:"timeout" validate:"gte=0"`
}

// CacheSettings configures the in-process response cache.
type CacheSettings struct {
	MaxEntries int `yaml:"maxentries" validate:"gte=1"`
}

// AggregatorSettings bounds checklist fan-out per request.
type AggregatorSettings struct {
	MaxChecklists int `yaml:"maxchecklists" validate:"gte=0"`
	Concurrency   int `yaml:"concurrency" validate:"gte=1,lte=64"`
}

// DatabaseSettings configures the life-list store.
type DatabaseSettings struct {
	Type  string        `yaml:"type" validate:"oneof=sqlite mysql"`
	Path  string        `yaml:"path" validate:"required_if=Type sqlite"` // sqlite file path, ":memory:" for ephemeral
	MySQL MySQLSettings `yaml:"mysql"`
}

// MySQLSettings configures the MySQL backend.
type MySQLSettings struct {
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	PasswordFile string        `yaml:"passwordfile"` // file holding the password, wins over password
	Database     string        `yaml:"database"`
	Timeout      time.Duration `yaml:"timeout" validate:"gte=0"`
}

// ServerSettings configures the HTTP boundary.
type ServerSettings struct {
	Listen      string `yaml:"listen" validate:"required"`
	RateLimit   int    `yaml:"ratelimit" validate:"gte=1"`   // requests per minute per client IP
	MaxUploadMB int    `yaml:"maxuploadmb" validate:"gte=1"` // life-list upload size limit
	TrustProxy  bool   `yaml:"trustproxy"`                   // take client IP from X-Forwarded-For
}

// TelemetrySettings configures optional error reporting.
type TelemetrySettings struct {
	SentryDSN string `yaml:"sentrydsn" validate:"omitempty,url"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// GetLogger returns the module logger for configuration handling.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}

// Load reads the configuration file, environment variables and bound flags
// from the global viper instance.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings, err := loadFrom(viper.GetViper(), configFile)
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

func loadFrom(v *viper.Viper, configFile string) (*Settings, error) {
	if err := initViper(v, configFile); err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("operation", "init-viper").
			Build()
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.Newf("error unmarshaling config into struct: %w", err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.Newf("error validating settings: %w", err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return settings, nil
}

// resolveSecrets replaces credential fields with values read from secret
// files or expanded from environment references.
func resolveSecrets(settings *Settings) error {
	fields := []struct {
		key   string
		file  string
		value *string
	}{
		{"ebird.apikey", settings.EBird.APIKeyFile, &settings.EBird.APIKey},
		{"database.mysql.password", settings.Database.MySQL.PasswordFile, &settings.Database.MySQL.Password},
		{"telemetry.sentrydsn", "", &settings.Telemetry.SentryDSN},
	}

	for _, f := range fields {
		resolved, err := secrets.Resolve(f.file, *f.value)
		if err != nil {
			return errors.Newf("error resolving %s: %w", f.key, err).
				Component("configuration").
				Category(errors.CategoryConfiguration).
				Build()
		}
		*f.value = resolved
	}
	return nil
}

// initViper sets defaults and env bindings, then reads the config file if one exists.
func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, path := range GetDefaultConfigPaths() {
			v.AddConfigPath(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// defaults, env and flags are enough to run
			return nil
		}
		return errors.Newf("fatal error reading config file: %w", err).
			Category(errors.CategoryConfiguration).
			Build()
	}

	GetLogger().Debug("loaded config file", logger.String("path", v.ConfigFileUsed()))
	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml, in order.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "lifer"))
	}
	return append(paths, "/etc/lifer")
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
