// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default values shared with components that are constructed without settings.
const (
	DefaultEBirdBaseURL      = "https://api.ebird.org/v2"
	DefaultEBirdTimeout      = 10 * time.Second
	DefaultEBirdRetries      = 2
	DefaultEBirdRetryDelay   = time.Second
	DefaultRequestsPerSecond = 10.0
	DefaultMacaulayBaseURL   = "https://search.macaulaylibrary.org/api/v1"
	DefaultMacaulayAssetURL  = "https://cdn.download.ams.birds.cornell.edu/api/v1/asset"
	DefaultMacaulayTimeout   = 5 * time.Second
	DefaultCacheMaxEntries   = 1000
	DefaultMaxChecklists     = 50
	DefaultConcurrency       = 10
	DefaultRateLimit         = 30
	DefaultMaxUploadMB       = 10
)

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("ebird.apikey", "")
	v.SetDefault("ebird.apikeyfile", "")
	v.SetDefault("ebird.baseurl", DefaultEBirdBaseURL)
	v.SetDefault("ebird.timeout", DefaultEBirdTimeout)
	v.SetDefault("ebird.retries", DefaultEBirdRetries)
	v.SetDefault("ebird.retrydelay", DefaultEBirdRetryDelay)
	v.SetDefault("ebird.requestspersecond", DefaultRequestsPerSecond)
	v.SetDefault("ebird.breaker.threshold", 5)
	v.SetDefault("ebird.breaker.opentimeout", 30*time.Second)

	v.SetDefault("macaulay.enabled", true)
	v.SetDefault("macaulay.baseurl", DefaultMacaulayBaseURL)
	v.SetDefault("macaulay.assetbaseurl", DefaultMacaulayAssetURL)
	v.SetDefault("macaulay.timeout", DefaultMacaulayTimeout)

	v.SetDefault("cache.maxentries", DefaultCacheMaxEntries)

	v.SetDefault("aggregator.maxchecklists", DefaultMaxChecklists)
	v.SetDefault("aggregator.concurrency", DefaultConcurrency)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "lifer.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", "3306")
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.passwordfile", "")
	v.SetDefault("database.mysql.database", "lifer")
	v.SetDefault("database.mysql.timeout", 10*time.Second)

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.ratelimit", DefaultRateLimit)
	v.SetDefault("server.maxuploadmb", DefaultMaxUploadMB)
	v.SetDefault("server.trustproxy", false)

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/lifer.log")
	v.SetDefault("logging.file_output.level", "info")

	v.SetDefault("telemetry.sentrydsn", "")
}
