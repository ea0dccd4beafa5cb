// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVars   []string           // Environment variable names, first set one wins
	Validate  func(string) error // Optional validation function
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", []string{"LIFER_DEBUG"}, validateEnvBool},

		{"ebird.apikey", []string{"LIFER_EBIRD_APIKEY", "EBIRD_API_KEY"}, nil},
		{"ebird.apikeyfile", []string{"LIFER_EBIRD_APIKEY_FILE"}, nil},
		{"ebird.baseurl", []string{"LIFER_EBIRD_BASEURL"}, validateEnvURL},
		{"ebird.retries", []string{"LIFER_EBIRD_RETRIES"}, validateEnvNonNegativeInt},

		{"database.type", []string{"LIFER_DATABASE_TYPE"}, nil},
		{"database.path", []string{"LIFER_DATABASE_PATH"}, nil},
		{"database.mysql.host", []string{"LIFER_MYSQL_HOST"}, nil},
		{"database.mysql.password", []string{"LIFER_MYSQL_PASSWORD"}, nil},
		{"database.mysql.passwordfile", []string{"LIFER_MYSQL_PASSWORD_FILE"}, nil},

		{"server.listen", []string{"LIFER_SERVER_LISTEN"}, nil},
		{"server.ratelimit", []string{"LIFER_SERVER_RATELIMIT"}, validateEnvPositiveInt},

		{"telemetry.sentrydsn", []string{"LIFER_SENTRY_DSN", "SENTRY_DSN"}, validateEnvURL},
	}
}

// bindEnvVars sets up environment variable bindings with validation
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		args := append([]string{binding.ConfigKey}, binding.EnvVars...)
		if err := v.BindEnv(args...); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.ConfigKey, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		for _, name := range binding.EnvVars {
			value := os.Getenv(name)
			if value == "" {
				continue
			}
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value: %v", name, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s'", value)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("not an absolute URL")
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fmt.Errorf("must be a non-negative integer, got '%s'", value)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return fmt.Errorf("must be a positive integer, got '%s'", value)
	}
	return nil
}
