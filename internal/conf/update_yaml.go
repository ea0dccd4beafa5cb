package conf

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/lifer/internal/errors"
)

// SaveYAMLConfig writes settings to configPath atomically via a temp file and rename.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return errors.Newf("error marshaling settings to YAML: %w", err).
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return errors.Newf("error creating directories for config file: %w", err).
			Category(errors.CategoryFileIO).
			Build()
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml.tmp")
	if err != nil {
		return errors.Newf("error creating temporary config file: %w", err).
			Category(errors.CategoryFileIO).
			Build()
	}
	tempName := tempFile.Name()
	defer func() {
		_ = os.Remove(tempName)
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return errors.Newf("error writing temporary config file: %w", err).
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := tempFile.Close(); err != nil {
		return errors.Newf("error closing temporary config file: %w", err).
			Category(errors.CategoryFileIO).
			Build()
	}

	if err := os.Rename(tempName, configPath); err != nil {
		return errors.Newf("error moving config file into place: %w", err).
			Category(errors.CategoryFileIO).
			Build()
	}

	return nil
}

// DefaultSettings returns the settings produced by defaults alone, ignoring files and environment.
func DefaultSettings() (*Settings, error) {
	v := viper.New()
	setDefaultConfig(v)

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.Newf("error unmarshaling default settings: %w", err).
			Category(errors.CategoryConfiguration).
			Build()
	}
	return settings, nil
}
