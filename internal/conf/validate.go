// conf/validate.go

package conf

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tphakala/lifer/internal/logger"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func settingsValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := settingsValidator().Struct(settings); err != nil {
		var fieldErrs validator.ValidationErrors
		if !asValidationErrors(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			ve.Errors = append(ve.Errors, describeFieldError(fe))
		}
	}

	if err := validateLoggingSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if settings.Aggregator.MaxChecklists > 0 && settings.Aggregator.Concurrency > settings.Aggregator.MaxChecklists {
		GetLogger().Info("aggregator concurrency exceeds checklist cap",
			logger.Int("concurrency", settings.Aggregator.Concurrency),
			logger.Int("max_checklists", settings.Aggregator.MaxChecklists))
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	fieldErrs, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns the concrete type
	if ok {
		*target = fieldErrs
	}
	return ok
}

func describeFieldError(fe validator.FieldError) string {
	key := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Settings."))
	if fe.Param() != "" {
		return fmt.Sprintf("%s: failed '%s=%s' (got %v)", key, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s: failed '%s'", key, fe.Tag())
}

var validLogLevels = map[string]bool{
	"": true, "trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

func validateLoggingSettings(settings *Settings) error {
	var invalid []string
	check := func(name, level string) {
		if !validLogLevels[strings.ToLower(level)] {
			invalid = append(invalid, fmt.Sprintf("%s=%q", name, level))
		}
	}

	check("logging.default_level", settings.Logging.DefaultLevel)
	if settings.Logging.Console != nil {
		check("logging.console.level", settings.Logging.Console.Level)
	}
	if settings.Logging.FileOutput != nil {
		check("logging.file_output.level", settings.Logging.FileOutput.Level)
		if settings.Logging.FileOutput.Enabled && settings.Logging.FileOutput.Path == "" {
			invalid = append(invalid, "logging.file_output.path is required when file output is enabled")
		}
	}
	for module, level := range settings.Logging.ModuleLevels {
		check("logging.module_levels."+module, level)
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid logging settings: %s", strings.Join(invalid, ", "))
	}
	return nil
}
