// Package secrets resolves credentials from environment references and
// mounted secret files (Docker or Kubernetes secrets).
//
// Secret values are never logged.
package secrets

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/logger"
)

// maxSecretFileSize limits secret file reads. Secrets are tokens, not documents.
const maxSecretFileSize = 64 * 1024

func secretError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("secrets").
		Category(errors.CategoryConfiguration).
		Build()
}

// envRefPattern matches ${VAR} and ${VAR:-default}. A bare $VAR is left as is.
var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandString resolves ${VAR} and ${VAR:-default} references in s.
// A reference to an unset variable without a default is an error.
func ExpandString(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	expanded := envRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRefPattern.FindStringSubmatch(ref)
		if value := os.Getenv(m[1]); value != "" {
			return value
		}
		if m[2] != "" {
			return m[3]
		}
		missing = append(missing, m[1])
		return ""
	})

	if len(missing) > 0 {
		return "", secretError("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}
	return expanded, nil
}

// ReadFile reads a secret from path, dropping trailing newlines.
// Group or world readable files are accepted with a warning.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", secretError("secret file path is empty")
	}
	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	switch {
	case os.IsNotExist(err):
		return "", secretError("secret file not found: %s", cleanPath)
	case err != nil:
		return "", errors.New(err).
			Component("secrets").
			Category(errors.CategoryFileIO).
			Context("path", cleanPath).
			Build()
	case !info.Mode().IsRegular():
		return "", secretError("secret path is not a regular file: %s", cleanPath)
	case info.Size() > maxSecretFileSize:
		return "", secretError("secret file too large (max %d bytes): %s", maxSecretFileSize, cleanPath)
	}

	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Global().Module("secrets").Warn("secret file is readable by group or others",
			logger.String("path", cleanPath),
			logger.String("mode", perm.String()))
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", errors.New(err).
			Component("secrets").
			Category(errors.CategoryFileIO).
			Context("path", cleanPath).
			Build()
	}

	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", secretError("secret file is empty: %s", cleanPath)
	}
	return secret, nil
}

// Resolve returns the secret from filePath when set, otherwise value with
// environment references expanded. Both empty resolves to "".
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		return ReadFile(filePath)
	}
	return ExpandString(value)
}
