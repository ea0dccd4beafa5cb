package ebird

import (
	"github.com/tphakala/lifer/internal/errors"
)

// Context keys attached to client errors.
const (
	ctxStatusCode  = "status_code"
	ctxPath        = "path"
	ctxSchema      = "schema"
	ctxCircuitOpen = "circuit_open"
)

// IsClientError reports whether err is a non-retryable 4xx response.
func IsClientError(err error) bool {
	return errors.IsCategory(err, errors.CategoryUpstreamClient)
}

// IsServerError reports whether err is a 5xx response or an open circuit.
func IsServerError(err error) bool {
	return errors.IsCategory(err, errors.CategoryUpstreamServer)
}

// IsTimeout reports whether err is a per-attempt timeout.
func IsTimeout(err error) bool {
	return errors.IsCategory(err, errors.CategoryTimeout)
}

// IsSchemaError reports whether a 2xx body failed to decode or validate.
func IsSchemaError(err error) bool {
	return errors.IsCategory(err, errors.CategorySchema)
}

// IsCircuitOpen reports whether err was returned without contacting the API.
func IsCircuitOpen(err error) bool {
	v, ok := errors.ContextValue(err, ctxCircuitOpen)
	return ok && v == true
}

// IsRetryable reports whether another attempt could succeed.
func IsRetryable(err error) bool {
	if err == nil || IsCircuitOpen(err) {
		return false
	}
	return errors.IsCategory(err, errors.CategoryUpstreamServer) ||
		errors.IsCategory(err, errors.CategoryTimeout) ||
		errors.IsCategory(err, errors.CategoryNetwork)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	v, ok := errors.ContextValue(err, ctxStatusCode)
	if !ok {
		return 0
	}
	code, _ := v.(int)
	return code
}
