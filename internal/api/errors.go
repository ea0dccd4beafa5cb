package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/logger"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error         string   `json:"error"`
	Details       []string `json:"details,omitempty"`
	CorrelationID string   `json:"correlationId"`
}

// statusForError maps an error category to an HTTP status code.
func statusForError(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}

	switch {
	case errors.IsCategory(err, errors.CategoryValidation),
		errors.IsCategory(err, errors.CategoryFileParsing):
		return http.StatusBadRequest
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsCategory(err, errors.CategoryTimeout):
		return http.StatusGatewayTimeout
	case errors.IsCategory(err, errors.CategoryUpstreamClient),
		errors.IsCategory(err, errors.CategoryUpstreamServer),
		errors.IsCategory(err, errors.CategorySchema),
		errors.IsCategory(err, errors.CategoryNetwork):
		return http.StatusBadGateway
	case errors.IsCategory(err, errors.CategoryConfiguration),
		errors.IsCategory(err, errors.CategoryCancellation):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes a JSON error response for err. Server-side failures
// hide the error text behind message.
func (s *Server) HandleError(c echo.Context, err error, message string) error {
	code := statusForError(err)
	resp := &ErrorResponse{
		Error:         message,
		CorrelationID: uuid.NewString()[:8],
	}
	if code < http.StatusInternalServerError && err != nil {
		resp.Details = []string{err.Error()}
	}

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", c.Request().URL.Path),
		logger.String("method", c.Request().Method),
		logger.String("ip", c.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error("API error", fields...)
	} else {
		s.logger.Debug("API request rejected", fields...)
	}

	return c.JSON(code, resp)
}

// badRequest writes a 400 response listing details.
func (s *Server) badRequest(c echo.Context, message string, details ...string) error {
	return c.JSON(http.StatusBadRequest, &ErrorResponse{
		Error:         message,
		Details:       details,
		CorrelationID: uuid.NewString()[:8],
	})
}
