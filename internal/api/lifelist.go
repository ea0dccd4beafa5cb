package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/lifer/internal/lifelist"
	"github.com/tphakala/lifer/internal/logger"
)

// requireUser writes a 401 when the request has no identified user.
func (s *Server) requireUser(c echo.Context) (string, bool, error) {
	userID := s.identity(c)
	if userID == "" {
		return "", false, c.JSON(http.StatusUnauthorized, &ErrorResponse{Error: "Authentication required"})
	}
	return userID, true, nil
}

// GetLifeList handles GET /api/v1/lifelist.
func (s *Server) GetLifeList(c echo.Context) error {
	userID, ok, err := s.requireUser(c)
	if !ok {
		return err
	}

	var params lifeListParams
	if details, ok := bindQuery(c, &params); !ok {
		return s.badRequest(c, "Invalid parameters", details...)
	}
	mode, err := lifelist.ParseSortMode(params.Sort)
	if err != nil {
		return s.badRequest(c, "Invalid parameters", err.Error())
	}

	view, err := s.finder.LifeList(c.Request().Context(), userID, mode, params.Search)
	if err != nil {
		return s.HandleError(c, err, "Failed to load life list")
	}
	return c.JSON(http.StatusOK, view)
}

// GetImportSummary handles GET /api/v1/lifelist/summary.
func (s *Server) GetImportSummary(c echo.Context) error {
	userID, ok, err := s.requireUser(c)
	if !ok {
		return err
	}

	summary, err := s.finder.ImportSummary(c.Request().Context(), userID)
	if err != nil {
		return s.HandleError(c, err, "Failed to load import summary")
	}
	return c.JSON(http.StatusOK, summary)
}

// UploadLifeList handles POST /api/v1/lifelist/upload with a multipart
// "file" part and an optional "type" field.
func (s *Server) UploadLifeList(c echo.Context) error {
	userID, ok, err := s.requireUser(c)
	if !ok {
		return err
	}

	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return s.badRequest(c, "Content-Type must be multipart/form-data")
	}

	importType, err := lifelist.ParseImportType(c.FormValue("type"))
	if err != nil {
		return s.badRequest(c, "Invalid type parameter", err.Error())
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return s.badRequest(c, "Missing 'file' field in form data")
	}
	if fh.Size > s.config.MaxUploadBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, &ErrorResponse{
			Error: fmt.Sprintf("File too large. Maximum size is %dMB.", s.config.MaxUploadBytes>>20),
		})
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".csv") {
		return s.badRequest(c, "File must be a CSV (.csv)")
	}

	file, err := fh.Open()
	if err != nil {
		return s.HandleError(c, err, "Failed to read upload")
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			s.logger.Debug("failed to close upload", logger.Error(cerr))
		}
	}()
	raw, err := io.ReadAll(io.LimitReader(file, s.config.MaxUploadBytes+1))
	if err != nil {
		return s.HandleError(c, err, "Failed to read upload")
	}

	parsed, err := s.finder.ImportCSV(raw)
	if err != nil {
		return s.HandleError(c, err, "Failed to parse CSV")
	}
	stats, err := s.finder.MergeImport(c.Request().Context(), userID, importType, parsed)
	if err != nil {
		return s.HandleError(c, err, "Failed to save life list")
	}
	return c.JSON(http.StatusOK, stats)
}
