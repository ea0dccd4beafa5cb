// Package macaulay looks up photos attached to eBird checklists in the
// Macaulay Library media search.
package macaulay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/logger"
)

const (
	DefaultBaseURL      = "https://search.macaulaylibrary.org/api/v1"
	DefaultAssetBaseURL = "https://cdn.download.ams.birds.cornell.edu/api/v1/asset"
	DefaultTimeout      = 5 * time.Second

	checklistBaseURL = "https://ebird.org/checklist/"

	// photoWidth is the rendition requested from the asset CDN.
	photoWidth = 320

	maxResponseBytes = 8 << 20
)

// GetLogger returns the module logger for the Macaulay client.
func GetLogger() logger.Logger {
	return logger.Global().Module("macaulay")
}

// Config holds Macaulay Library client settings.
type Config struct {
	BaseURL      string
	AssetBaseURL string
	Timeout      time.Duration
}

// DefaultConfig returns the public Macaulay Library endpoints.
func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		AssetBaseURL: DefaultAssetBaseURL,
		Timeout:      DefaultTimeout,
	}
}

// Asset is one photo from a checklist.
type Asset struct {
	AssetID     string
	SpeciesCode string
}

// Client queries the Macaulay Library search API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a client, filling unset fields from DefaultConfig.
func NewClient(config Config, opts ...Option) (*Client, error) {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.AssetBaseURL == "" {
		config.AssetBaseURL = defaults.AssetBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	for _, raw := range []string{config.BaseURL, config.AssetBaseURL} {
		if u, err := url.Parse(raw); err != nil || u.Host == "" {
			return nil, errors.Newf("invalid Macaulay Library URL %q", raw).
				Category(errors.CategoryConfiguration).
				Component("macaulay").
				Build()
		}
	}

	c := &Client{config: config, httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PhotoURL is the CDN address of an asset's thumbnail rendition.
func (c *Client) PhotoURL(assetID string) string {
	return fmt.Sprintf("%s/%s/%d", strings.TrimRight(c.config.AssetBaseURL, "/"), url.PathEscape(assetID), photoWidth)
}

// ChecklistURL is the public eBird page of a submission.
func ChecklistURL(subID string) string {
	return checklistBaseURL + url.PathEscape(subID)
}

// ChecklistPhotos returns the photo assets attached to subID. Results
// without an asset id or species code are dropped.
func (c *Client) ChecklistPhotos(ctx context.Context, subID string) ([]Asset, error) {
	if subID == "" {
		return nil, errors.Newf("submission id is required").
			Category(errors.CategoryValidation).
			Component("macaulay").
			Build()
	}

	params := url.Values{}
	params.Set("subId", subID)
	params.Set("mediaType", "Photo")
	reqURL := strings.TrimRight(c.config.BaseURL, "/") + "/search?" + params.Encode()

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, errors.Newf("failed to create Macaulay request: %w", err).
			Category(errors.CategoryValidation).
			Component("macaulay").
			Build()
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		category := errors.CategoryNetwork
		switch {
		case ctx.Err() != nil:
			category = errors.CategoryCancellation
		case reqCtx.Err() != nil:
			category = errors.CategoryTimeout
		}
		return nil, errors.Newf("Macaulay search for %s failed: %w", subID, err).
			Category(category).
			Component("macaulay").
			NetworkContext(reqURL, c.config.Timeout).
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Newf("reading Macaulay response for %s: %w", subID, err).
			Category(errors.CategoryNetwork).
			Component("macaulay").
			Build()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		category := errors.CategoryUpstreamClient
		if resp.StatusCode >= http.StatusInternalServerError {
			category = errors.CategoryUpstreamServer
		}
		return nil, errors.Newf("Macaulay search returned status %d for %s", resp.StatusCode, subID).
			Category(category).
			Component("macaulay").
			Context("status_code", resp.StatusCode).
			Context("sub_id", subID).
			Build()
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, errors.Newf("decoding Macaulay response for %s: %w", subID, err).
			Category(errors.CategorySchema).
			Component("macaulay").
			Context("sub_id", subID).
			Build()
	}

	assets := make([]Asset, 0, len(decoded.Results.Content))
	for _, item := range decoded.Results.Content {
		if item.AssetID == "" || item.SpeciesCode == "" {
			continue
		}
		assets = append(assets, Asset{AssetID: string(item.AssetID), SpeciesCode: item.SpeciesCode})
	}

	GetLogger().Debug("fetched checklist photos",
		logger.String("sub_id", subID),
		logger.Int("assets", len(assets)))

	return assets, nil
}

type searchResponse struct {
	Results struct {
		Content []searchItem `json:"content"`
	} `json:"results"`
}

type searchItem struct {
	AssetID     assetID `json:"assetId"`
	SpeciesCode string  `json:"speciesCode"`
}

// assetID accepts the id as either a JSON string or number.
type assetID string

func (a *assetID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = assetID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = assetID(n.String())
	return nil
}
