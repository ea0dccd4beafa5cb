package ebird

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// mockResponse represents a mocked HTTP response
type mockResponse struct {
	status      int
	body        string
	contentType string
}

// sequenceServer replies with responses in order, repeating the last one.
type sequenceServer struct {
	*httptest.Server
	hits atomic.Int32
}

// Hits returns how many requests reached the server.
func (s *sequenceServer) Hits() int {
	return int(s.hits.Load())
}

// testConfig returns a fast client config pointing at baseURL
func testConfig(baseURL string) Config {
	return Config{
		APIKey:            "test-key",
		BaseURL:           baseURL,
		Timeout:           2 * time.Second,
		Retries:           2,
		RetryDelay:        time.Millisecond,
		RequestsPerSecond: 1000,
		BreakerThreshold:  100,
		BreakerTimeout:    time.Minute,
	}
}

// setupTestClient creates a test client with the given config
func setupTestClient(tb testing.TB, config Config, opts ...Option) *Client {
	tb.Helper()

	client, err := NewClient(config, opts...)
	require.NoError(tb, err)
	return client
}

// setupSequenceServer serves responses in order; the last one repeats.
func setupSequenceServer(tb testing.TB, responses ...mockResponse) *sequenceServer {
	tb.Helper()
	require.NotEmpty(tb, responses)

	s := &sequenceServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(s.hits.Add(1)) - 1
		resp := responses[min(n, len(responses)-1)]

		if resp.contentType != "" {
			w.Header().Set("Content-Type", resp.contentType)
		} else {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(resp.status)
		_, _ = w.Write([]byte(resp.body))
	}))
	tb.Cleanup(s.Close)

	return s
}

// loadTestData loads test data from testdata directory
func loadTestData(tb testing.TB, filename string) string {
	tb.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", filename)) //nolint:gosec // G304: test fixture path
	require.NoError(tb, err)

	return string(data)
}
