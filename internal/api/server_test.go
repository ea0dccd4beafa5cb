package api

import (
	"context"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/lifer/internal/testutil"
)

func TestServe_GracefulShutdown(t *testing.T) {
	t.Parallel()
	s, _ := setupTestServer(t)

	var lc net.ListenConfig
	ln, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "http://"+ln.Addr().String()+"/healthz", http.NoBody)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	err = testutil.WaitForError(t, done, testutil.DefaultTestTimeout, "server did not shut down")
	assert.NoError(t, err)
}

func TestStart_ListenError(t *testing.T) {
	t.Parallel()

	var lc net.ListenConfig
	ln, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	config := DefaultConfig()
	config.Listen = ln.Addr().String()
	s, err := New(new(MockFinder), config)
	require.NoError(t, err)

	err = s.Start(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}
