package observation

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/lifer/internal/ebird"
)

// flakyUpstream serves the observation feeds while every checklist lookup
// answers 503. Setting feedsDown makes the feeds fail too.
type flakyUpstream struct {
	*httptest.Server
	feedsDown      atomic.Bool
	checklistCalls atomic.Int32
}

func newFlakyUpstream(t *testing.T) *flakyUpstream {
	t.Helper()

	var recent strings.Builder
	recent.WriteString("[")
	for i := range 6 {
		if i > 0 {
			recent.WriteString(",")
		}
		fmt.Fprintf(&recent, `{"speciesCode":"sp%d","comName":"Bird %d","sciName":"Avis %d","locId":"L%d","obsDt":"2026-10-14 08:00","lat":37.8,"lng":-122.27,"subId":"S%d"}`, i, i, i, i, i)
	}
	recent.WriteString("]")

	u := &flakyUpstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/product/checklist/view/"):
			u.checklistCalls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		case u.feedsDown.Load():
			w.WriteHeader(http.StatusServiceUnavailable)
		case r.URL.Path == ebird.PathRecentObservations:
			_, _ = w.Write([]byte(recent.String()))
		case r.URL.Path == ebird.PathNotableObservations:
			_, _ = w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(u.Close)
	return u
}

func newLiveAggregator(t *testing.T, u *flakyUpstream, threshold uint32, openFor time.Duration) *Aggregator {
	t.Helper()
	client, err := ebird.NewClient(ebird.Config{
		APIKey:            "test-key",
		BaseURL:           u.URL,
		Timeout:           2 * time.Second,
		Retries:           0,
		RequestsPerSecond: 1000,
		BreakerThreshold:  threshold,
		BreakerTimeout:    openFor,
	}, ebird.WithHTTPClient(u.Client()))
	require.NoError(t, err)
	return newTestAggregator(t, client, Config{})
}

func TestAggregate_ChecklistFailuresLeaveFeedsAvailable(t *testing.T) {
	t.Parallel()

	u := newFlakyUpstream(t)
	a := newLiveAggregator(t, u, 5, time.Minute)

	// Distinct locations bypass the feed cache so every pass hits the API
	for i := range 4 {
		result, err := a.Aggregate(t.Context(), Query{Lat: 10 + float64(i), Lng: 20, RadiusMiles: 5})
		require.NoError(t, err, "pass %d", i)
		assert.Len(t, result.Recent, 6)
		assert.Empty(t, result.Checklists)
	}

	assert.Less(t, u.checklistCalls.Load(), int32(24), "open checklist breaker stops further lookups")
}

func TestAggregate_RecoversOnceBreakerHalfOpens(t *testing.T) {
	t.Parallel()

	const openFor = 50 * time.Millisecond

	u := newFlakyUpstream(t)
	a := newLiveAggregator(t, u, 1, openFor)

	u.feedsDown.Store(true)
	_, err := a.Aggregate(t.Context(), Query{Lat: 1, Lng: 2, RadiusMiles: 5})
	require.Error(t, err)
	_, err = a.Aggregate(t.Context(), Query{Lat: 3, Lng: 4, RadiusMiles: 5})
	require.Error(t, err)

	u.feedsDown.Store(false)
	time.Sleep(2 * openFor)

	// Both feeds are fetched concurrently while their breakers are half-open
	result, err := a.Aggregate(t.Context(), Query{Lat: 5, Lng: 6, RadiusMiles: 5})
	require.NoError(t, err)
	assert.Len(t, result.Recent, 6)
}
