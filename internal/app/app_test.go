package app

import (
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/lifer/internal/buildinfo"
	"github.com/tphakala/lifer/internal/conf"
	"github.com/tphakala/lifer/internal/datastore"
	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/lifelist"
	"github.com/tphakala/lifer/internal/logger"
	"github.com/tphakala/lifer/internal/observation"
	"github.com/tphakala/lifer/internal/profile"
)

const testBaseURL = "https://api.ebird.test/v2"

func testContext(t *testing.T) *Context {
	t.Helper()
	ctx := NewContext(buildinfo.NewContext("1.0.0", "2024-06-01"))
	ctx.Settings.EBird.APIKey = "test-key"
	ctx.Settings.EBird.BaseURL = testBaseURL
	ctx.Settings.EBird.Retries = 0
	ctx.Settings.Database.Path = datastore.MemoryPath
	return ctx
}

func TestNewContext_Defaults(t *testing.T) {
	t.Parallel()

	ctx := NewContext(buildinfo.NewContext("2.0.0", "2024-06-01"))
	require.NotNil(t, ctx.Settings)
	assert.Equal(t, "2.0.0", ctx.Settings.Version)
	assert.Equal(t, "2024-06-01", ctx.Settings.BuildDate)
	assert.Equal(t, conf.DefaultEBirdBaseURL, ctx.Settings.EBird.BaseURL)
	assert.Equal(t, conf.DefaultRateLimit, ctx.Settings.Server.RateLimit)
}

func TestEBirdConfig(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.EBird.APIKey = "k"
	settings.EBird.BaseURL = "https://example.test"
	settings.EBird.Timeout = 3 * time.Second
	settings.EBird.Retries = 4
	settings.EBird.RetryDelay = 50 * time.Millisecond
	settings.EBird.RequestsPerSecond = 2.5
	settings.EBird.Breaker.Threshold = 7
	settings.EBird.Breaker.OpenTimeout = time.Minute

	cfg := EBirdConfig(settings)
	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, "https://example.test", cfg.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, 4, cfg.Retries)
	assert.Equal(t, 50*time.Millisecond, cfg.RetryDelay)
	assert.InDelta(t, 2.5, cfg.RequestsPerSecond, 1e-9)
	assert.Equal(t, uint32(7), cfg.BreakerThreshold)
	assert.Equal(t, time.Minute, cfg.BreakerTimeout)
}

func TestAggregatorConfig(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Aggregator.MaxChecklists = 12
	settings.Aggregator.Concurrency = 3
	settings.Cache.MaxEntries = 99

	assert.Equal(t, observation.Config{
		MaxChecklistFetches:  12,
		ChecklistConcurrency: 3,
		CacheMaxEntries:      99,
	}, AggregatorConfig(settings))
}

func TestOpenStore(t *testing.T) {
	t.Parallel()

	store, err := OpenStore(&conf.DatabaseSettings{Type: "sqlite", Path: datastore.MemoryPath})
	require.NoError(t, err)
	assert.NoError(t, store.Close())

	_, err = OpenStore(&conf.DatabaseSettings{Type: "postgres"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	// mysql without a host fails before dialing
	_, err = OpenStore(&conf.DatabaseSettings{Type: "mysql"})
	require.Error(t, err)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	ctx.Settings.EBird.APIKey = ""

	_, err := New(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestNew_RequiresSettings(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	require.Error(t, err)
	_, err = New(&Context{})
	require.Error(t, err)
}

func TestNew_WiresComponents(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/data/obs/geo/recent",
		httpmock.NewStringResponder(http.StatusOK, `[{"speciesCode":"amerob","comName":"American Robin","sciName":"Turdus migratorius","locId":"L1","obsDt":"2024-05-30 08:00","lat":37.8,"lng":-122.2}]`))
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/data/obs/geo/recent/notable",
		httpmock.NewStringResponder(http.StatusOK, `[]`))
	transport.RegisterResponder(http.MethodGet, conf.DefaultMacaulayBaseURL+"/search",
		httpmock.NewStringResponder(http.StatusOK, `{"results":{"content":[{"assetId":"42","speciesCode":"amerob"}]}}`))

	a, err := New(testContext(t), WithHTTPClient(&http.Client{Transport: transport}))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	require.NotNil(t, a.Client)
	require.NotNil(t, a.Aggregator)
	require.NotNil(t, a.Store)
	require.NotNil(t, a.Finder)
	require.NotNil(t, a.Metrics)

	ctx := t.Context()
	_, err = a.Finder.MergeImport(ctx, "u1", lifelist.ImportReplace, &lifelist.ParseResult{
		Entries: []lifelist.Entry{{CommonName: "American Robin", ScientificName: "Turdus migratorius"}},
	})
	// Taxonomy is not mocked, so enrichment fails and the import still succeeds
	require.NoError(t, err)

	scored, err := a.Finder.ScoredForUser(ctx, "u1", observation.Query{Lat: 37.8, Lng: -122.2, RadiusMiles: 10, LookbackDays: 7})
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, "amerob", scored[0].SpeciesCode)
	assert.False(t, scored[0].IsLifer)

	require.NotNil(t, a.Photos)
	photos, err := a.Finder.SpeciesPhotos(ctx, "amerob", []string{"S1"})
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, conf.DefaultMacaulayAssetURL+"/42/320", photos[0].URL)

	radius := 4.0
	saved, err := a.Finder.UpdateSettings(ctx, "u1", &profile.Update{RadiusMiles: &radius})
	require.NoError(t, err)
	assert.InDelta(t, 4, saved.RadiusMiles, 0)
}

func TestNew_PhotosDisabled(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	ctx.Settings.Macaulay.Enabled = false
	a, err := New(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	assert.Nil(t, a.Photos)
	_, err = a.Finder.SpeciesPhotos(t.Context(), "amerob", []string{"S1"})
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestMacaulayConfig(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Macaulay.BaseURL = "https://search.example"
	settings.Macaulay.Timeout = 2 * time.Second

	cfg := MacaulayConfig(settings)
	assert.Equal(t, "https://search.example", cfg.BaseURL)
	assert.Empty(t, cfg.AssetBaseURL)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
}

func TestSetupLogging(t *testing.T) {
	settings, err := conf.DefaultSettings()
	require.NoError(t, err)
	settings.Debug = true

	cl, err := SetupLogging(settings)
	require.NoError(t, err)
	t.Cleanup(func() {
		logger.SetGlobal(nil)
		_ = cl.Close()
	})

	// Debug applies to the installed logger, not the settings
	assert.NotEqual(t, "debug", settings.Logging.DefaultLevel)
}
