package finder

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/lifer/internal/datastore"
	"github.com/tphakala/lifer/internal/ebird"
	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/lifelist"
	"github.com/tphakala/lifer/internal/observability/metrics"
	"github.com/tphakala/lifer/internal/observation"
	"github.com/tphakala/lifer/internal/scoring"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeAggregator returns canned results.
type fakeAggregator struct {
	result      *observation.Result
	err         error
	taxonomy    []ebird.Taxon
	taxonomyErr error

	lastQuery observation.Query
}

func (f *fakeAggregator) Aggregate(_ context.Context, q observation.Query) (*observation.Result, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeAggregator) RecentNearby(_ context.Context, _ observation.Query) ([]ebird.Observation, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return f.result.Recent, true, nil
}

func (f *fakeAggregator) SpeciesSightings(_ context.Context, code string, _ observation.Query, _ []string) (*observation.SpeciesSightings, error) {
	return &observation.SpeciesSightings{SightingCount: 1, Checklists: []observation.Sighting{{SubmissionID: "S1-" + code}}}, nil
}

func (f *fakeAggregator) Taxonomy(_ context.Context, _ ...string) ([]ebird.Taxon, error) {
	return f.taxonomy, f.taxonomyErr
}

func (f *fakeAggregator) Hotspots(_ context.Context, _ observation.Query) ([]ebird.Hotspot, error) {
	return nil, nil
}

func (f *fakeAggregator) RegionSpecies(_ context.Context, _ string) ([]string, error) {
	return []string{"amerob"}, nil
}

func (f *fakeAggregator) SpeciesPhotos(_ context.Context, code string, subIDs []string) ([]observation.Photo, error) {
	photos := make([]observation.Photo, 0, len(subIDs))
	for _, id := range subIDs {
		photos = append(photos, observation.Photo{URL: code + "/" + id})
	}
	return photos, nil
}

// countingStore wraps a real store and counts loads.
type countingStore struct {
	*datastore.Store
	loads atomic.Int32
}

func (c *countingStore) LoadLifeList(ctx context.Context, userID string) ([]lifelist.Entry, error) {
	c.loads.Add(1)
	return c.Store.LoadLifeList(ctx, userID)
}

func newStore(t *testing.T) *countingStore {
	t.Helper()
	store, err := datastore.Open(datastore.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return &countingStore{Store: store}
}

func sampleResult() *observation.Result {
	return &observation.Result{
		Recent: []ebird.Observation{
			{SpeciesCode: "amerob", CommonName: "American Robin", ScientificName: "Turdus migratorius",
				LocationID: "L1", ObservedAt: "2024-06-01 08:00", Lat: 37.8, Lng: -122.26, SubmissionID: "S1"},
			{SpeciesCode: "vermfl", CommonName: "Vermilion Flycatcher", ScientificName: "Pyrocephalus rubinus",
				LocationID: "L2", ObservedAt: "2024-05-31 09:00", Lat: 37.81, Lng: -122.25, SubmissionID: "S2"},
		},
		Notable: []ebird.Observation{
			{SpeciesCode: "vermfl", CommonName: "Vermilion Flycatcher", ScientificName: "Pyrocephalus rubinus",
				LocationID: "L2", ObservedAt: "2024-05-31 09:00", Lat: 37.81, Lng: -122.25, SubmissionID: "S2"},
		},
		Checklists:     map[string]*ebird.Checklist{},
		CommentSpecies: map[string]struct{}{},
		PhotoCounts:    map[string]int{},
		DistanceKm:     16,
		BackDays:       14,
	}
}

func newService(t *testing.T, agg Aggregator, store LifeListStore, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	svc, err := New(agg, store, opts...)
	require.NoError(t, err)
	return svc
}

func TestNew_RequiresAggregator(t *testing.T) {
	t.Parallel()

	_, err := New(nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestAggregateAndScore(t *testing.T) {
	t.Parallel()

	agg := &fakeAggregator{result: sampleResult()}
	registry := prometheus.NewRegistry()
	scoreMetrics, err := metrics.NewAggregatorMetrics(registry)
	require.NoError(t, err)
	svc := newService(t, agg, nil, WithScoreMetrics(scoreMetrics))

	lifeList := []lifelist.Entry{{ScientificName: "Turdus migratorius", CommonName: "American Robin"}}
	q := observation.Query{Lat: 37.8, Lng: -122.26, RadiusMiles: 10, LookbackDays: 14}

	scored, err := svc.AggregateAndScore(t.Context(), q, lifeList)
	require.NoError(t, err)
	require.Len(t, scored, 2)
	assert.Equal(t, q, agg.lastQuery)

	// Flycatcher is a notable lifer; robin is on the list
	assert.Equal(t, "vermfl", scored[0].SpeciesCode)
	assert.True(t, scored[0].IsLifer)
	assert.Contains(t, scored[0].Reasons, scoring.ReasonLifer)
	assert.Contains(t, scored[0].Reasons, scoring.ReasonNotable)
	assert.Equal(t, "amerob", scored[1].SpeciesCode)
	assert.False(t, scored[1].IsLifer)

	assert.Equal(t, 1, testutil.CollectAndCount(scoreMetrics, "observation_scored_species"))
}

func TestAggregateAndScore_PropagatesError(t *testing.T) {
	t.Parallel()

	upstream := errors.Newf("upstream down").Category(errors.CategoryUpstreamServer).Build()
	svc := newService(t, &fakeAggregator{err: upstream}, nil)

	_, err := svc.AggregateAndScore(t.Context(), observation.Query{Lat: 1, Lng: 1}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryUpstreamServer))
}

func TestScoredForUser(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := t.Context()
	require.NoError(t, store.SaveLifeList(ctx, "u1", []lifelist.Entry{
		{ScientificName: "Pyrocephalus rubinus", CommonName: "Vermilion Flycatcher"},
	}))
	svc := newService(t, &fakeAggregator{result: sampleResult()}, store)
	q := observation.Query{Lat: 37.8, Lng: -122.26, RadiusMiles: 10, LookbackDays: 14}

	t.Run("stored list", func(t *testing.T) {
		scored, err := svc.ScoredForUser(ctx, "u1", q)
		require.NoError(t, err)
		for _, s := range scored {
			if s.SpeciesCode == "amerob" {
				assert.True(t, s.IsLifer)
			} else {
				assert.False(t, s.IsLifer)
			}
		}
	})

	t.Run("anonymous", func(t *testing.T) {
		scored, err := svc.ScoredForUser(ctx, "", q)
		require.NoError(t, err)
		for _, s := range scored {
			assert.False(t, s.IsLifer)
		}
	})

	t.Run("empty list means no lifer scoring", func(t *testing.T) {
		scored, err := svc.ScoredForUser(ctx, "nobody", q)
		require.NoError(t, err)
		for _, s := range scored {
			assert.False(t, s.IsLifer)
			assert.NotContains(t, s.Reasons, scoring.ReasonLifer)
		}
	})
}

func TestScoredForUser_CachesLifeList(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := t.Context()
	require.NoError(t, store.SaveLifeList(ctx, "u1", []lifelist.Entry{{ScientificName: "Turdus migratorius"}}))
	svc := newService(t, &fakeAggregator{result: sampleResult()}, store)
	q := observation.Query{Lat: 37.8, Lng: -122.26}

	for range 3 {
		_, err := svc.ScoredForUser(ctx, "u1", q)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), store.loads.Load())

	_, err := svc.MergeImport(ctx, "u1", lifelist.ImportFirstSeen, &lifelist.ParseResult{
		Entries: []lifelist.Entry{{ScientificName: "Melospiza melodia"}},
	})
	require.NoError(t, err)

	_, err = svc.ScoredForUser(ctx, "u1", q)
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.loads.Load(), "import invalidates the cached list")
}

func TestSpeciesSightings_RequiresCode(t *testing.T) {
	t.Parallel()

	svc := newService(t, &fakeAggregator{result: sampleResult()}, nil)
	_, err := svc.SpeciesSightings(t.Context(), "", observation.Query{}, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	got, err := svc.SpeciesSightings(t.Context(), "amerob", observation.Query{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "S1-amerob", got.Checklists[0].SubmissionID)
}

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "lifelist", "testdata", name))
	require.NoError(t, err)
	return raw
}

func TestImportCSV(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	llMetrics, err := metrics.NewLifeListMetrics(registry)
	require.NoError(t, err)
	svc := newService(t, &fakeAggregator{}, nil, WithLifeListMetrics(llMetrics))

	result, err := svc.ImportCSV(readTestdata(t, "journal.csv"))
	require.NoError(t, err)
	assert.Equal(t, lifelist.FormatJournal, result.Format)
	assert.Len(t, result.Entries, 2)
	assert.Equal(t, 2, result.SkippedRows)

	_, err = svc.ImportCSV([]byte("Common Name,Scientific Name,Date\nAmerican \"Robin,Turdus migratorius,2024-01-01\n"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))

	assert.Equal(t, 2, testutil.CollectAndCount(llMetrics, "lifelist_parses_total"), "success and failure series")
}
