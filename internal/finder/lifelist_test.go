package finder

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/lifer/internal/ebird"
	"github.com/tphakala/lifer/internal/errors"
	"github.com/tphakala/lifer/internal/lifelist"
	"github.com/tphakala/lifer/internal/observability/metrics"
)

var testTaxonomy = []ebird.Taxon{
	{ScientificName: "Turdus migratorius", CommonName: "American Robin", SpeciesCode: "amerob", TaxonOrder: 28434},
	{ScientificName: "Pyrocephalus rubinus", CommonName: "Vermilion Flycatcher", SpeciesCode: "verfly", TaxonOrder: 20100},
}

func TestMergeImport_Replace(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := t.Context()
	registry := prometheus.NewRegistry()
	llMetrics, err := metrics.NewLifeListMetrics(registry)
	require.NoError(t, err)
	svc := newService(t, &fakeAggregator{taxonomy: testTaxonomy}, store, WithLifeListMetrics(llMetrics))

	require.NoError(t, store.SaveLifeList(ctx, "u1", []lifelist.Entry{{ScientificName: "Gone forever"}}))

	parsed, err := svc.ImportCSV(readTestdata(t, "journal.csv"))
	require.NoError(t, err)
	stats, err := svc.MergeImport(ctx, "u1", lifelist.ImportReplace, parsed)
	require.NoError(t, err)
	assert.Equal(t, parsed.Stats(), stats)

	stored, err := store.LoadLifeList(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "verfly", stored[0].SpeciesCode, "codes filled from the taxonomy")
	assert.Equal(t, "amerob", stored[1].SpeciesCode)
	assert.NotNil(t, stored[1].FirstObservation)
	assert.NotNil(t, stored[1].LastObservation)
	assert.Empty(t, parsed.Entries[0].SpeciesCode, "parsed result is not modified")

	summary, err := svc.ImportSummary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ImportCount)
	require.NotNil(t, summary.LastImport)
	assert.Equal(t, lifelist.ImportReplace, summary.LastImport.ImportType)
	assert.Equal(t, 2, summary.LastImport.SkippedRows)

	assert.Equal(t, 1, testutil.CollectAndCount(llMetrics, "lifelist_merges_total"))
}

func TestMergeImport_FirstThenLastSeen(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := t.Context()
	svc := newService(t, &fakeAggregator{taxonomy: testTaxonomy}, store)

	first := &lifelist.ParseResult{Entries: []lifelist.Entry{
		{ScientificName: "Turdus migratorius", CommonName: "American Robin", TaxonomicOrder: 28434, ObservationCount: 1,
			FirstObservation: &lifelist.ObservationRef{Date: "2019-03-10", ChecklistID: "S1"}},
	}, TotalObservations: 1}
	last := &lifelist.ParseResult{Entries: []lifelist.Entry{
		{ScientificName: "Turdus migratorius", CommonName: "American Robin", TaxonomicOrder: 28434, ObservationCount: 1,
			FirstObservation: &lifelist.ObservationRef{Date: "2024-05-01", ChecklistID: "S9"}},
	}, TotalObservations: 1}

	_, err := svc.MergeImport(ctx, "u1", lifelist.ImportFirstSeen, first)
	require.NoError(t, err)
	_, err = svc.MergeImport(ctx, "u1", lifelist.ImportLastSeen, last)
	require.NoError(t, err)

	view, err := svc.LifeList(ctx, "u1", lifelist.SortDateDesc, "")
	require.NoError(t, err)
	require.Equal(t, 1, view.TotalCount)
	robin := view.Species[0]
	require.NotNil(t, robin.FirstObservation)
	require.NotNil(t, robin.LastObservation)
	assert.Equal(t, "S1", robin.FirstObservation.ChecklistID)
	assert.Equal(t, "S9", robin.LastObservation.ChecklistID)

	summary, err := svc.ImportSummary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ImportCount)
	assert.Equal(t, lifelist.ImportLastSeen, summary.LastImport.ImportType)
}

func TestMergeImport_TaxonomyUnavailable(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := t.Context()
	agg := &fakeAggregator{taxonomyErr: errors.Newf("taxonomy down").Category(errors.CategoryUpstreamServer).Build()}
	svc := newService(t, agg, store)

	_, err := svc.MergeImport(ctx, "u1", lifelist.ImportReplace, &lifelist.ParseResult{
		Entries: []lifelist.Entry{{ScientificName: "Turdus migratorius"}},
	})
	require.NoError(t, err)

	stored, err := store.LoadLifeList(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Empty(t, stored[0].SpeciesCode)
}

func TestMergeImport_Errors(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	parsed := &lifelist.ParseResult{Entries: []lifelist.Entry{{ScientificName: "A a"}}}

	t.Run("no store", func(t *testing.T) {
		t.Parallel()
		svc := newService(t, &fakeAggregator{}, nil)
		_, err := svc.MergeImport(ctx, "u1", lifelist.ImportReplace, parsed)
		assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

		_, err = svc.LifeList(ctx, "u1", lifelist.SortAlphaAsc, "")
		assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	})

	t.Run("anonymous user", func(t *testing.T) {
		t.Parallel()
		svc := newService(t, &fakeAggregator{}, newStore(t))
		_, err := svc.MergeImport(ctx, "", lifelist.ImportReplace, parsed)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	})

	t.Run("unknown import type", func(t *testing.T) {
		t.Parallel()
		store := newStore(t)
		svc := newService(t, &fakeAggregator{}, store)
		_, err := svc.MergeImport(ctx, "u1", lifelist.ImportType("sideways"), parsed)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

		summary, err := store.ImportSummary(ctx, "u1")
		require.NoError(t, err)
		assert.Zero(t, summary.ImportCount, "failed imports are not recorded")
	})
}

func TestLifeList_SortAndSearch(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := t.Context()
	svc := newService(t, &fakeAggregator{}, store)

	require.NoError(t, store.SaveLifeList(ctx, "u1", []lifelist.Entry{
		{ScientificName: "Turdus migratorius", CommonName: "American Robin", TaxonomicOrder: 3,
			FirstObservation: &lifelist.ObservationRef{Date: "2019-03-10"}},
		{ScientificName: "Pyrocephalus rubinus", CommonName: "Vermilion Flycatcher", TaxonomicOrder: 1,
			FirstObservation: &lifelist.ObservationRef{Date: "2021-01-01"}},
		{ScientificName: "Turdus merula", CommonName: "Eurasian Blackbird", TaxonomicOrder: 2},
	}))

	view, err := svc.LifeList(ctx, "u1", lifelist.SortDateDesc, "")
	require.NoError(t, err)
	assert.Equal(t, 3, view.TotalCount)
	names := make([]string, len(view.Species))
	for i := range view.Species {
		names[i] = view.Species[i].CommonName
	}
	assert.Equal(t, []string{"Vermilion Flycatcher", "American Robin", "Eurasian Blackbird"}, names)

	view, err = svc.LifeList(ctx, "u1", lifelist.SortAlphaAsc, "TURDUS")
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalCount, "total counts the filtered list")
	assert.Equal(t, "American Robin", view.Species[0].CommonName)
	assert.Equal(t, "Eurasian Blackbird", view.Species[1].CommonName)

	// Sorting a view must not reorder the cached list
	again, err := svc.LifeList(ctx, "u1", lifelist.SortAlphaDesc, "")
	require.NoError(t, err)
	assert.Equal(t, "Vermilion Flycatcher", again.Species[0].CommonName)
	cached, err := svc.loadLifeList(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Vermilion Flycatcher", cached[0].CommonName, "cache keeps taxonomic order")
}
