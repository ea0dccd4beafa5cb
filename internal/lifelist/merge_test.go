package lifelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/lifer/internal/ebird"
)

func ref(date, checklist string) *ObservationRef {
	return &ObservationRef{Date: date, Location: "Somewhere", ChecklistID: checklist}
}

func TestMatch(t *testing.T) {
	t.Parallel()

	lifeList := []Entry{
		{ScientificName: "Turdus migratorius", CommonName: "American Robin", ObservationCount: 42},
	}
	observations := []ebird.Observation{
		{SpeciesCode: "amerob", CommonName: "Robin", ScientificName: "Turdus migratorius"},
		{SpeciesCode: "vermfly", CommonName: "Vermilion Flycatcher", ScientificName: "Pyrocephalus rubinus"},
		{SpeciesCode: "amerob2", CommonName: "American Robin", ScientificName: "Turdus other"},
	}

	matched := Match(observations, lifeList)
	require.Len(t, matched, 3)

	assert.False(t, matched[0].IsLifer, "same scientific name with a different common name")
	assert.Equal(t, 42, matched[0].UserObservationCount)
	assert.True(t, matched[1].IsLifer)
	assert.Zero(t, matched[1].UserObservationCount)
	assert.True(t, matched[2].IsLifer, "common names are never matched")
	assert.Equal(t, "vermfly", matched[1].SpeciesCode)
}

func TestMatch_EmptyLifeList(t *testing.T) {
	t.Parallel()

	matched := Match([]ebird.Observation{{ScientificName: "Turdus migratorius"}}, nil)
	require.Len(t, matched, 1)
	assert.True(t, matched[0].IsLifer)
}

func TestMergeFirstSeen(t *testing.T) {
	t.Parallel()

	existing := []Entry{
		{ScientificName: "Turdus migratorius", CommonName: "American Robin", TaxonomicOrder: 28434, ObservationCount: 10,
			FirstObservation: ref("2015-01-01", "S1"), LastObservation: ref("2024-01-01", "S2")},
	}
	incoming := []Entry{
		{ScientificName: "Turdus migratorius", CommonName: "American Robin", TaxonomicOrder: 28434, ObservationCount: 3,
			SpeciesCode: "amerob", FirstObservation: ref("2012-06-01", "S9")},
		{ScientificName: "Pyrocephalus rubinus", CommonName: "Vermilion Flycatcher", TaxonomicOrder: 20100, ObservationCount: 1,
			FirstObservation: ref("2020-02-02", "S10")},
	}

	merged := MergeFirstSeen(existing, incoming)
	require.Len(t, merged, 2)

	assert.Equal(t, "Pyrocephalus rubinus", merged[0].ScientificName)
	assert.Equal(t, ref("2020-02-02", "S10"), merged[0].FirstObservation)
	assert.Nil(t, merged[0].LastObservation)

	robin := merged[1]
	assert.Equal(t, ref("2012-06-01", "S9"), robin.FirstObservation)
	assert.Equal(t, ref("2024-01-01", "S2"), robin.LastObservation, "last side untouched")
	assert.Equal(t, 10, robin.ObservationCount, "count never decreases")
	assert.Equal(t, "amerob", robin.SpeciesCode)

	// Inputs are not modified
	assert.Equal(t, ref("2015-01-01", "S1"), existing[0].FirstObservation)
	assert.Empty(t, existing[0].SpeciesCode)
}

func TestMergeLastSeen(t *testing.T) {
	t.Parallel()

	existing := []Entry{
		{ScientificName: "Turdus migratorius", TaxonomicOrder: 28434, ObservationCount: 2,
			FirstObservation: ref("2015-01-01", "S1"), LastObservation: ref("2016-01-01", "S2")},
	}
	incoming := AsLastSeen([]Entry{
		{ScientificName: "Turdus migratorius", TaxonomicOrder: 28434, ObservationCount: 7,
			FirstObservation: ref("2023-05-05", "S7"), LastObservation: ref("2023-05-05", "S7")},
		{ScientificName: "Melospiza melodia", TaxonomicOrder: 33000, ObservationCount: 1,
			FirstObservation: ref("2022-01-01", "S8")},
	})

	merged := MergeLastSeen(existing, incoming)
	require.Len(t, merged, 2)

	robin := merged[0]
	assert.Equal(t, ref("2015-01-01", "S1"), robin.FirstObservation, "first side untouched")
	assert.Equal(t, ref("2023-05-05", "S7"), robin.LastObservation)
	assert.Equal(t, 7, robin.ObservationCount)

	sparrow := merged[1]
	assert.Nil(t, sparrow.FirstObservation)
	assert.Equal(t, ref("2022-01-01", "S8"), sparrow.LastObservation)
}

func TestMerge_FirstThenLastRoundTrip(t *testing.T) {
	t.Parallel()

	parsed, err := Parse(loadCSV(t, "journal.csv"))
	require.NoError(t, err)

	merged := MergeFirstSeen(nil, AsFirstSeen(parsed.Entries))
	merged = MergeLastSeen(merged, AsLastSeen(parsed.Entries))

	assert.Equal(t, parsed.Entries, merged)
}

func TestAsLastSeen(t *testing.T) {
	t.Parallel()

	in := []Entry{{ScientificName: "A", FirstObservation: ref("2020-01-01", "S1")}}
	out := AsLastSeen(in)

	require.Len(t, out, 1)
	assert.Nil(t, out[0].FirstObservation)
	assert.Equal(t, ref("2020-01-01", "S1"), out[0].LastObservation)
	assert.NotNil(t, in[0].FirstObservation, "input is not modified")
}

func TestEnrichSpeciesCodes(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		{ScientificName: "Turdus migratorius"},
		{ScientificName: "Pyrocephalus rubinus", SpeciesCode: "keep"},
		{ScientificName: "Unknown bird"},
	}
	taxonomy := []ebird.Taxon{
		{ScientificName: "Turdus migratorius", SpeciesCode: "amerob"},
		{ScientificName: "Pyrocephalus rubinus", SpeciesCode: "vermfly"},
	}

	assert.Equal(t, 1, EnrichSpeciesCodes(entries, taxonomy))
	assert.Equal(t, "amerob", entries[0].SpeciesCode)
	assert.Equal(t, "keep", entries[1].SpeciesCode)
	assert.Empty(t, entries[2].SpeciesCode)
}
