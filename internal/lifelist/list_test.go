package lifelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/lifer/internal/errors"
)

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i := range entries {
		out[i] = entries[i].CommonName
	}
	return out
}

func sampleList() []Entry {
	return []Entry{
		{CommonName: "song sparrow", ScientificName: "Melospiza melodia", FirstObservation: ref("2021-04-01", "S3")},
		{CommonName: "American Robin", ScientificName: "Turdus migratorius", FirstObservation: ref("2019-01-01", "S1")},
		{CommonName: "Vermilion Flycatcher", ScientificName: "Pyrocephalus rubinus", LastObservation: ref("2020-07-07", "S2")},
		{CommonName: "Barn Owl", ScientificName: "Tyto alba"},
	}
}

func TestSortEntries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode SortMode
		want []string
	}{
		{SortDateAsc, []string{"American Robin", "Vermilion Flycatcher", "song sparrow", "Barn Owl"}},
		{SortDateDesc, []string{"song sparrow", "Vermilion Flycatcher", "American Robin", "Barn Owl"}},
		{SortAlphaAsc, []string{"American Robin", "Barn Owl", "song sparrow", "Vermilion Flycatcher"}},
		{SortAlphaDesc, []string{"Vermilion Flycatcher", "song sparrow", "Barn Owl", "American Robin"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			t.Parallel()

			entries := sampleList()
			SortEntries(entries, tt.mode)
			assert.Equal(t, tt.want, names(entries))
		})
	}
}

func TestParseSortMode(t *testing.T) {
	t.Parallel()

	mode, err := ParseSortMode("")
	require.NoError(t, err)
	assert.Equal(t, SortDateDesc, mode)

	mode, err = ParseSortMode("alpha-asc")
	require.NoError(t, err)
	assert.Equal(t, SortAlphaAsc, mode)

	_, err = ParseSortMode("random")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestParseImportType(t *testing.T) {
	t.Parallel()

	got, err := ParseImportType("")
	require.NoError(t, err)
	assert.Equal(t, ImportFirstSeen, got)

	for _, s := range []string{"first-seen", "last-seen", "my-data"} {
		got, err := ParseImportType(s)
		require.NoError(t, err)
		assert.Equal(t, ImportType(s), got)
	}

	_, err = ParseImportType("everything")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestFilter(t *testing.T) {
	t.Parallel()

	entries := sampleList()

	assert.Equal(t, []string{"American Robin"}, names(Filter(entries, "ROBIN")))
	assert.Equal(t, []string{"Vermilion Flycatcher"}, names(Filter(entries, "pyroceph")))
	assert.Len(t, Filter(entries, "  "), 4)
	assert.Empty(t, Filter(entries, "penguin"))
}
