package cmd

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/lifer/internal/app"
	"github.com/tphakala/lifer/internal/buildinfo"
)

const testBaseURL = "https://api.ebird.test/v2"

const lifeListCSV = `Row #,Taxon Order,Category,Common Name,Scientific Name,Count,Location,S/P,Date,LocID,SubID
1,28434,species,American Robin,Turdus migratorius,4,Lake Merritt,US-CA,01 May 2020,L10,S100
`

func recent(ago time.Duration) string {
	return time.Now().Add(-ago).Format("2006-01-02 15:04")
}

// These tests share the global viper instance and must not run in parallel.

type harness struct {
	dir       string
	ctx       *app.Context
	transport *httpmock.MockTransport
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("ebird:\n  baseurl: "+testBaseURL+"\n  retries: 0\n"), 0o600))

	transport := httpmock.NewMockTransport()
	ctx := app.NewContext(buildinfo.NewContext("1.4.0", "2024-06-01"))
	ctx.Options = []app.Option{app.WithHTTPClient(&http.Client{Transport: transport})}
	return &harness{dir: dir, ctx: ctx, transport: transport}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := RootCommand(h.ctx)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	base := []string{
		"--config", filepath.Join(h.dir, "config.yaml"),
		"--apikey", "test-key",
		"--database", filepath.Join(h.dir, "lifer.db"),
	}
	root.SetArgs(append(args, base...))
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	h := newHarness(t)
	root := RootCommand(h.ctx)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.ExecuteContext(t.Context()))
	assert.Equal(t, "lifer 1.4.0 (built 2024-06-01)\n", out.String())
}

func TestConfigInit(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(h.dir, "out", "config.yaml")

	root := RootCommand(h.ctx)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"config", "init", path})
	require.NoError(t, root.ExecuteContext(t.Context()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "api.ebird.org/v2")

	root = RootCommand(h.ctx)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"config", "init", path})
	assert.Error(t, root.ExecuteContext(t.Context()), "existing file is not overwritten without --force")
}

func TestImportThenNearby(t *testing.T) {
	h := newHarness(t)
	h.transport.RegisterResponder(http.MethodGet, testBaseURL+"/ref/taxonomy/ebird",
		httpmock.NewStringResponder(http.StatusOK, `[{"sciName":"Turdus migratorius","comName":"American Robin","speciesCode":"amerob","category":"species","taxonOrder":28434}]`))
	h.transport.RegisterResponder(http.MethodGet, testBaseURL+"/data/obs/geo/recent",
		httpmock.NewStringResponder(http.StatusOK, fmt.Sprintf(`[
			{"speciesCode":"amerob","comName":"American Robin","sciName":"Turdus migratorius","locId":"L1","locName":"Lake Merritt","obsDt":%q,"lat":37.8,"lng":-122.26},
			{"speciesCode":"vermfl","comName":"Vermilion Flycatcher","sciName":"Pyrocephalus rubinus","locId":"L2","locName":"Arrowhead Marsh","obsDt":%q,"lat":37.75,"lng":-122.2}
		]`, recent(48*time.Hour), recent(24*time.Hour))))
	h.transport.RegisterResponder(http.MethodGet, testBaseURL+"/data/obs/geo/recent/notable",
		httpmock.NewStringResponder(http.StatusOK, `[]`))

	csvPath := filepath.Join(h.dir, "life_list.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(lifeListCSV), 0o600))

	out, err := h.run(t, "import", csvPath, "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 species")

	out, err = h.run(t, "lifelist", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "American Robin")
	assert.Contains(t, out, "amerob")
	assert.Contains(t, out, "1 species")

	out, err = h.run(t, "nearby", "--lat", "37.8", "--lng", "-122.26", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "Vermilion Flycatcher")
	assert.Contains(t, out, "Lifer")
	// The lifer outranks the species already on the list
	assert.Less(t, bytes.Index([]byte(out), []byte("Vermilion")), bytes.Index([]byte(out), []byte("American Robin")))
}

func TestNearbyRequiresCoordinates(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "nearby", "--lat", "37.8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--lat and --lng are required")

	_, err = h.run(t, "nearby")
	require.Error(t, err)

	_, err = h.run(t, "nearby", "--user", "u9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no saved location")
}

func TestSettingsThenNearbyUsesSavedLocation(t *testing.T) {
	h := newHarness(t)
	h.transport.RegisterResponder(http.MethodGet, testBaseURL+"/data/obs/geo/recent",
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			if q.Get("lat") != "37.8" || q.Get("lng") != "-122.26" || q.Get("dist") != "8" {
				return httpmock.NewStringResponse(http.StatusBadRequest, `{"errors":[]}`), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, fmt.Sprintf(
				`[{"speciesCode":"vermfl","comName":"Vermilion Flycatcher","sciName":"Pyrocephalus rubinus","locId":"L2","obsDt":%q,"lat":37.8,"lng":-122.26}]`,
				recent(24*time.Hour))), nil
		})
	h.transport.RegisterResponder(http.MethodGet, testBaseURL+"/data/obs/geo/recent/notable",
		httpmock.NewStringResponder(http.StatusOK, `[]`))

	out, err := h.run(t, "settings", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "Location: -")
	assert.Contains(t, out, "Radius:   10 miles")

	out, err = h.run(t, "settings", "--user", "u1", "--lat", "37.8", "--lng", "-122.26", "--radius", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Location: 37.8, -122.26")
	assert.Contains(t, out, "Radius:   5 miles")

	_, err = h.run(t, "settings", "--user", "u1", "--lat", "12")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lat and lng must be set together")

	out, err = h.run(t, "nearby", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "Vermilion Flycatcher")
}

func TestImportRejectsUnknownType(t *testing.T) {
	h := newHarness(t)
	csvPath := filepath.Join(h.dir, "life_list.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(lifeListCSV), 0o600))

	_, err := h.run(t, "import", csvPath, "--user", "u1", "--type", "everything")
	assert.Error(t, err)
}

func TestRegionSpeciesValidatesCode(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "region", "species", "not a region")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid region code")
}
