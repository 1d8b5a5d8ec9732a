package render

import (
	"bytes"
	"strings"
	"testing"

	"metaexplorer/internal/derive"
	"metaexplorer/internal/view"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New()
	require.NoError(t, err)
	return r
}

func renderDocument(t *testing.T, p view.Page) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, newRenderer(t).Document(&buf, p))
	return buf.String()
}

func renderFragment(t *testing.T, p view.Page) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, newRenderer(t).Fragment(&buf, p))
	return buf.String()
}

func TestDocumentShell(t *testing.T) {
	out := renderDocument(t, &view.HomePage{Shell: view.NewShell("/", "Home")})

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, `<link rel="stylesheet" href="/style.css">`)
	assert.Contains(t, out, `<script src="/script.js" defer></script>`)
	assert.Contains(t, out, `<a href="/" class="usa-current">Home</a>`)
	assert.Contains(t, out, `<a href="/artists">Artists</a>`)
}

func TestIndexSentinel(t *testing.T) {
	a := view.NewAssembler(nil, 50)
	out := renderDocument(t, a.Index("/artists", "artists"))

	assert.Contains(t, out, `hx-get="/artists/?limit=50&amp;offset=0"`)
	assert.Contains(t, out, `id="search-field"`)
	assert.Contains(t, out, `<datalist id="search-results"></datalist>`)

	out = renderDocument(t, a.Index("/tracks", "tracks"))
	assert.Contains(t, out, `hx-get="/tracks/?limit=50&amp;offset=0"`)
	assert.NotContains(t, out, `id="search-field"`)
}

func TestArtistBatchFragment(t *testing.T) {
	out := renderFragment(t, &view.ArtistBatch{
		Cards: []view.ArtistCard{
			{RowID: 7, Name: "Alpha & Omega", Href: "/artists/7", Image: view.Image{Width: 160, Height: 160}},
		},
		Next: &view.Cursor{Href: "/artists/?limit=1&offset=1", Limit: 1, Offset: 1},
	})

	assert.NotContains(t, out, "<html")
	assert.Contains(t, out, "Alpha &amp; Omega")
	assert.Contains(t, out, `<a href="/artists/7">`)
	assert.Contains(t, out, `hx-get="/artists/?limit=1&amp;offset=1"`)

	out = renderFragment(t, &view.ArtistBatch{})
	assert.NotContains(t, out, "hx-get", "nothing to render without a cursor")
}

func TestSuggestionsFragment(t *testing.T) {
	out := renderFragment(t, &view.SearchSuggestions{Options: []view.Suggestion{{Value: "id:abc", Label: "Alpha"}}})
	assert.Contains(t, out, `<datalist id="search-results">`)
	assert.Contains(t, out, `<option value="id:abc">Alpha</option>`)
}

func TestAlbumMarketsAndTracks(t *testing.T) {
	page := &view.AlbumPage{
		Shell:   view.NewShell("/albums/1", "Record"),
		RowID:   1,
		Name:    "Record",
		Artist:  &view.ArtistLink{RowID: 2, Name: "Owner", Href: "/artists/2"},
		Markets: view.Markets{Status: view.MarketsListed, List: derive.DecodeMarkets("US,CA")},
		UPC:     derive.NotAvailable,
		Tracks: []view.TrackRow{
			{RowID: 5, Href: "/tracks/5", DiscNumber: 1, TrackNumber: 1, Name: "Song", Explicit: true, Duration: "2:05", ISRC: "N/A"},
		},
	}
	out := renderDocument(t, page)

	assert.Contains(t, out, `<body id="page-album">`)
	assert.Contains(t, out, `<a class="usa-link" href="/artists/2">Owner</a> &#x203A; Record`)
	ca := strings.Index(out, `title="CA"`)
	us := strings.Index(out, `title="US"`)
	require.True(t, ca > 0 && us > 0)
	assert.Less(t, ca, us, "markets render in code order")
	assert.Contains(t, out, "\U0001F1FA\U0001F1F8")
	assert.Contains(t, out, `<span class="usa-tag">E</span>`)
	assert.NotContains(t, out, "&copy;", "absent copyrights are omitted")
}

func TestAlbumWithoutOwner(t *testing.T) {
	out := renderDocument(t, &view.AlbumPage{
		Shell:   view.NewShell("/albums/1", "Record"),
		Name:    "Record",
		Markets: view.Markets{Status: view.MarketsUnavailable},
	})
	assert.Contains(t, out, "<h1>Record</h1>")
	assert.Contains(t, out, "<dd>Unavailable</dd>")
}

func TestTrackFeaturePanel(t *testing.T) {
	base := view.TrackPage{
		Shell:   view.NewShell("/tracks/1", "Song"),
		Name:    "Song",
		Album:   view.AlbumLink{RowID: 1, Name: "Record", Href: "/albums/1"},
		Markets: view.Markets{Status: view.MarketsMissing},
	}

	without := base
	out := renderDocument(t, &without)
	assert.NotContains(t, out, "Danceability")
	assert.NotContains(t, out, "Tempo")
	assert.NotContains(t, out, "<progress")
	assert.Contains(t, out, "<dd>N/A</dd>")

	with := base
	with.Features = &view.FeaturePanel{
		TimeSignature: "4/4", Tempo: "120 BPM", Key: "C♯/D♭", Mode: "Major", Loudness: "-5 dB",
		Meters: []view.Meter{{Label: "Danceability", Value: 0.5, Text: "50.0 %"}},
	}
	out = renderDocument(t, &with)
	assert.Contains(t, out, "<dd>120 BPM</dd>")
	assert.Contains(t, out, "<dd>C♯/D♭</dd>")
	assert.Contains(t, out, `<progress max="1" value="0.5"></progress> 50.0 %`)
}

func TestReleaseGroupFragment(t *testing.T) {
	out := renderFragment(t, &view.ReleaseGroup{Cards: []view.AlbumCard{
		{RowID: 3, Name: "Newest", Href: "/albums/3", ReleaseYear: "2020"},
		{RowID: 1, Name: "Oldest", Href: "/albums/1", ReleaseYear: "2019"},
	}})
	assert.True(t, strings.HasPrefix(out, `<ul class="usa-card-group">`))
	assert.Less(t, strings.Index(out, "Newest"), strings.Index(out, "Oldest"))
	assert.Contains(t, out, "<dd>2020</dd>")
}

func TestUnknownPage(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer
	assert.Error(t, r.Document(&buf, unknownPage{}))
	assert.Error(t, r.Fragment(&buf, nil))
}

type unknownPage struct{}

func (unknownPage) PageName() string { return "unknown" }
