// Package view assembles fully-resolved page models from catalog rows. The
// renderer receives only these types and never performs lookups itself.
package view

import (
	"net/url"
	"strconv"
	"strings"

	"metaexplorer/internal/derive"
	"metaexplorer/pkg/models"
)

// Page is implemented by every view model handed to the renderer. PageName
// selects the template.
type Page interface {
	PageName() string
}

// Place is an entry of the side navigation.
type Place struct {
	Label   string
	Href    string
	Current bool
}

var places = []struct{ label, href string }{
	{"Home", "/"},
	{"Artists", "/artists"},
	{"Albums", "/albums"},
	{"Tracks", "/tracks"},
}

// Shell carries what every full document needs besides its content.
type Shell struct {
	Title  string
	Places []Place
}

// NewShell builds the page shell for a request path. A place is current when
// the path equals it or, for places other than "/", starts with it.
func NewShell(path, title string) Shell {
	s := Shell{Title: title, Places: make([]Place, 0, len(places))}
	for _, p := range places {
		current := path == p.href || (len(p.href) > 1 && strings.HasPrefix(path, p.href))
		s.Places = append(s.Places, Place{Label: p.label, Href: p.href, Current: current})
	}
	return s
}

// Image is a resolved image reference. A zero URL renders a placeholder of
// the given size.
type Image struct {
	URL    string
	Width  int
	Height int
}

const placeholderSize = 160

func imageOf(img *models.Image, w, h int) Image {
	out := Image{Width: w, Height: h}
	if img != nil {
		out.URL = img.URL
	}
	return out
}

// Cursor is a continuation marker for progressive list loading.
type Cursor struct {
	Href   string
	Limit  int
	Offset int
}

func newCursor(base string, limit, offset int) *Cursor {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return &Cursor{Href: base + "?" + q.Encode(), Limit: limit, Offset: offset}
}

// MarketStatus distinguishes the three ways a market reference resolves.
type MarketStatus int

const (
	MarketsListed MarketStatus = iota
	MarketsUnavailable
	MarketsMissing
)

// Markets is a decoded market reference.
type Markets struct {
	Status MarketStatus
	List   []derive.Market
}

// Label is the fixed text shown instead of a list.
func (m Markets) Label() string {
	switch m.Status {
	case MarketsUnavailable:
		return "Unavailable"
	case MarketsMissing:
		return derive.NotAvailable
	default:
		return ""
	}
}

// ArtistLink is a named link to an artist page.
type ArtistLink struct {
	RowID models.ArtistRowID
	Name  string
	Href  string
}

func linkArtist(a *models.Artist) ArtistLink {
	return ArtistLink{RowID: a.RowID, Name: a.Name, Href: ArtistHref(a.RowID)}
}

// AlbumLink is a named link to an album page.
type AlbumLink struct {
	RowID models.AlbumRowID
	Name  string
	Href  string
}

// ArtistHref returns the detail path of an artist.
func ArtistHref(id models.ArtistRowID) string {
	return "/artists/" + strconv.FormatInt(int64(id), 10)
}

// AlbumHref returns the detail path of an album.
func AlbumHref(id models.AlbumRowID) string {
	return "/albums/" + strconv.FormatInt(int64(id), 10)
}

// TrackHref returns the detail path of a track.
func TrackHref(id models.TrackRowID) string {
	return "/tracks/" + strconv.FormatInt(int64(id), 10)
}

// ArtistCard is one artist in a card list.
type ArtistCard struct {
	RowID models.ArtistRowID
	Name  string
	Href  string
	Image Image
}

// AlbumCard is one album in a card list.
type AlbumCard struct {
	RowID       models.AlbumRowID
	Name        string
	Href        string
	Image       Image
	ReleaseDate string
	ReleaseYear string
}

// TrackCard is one track in the track index.
type TrackCard struct {
	RowID      models.TrackRowID
	Name       string
	Href       string
	Explicit   bool
	Duration   string
	Popularity int
}

// HomePage is the landing document.
type HomePage struct {
	Shell
}

func (*HomePage) PageName() string { return "home" }

// IndexPage is the shell of a progressively loaded list.
type IndexPage struct {
	Shell
	Heading   string
	Kind      string // "artists", "albums" or "tracks"
	HasSearch bool
	Sentinel  *Cursor
}

func (*IndexPage) PageName() string { return "index" }

// ArtistBatch is one page of artist cards followed by an optional cursor.
type ArtistBatch struct {
	Cards []ArtistCard
	Next  *Cursor
}

func (*ArtistBatch) PageName() string { return "artist_batch" }

// AlbumBatch is one page of album cards followed by an optional cursor.
type AlbumBatch struct {
	Cards []AlbumCard
	Next  *Cursor
}

func (*AlbumBatch) PageName() string { return "album_batch" }

// TrackBatch is one page of tracks followed by an optional cursor.
type TrackBatch struct {
	Rows []TrackCard
	Next *Cursor
}

func (*TrackBatch) PageName() string { return "track_batch" }

// SearchPage lists artists whose name matches a query.
type SearchPage struct {
	Shell
	Query   string
	Results []ArtistCard
}

func (*SearchPage) PageName() string { return "search" }

// Suggestion is one option of the inline search list. Value carries the
// "id:" prefix so submitting it resolves straight to the artist.
type Suggestion struct {
	Value string
	Label string
}

// SearchSuggestions is the inline suggestion list fragment.
type SearchSuggestions struct {
	Options []Suggestion
}

func (*SearchSuggestions) PageName() string { return "search_suggestions" }

// Tab is one lazily loaded release group pane.
type Tab struct {
	Name  string // path segment: albums, singles, compilations
	Label string
	Href  string
}

// ArtistPage is the artist detail document.
type ArtistPage struct {
	Shell
	RowID      models.ArtistRowID
	ID         string
	WebURL     string
	Name       string
	Followers  string
	FetchedAt  string
	Popularity int
	Image      Image
	Tabs       []Tab
}

func (*ArtistPage) PageName() string { return "artist" }

// ReleaseGroup is the card list for one album type of one artist.
type ReleaseGroup struct {
	ArtistRowID models.ArtistRowID
	Type        models.AlbumType
	Cards       []AlbumCard
}

func (*ReleaseGroup) PageName() string { return "release_group" }

// TrackRow is a row of an album's track table.
type TrackRow struct {
	RowID       models.TrackRowID
	Href        string
	DiscNumber  int
	TrackNumber int
	Name        string
	Explicit    bool
	Duration    string
	ISRC        string
}

// AlbumPage is the album detail document. Artist is nil when the album has
// no owning association.
type AlbumPage struct {
	Shell
	RowID       models.AlbumRowID
	ID          string
	WebURL      string
	Name        string
	Type        string
	Artist      *ArtistLink
	Image       Image
	Markets     Markets
	UPC         string
	CopyrightC  *string
	CopyrightP  *string
	Label       string
	ReleaseDate string
	Precision   string
	AMGID       string
	Tracks      []TrackRow
}

func (*AlbumPage) PageName() string { return "album" }

// Meter is a [0,1] descriptor shown as a progress bar and a percentage.
type Meter struct {
	Label string
	Value float64
	Text  string
}

// FeaturePanel holds the formatted audio descriptors of a track.
type FeaturePanel struct {
	TimeSignature string
	Tempo         string
	Key           string
	Mode          string
	Loudness      string
	Meters        []Meter
}

// TrackPage is the track detail document. Features is nil unless a
// populated feature row exists.
type TrackPage struct {
	Shell
	RowID      models.TrackRowID
	ID         string
	WebURL     string
	Name       string
	Explicit   bool
	Artist     *ArtistLink
	Album      AlbumLink
	Image      Image
	ISRC       string
	Markets    Markets
	Duration   string
	DiscNumber int
	Number     int
	Popularity int
	PreviewURL string
	Credits    []ArtistLink
	Features   *FeaturePanel
}

func (*TrackPage) PageName() string { return "track" }
