package view

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"metaexplorer/internal/database"
	"metaexplorer/internal/derive"
	"metaexplorer/pkg/models"
)

// Store is the subset of the catalog the assemblers read from. Point lookups
// return database.ErrNotFound for absent rows.
type Store interface {
	ArtistByRowID(ctx context.Context, id models.ArtistRowID) (*models.Artist, error)
	ArtistByExternalID(ctx context.Context, id string) (*models.Artist, error)
	ArtistsByPopularity(ctx context.Context, limit, offset int) ([]models.Artist, error)
	SearchArtists(ctx context.Context, q string, limit int) ([]models.Artist, error)
	ArtistImage(ctx context.Context, id models.ArtistRowID) (*models.Image, error)
	DirectArtistAlbums(ctx context.Context, id models.ArtistRowID) ([]models.ArtistAlbum, error)
	OwningArtistAlbum(ctx context.Context, id models.AlbumRowID) (*models.ArtistAlbum, error)
	AlbumByRowID(ctx context.Context, id models.AlbumRowID) (*models.Album, error)
	AlbumsByPopularity(ctx context.Context, limit, offset int) ([]models.Album, error)
	AlbumImage(ctx context.Context, id models.AlbumRowID) (*models.Image, error)
	TrackByRowID(ctx context.Context, id models.TrackRowID) (*models.Track, error)
	TracksByAlbum(ctx context.Context, id models.AlbumRowID) ([]models.Track, error)
	TracksByPopularity(ctx context.Context, limit, offset int) ([]models.Track, error)
	TrackArtists(ctx context.Context, id models.TrackRowID) ([]models.Artist, error)
	MarketsByRowID(ctx context.Context, id models.MarketsRowID) (*models.AvailableMarkets, error)
	AudioFeatureByTrackID(ctx context.Context, trackID string) (*models.AudioFeature, error)
}

// SearchLimit caps name searches.
const SearchLimit = 50

const webPlayerBase = "https://open.spotify.com/"

// Assembler builds page models. It holds no per-request state and is safe
// for concurrent use when its Store is.
type Assembler struct {
	store     Store
	batchSize int
}

// NewAssembler returns an Assembler reading from store. batchSize is the
// limit of the first cursor emitted by index shells.
func NewAssembler(store Store, batchSize int) *Assembler {
	if batchSize < 1 {
		batchSize = 50
	}
	return &Assembler{store: store, batchSize: batchSize}
}

// optional turns an absent secondary row into a nil result.
func optional[T any](v *T, err error) (*T, error) {
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

// Home builds the landing page.
func (a *Assembler) Home(path string) *HomePage {
	return &HomePage{Shell: NewShell(path, "Spotify Metadata Explorer")}
}

// Index builds the shell of a progressively loaded list. kind is one of
// artists, albums or tracks.
func (a *Assembler) Index(path, kind string) *IndexPage {
	return &IndexPage{
		Shell:     NewShell(path, derive.Title(kind)),
		Heading:   derive.Title(kind),
		Kind:      kind,
		HasSearch: kind == "artists",
		Sentinel:  newCursor("/"+kind+"/", a.batchSize, 0),
	}
}

// next returns the continuation cursor of a batch: same limit, offset
// advanced by limit. Every batch carries one, including short and empty ones.
func next(base string, limit, offset int) *Cursor {
	return newCursor(base, limit, offset+limit)
}

// ArtistBatch returns artists ranked offset..offset+limit by popularity.
func (a *Assembler) ArtistBatch(ctx context.Context, limit, offset int) (*ArtistBatch, error) {
	artists, err := a.store.ArtistsByPopularity(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list artists: %w", err)
	}
	cards, err := a.artistCards(ctx, artists)
	if err != nil {
		return nil, err
	}
	return &ArtistBatch{Cards: cards, Next: next("/artists/", limit, offset)}, nil
}

// AlbumBatch returns albums ranked offset..offset+limit by popularity.
func (a *Assembler) AlbumBatch(ctx context.Context, limit, offset int) (*AlbumBatch, error) {
	albums, err := a.store.AlbumsByPopularity(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}
	cards, err := a.albumCards(ctx, albums)
	if err != nil {
		return nil, err
	}
	return &AlbumBatch{Cards: cards, Next: next("/albums/", limit, offset)}, nil
}

// TrackBatch returns tracks ranked offset..offset+limit by popularity.
func (a *Assembler) TrackBatch(ctx context.Context, limit, offset int) (*TrackBatch, error) {
	tracks, err := a.store.TracksByPopularity(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	rows := make([]TrackCard, 0, len(tracks))
	for _, t := range tracks {
		rows = append(rows, TrackCard{
			RowID:      t.RowID,
			Name:       t.Name,
			Href:       TrackHref(t.RowID),
			Explicit:   t.Explicit,
			Duration:   derive.Duration(t.DurationMs),
			Popularity: t.Popularity,
		})
	}
	return &TrackBatch{Rows: rows, Next: next("/tracks/", limit, offset)}, nil
}

// ArtistIDRedirect resolves an external artist id to its detail path.
// ok is false when no artist has that id.
func (a *Assembler) ArtistIDRedirect(ctx context.Context, externalID string) (path string, ok bool, err error) {
	artist, err := optional(a.store.ArtistByExternalID(ctx, externalID))
	if err != nil {
		return "", false, fmt.Errorf("artist by external id: %w", err)
	}
	if artist == nil {
		return "", false, nil
	}
	return ArtistHref(artist.RowID), true, nil
}

// Search builds the results page for a name substring query.
func (a *Assembler) Search(ctx context.Context, path, q string) (*SearchPage, error) {
	artists, err := a.store.SearchArtists(ctx, q, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search artists: %w", err)
	}
	cards, err := a.artistCards(ctx, artists)
	if err != nil {
		return nil, err
	}
	return &SearchPage{
		Shell:   NewShell(path, "Artist Search: "+q),
		Query:   q,
		Results: cards,
	}, nil
}

// Suggestions builds the inline suggestion list. An empty query yields an
// empty list without touching the store.
func (a *Assembler) Suggestions(ctx context.Context, q string) (*SearchSuggestions, error) {
	out := &SearchSuggestions{}
	if q == "" {
		return out, nil
	}
	artists, err := a.store.SearchArtists(ctx, q, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search artists: %w", err)
	}
	for _, artist := range artists {
		out.Options = append(out.Options, Suggestion{Value: "id:" + artist.ID, Label: artist.Name})
	}
	return out, nil
}

// releaseTabs are the artist page panes, in display order.
var releaseTabs = []struct {
	segment string
	kind    models.AlbumType
}{
	{"albums", models.AlbumTypeAlbum},
	{"singles", models.AlbumTypeSingle},
	{"compilations", models.AlbumTypeCompilation},
}

// ReleaseTypeForSegment maps a tab path segment to its album type.
func ReleaseTypeForSegment(segment string) (models.AlbumType, bool) {
	for _, t := range releaseTabs {
		if t.segment == segment {
			return t.kind, true
		}
	}
	return "", false
}

// Artist builds the artist detail page. A missing artist returns
// database.ErrNotFound.
func (a *Assembler) Artist(ctx context.Context, path string, id models.ArtistRowID) (*ArtistPage, error) {
	artist, err := a.store.ArtistByRowID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("artist %d: %w", id, err)
	}
	img, err := optional(a.store.ArtistImage(ctx, id))
	if err != nil {
		return nil, fmt.Errorf("artist %d image: %w", id, err)
	}

	page := &ArtistPage{
		Shell:      NewShell(path, artist.Name),
		RowID:      artist.RowID,
		ID:         artist.ID,
		WebURL:     webPlayerBase + "artist/" + artist.ID,
		Name:       artist.Name,
		Followers:  derive.Grouped(artist.Followers),
		FetchedAt:  derive.FetchedAt(artist.FetchedAt),
		Popularity: artist.Popularity,
		Image:      imageOf(img, placeholderSize, placeholderSize),
	}
	for _, t := range releaseTabs {
		page.Tabs = append(page.Tabs, Tab{
			Name:  t.segment,
			Label: derive.Title(t.segment),
			Href:  ArtistHref(id) + "/" + t.segment,
		})
	}
	return page, nil
}

// ReleaseGroup lists the artist's distinct direct albums of one type,
// newest release first. Duplicate associations collapse to their first
// occurrence before the type filter and the sort run.
func (a *Assembler) ReleaseGroup(ctx context.Context, id models.ArtistRowID, kind models.AlbumType) (*ReleaseGroup, error) {
	if _, err := a.store.ArtistByRowID(ctx, id); err != nil {
		return nil, fmt.Errorf("artist %d: %w", id, err)
	}

	links, err := a.store.DirectArtistAlbums(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("artist %d albums: %w", id, err)
	}

	seen := make(map[models.AlbumRowID]struct{}, len(links))
	var albums []models.Album
	for _, link := range links {
		if _, dup := seen[link.AlbumRowID]; dup {
			continue
		}
		seen[link.AlbumRowID] = struct{}{}

		album, err := optional(a.store.AlbumByRowID(ctx, link.AlbumRowID))
		if err != nil {
			return nil, fmt.Errorf("album %d: %w", link.AlbumRowID, err)
		}
		if album == nil || album.Type != kind {
			continue
		}
		albums = append(albums, *album)
	}

	// Equal dates keep their association order.
	sort.SliceStable(albums, func(i, j int) bool {
		return albums[i].ReleaseDate > albums[j].ReleaseDate
	})

	cards, err := a.albumCards(ctx, albums)
	if err != nil {
		return nil, err
	}
	return &ReleaseGroup{ArtistRowID: id, Type: kind, Cards: cards}, nil
}

// Album builds the album detail page. A missing album returns
// database.ErrNotFound; a missing owning artist leaves Artist nil.
func (a *Assembler) Album(ctx context.Context, path string, id models.AlbumRowID) (*AlbumPage, error) {
	album, err := a.store.AlbumByRowID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("album %d: %w", id, err)
	}
	artist, err := a.owningArtist(ctx, id)
	if err != nil {
		return nil, err
	}
	img, err := optional(a.store.AlbumImage(ctx, id))
	if err != nil {
		return nil, fmt.Errorf("album %d image: %w", id, err)
	}
	markets, err := a.marketsFor(ctx, album.MarketsRowID)
	if err != nil {
		return nil, err
	}
	tracks, err := a.store.TracksByAlbum(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("album %d tracks: %w", id, err)
	}

	page := &AlbumPage{
		Shell:       NewShell(path, album.Name),
		RowID:       album.RowID,
		ID:          album.ID,
		WebURL:      webPlayerBase + "album/" + album.ID,
		Name:        album.Name,
		Type:        derive.Title(string(album.Type)),
		Artist:      artist,
		Image:       imageOf(img, 320, 320),
		Markets:     markets,
		UPC:         derive.Optional(album.UPC),
		CopyrightC:  album.CopyrightC,
		CopyrightP:  album.CopyrightP,
		Label:       album.Label,
		ReleaseDate: album.ReleaseDate,
		Precision:   album.ReleaseDatePrecision,
		AMGID:       derive.Optional(album.AMGID),
		Tracks:      make([]TrackRow, 0, len(tracks)),
	}
	for _, t := range tracks {
		page.Tracks = append(page.Tracks, TrackRow{
			RowID:       t.RowID,
			Href:        TrackHref(t.RowID),
			DiscNumber:  t.DiscNumber,
			TrackNumber: t.TrackNumber,
			Name:        t.Name,
			Explicit:    t.Explicit,
			Duration:    derive.Duration(t.DurationMs),
			ISRC:        derive.Optional(t.ISRC),
		})
	}
	return page, nil
}

// Track builds the track detail page. A missing track, or a track whose
// album is missing, returns database.ErrNotFound.
func (a *Assembler) Track(ctx context.Context, path string, id models.TrackRowID) (*TrackPage, error) {
	track, err := a.store.TrackByRowID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("track %d: %w", id, err)
	}
	album, err := a.store.AlbumByRowID(ctx, track.AlbumRowID)
	if err != nil {
		return nil, fmt.Errorf("track %d album %d: %w", id, track.AlbumRowID, err)
	}
	artist, err := a.owningArtist(ctx, album.RowID)
	if err != nil {
		return nil, err
	}
	img, err := optional(a.store.AlbumImage(ctx, album.RowID))
	if err != nil {
		return nil, fmt.Errorf("album %d image: %w", album.RowID, err)
	}
	markets, err := a.marketsFor(ctx, track.MarketsRowID)
	if err != nil {
		return nil, err
	}
	credited, err := a.store.TrackArtists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("track %d artists: %w", id, err)
	}
	feature, err := optional(a.store.AudioFeatureByTrackID(ctx, track.ID))
	if err != nil {
		return nil, fmt.Errorf("track %d features: %w", id, err)
	}

	page := &TrackPage{
		Shell:      NewShell(path, track.Name),
		RowID:      track.RowID,
		ID:         track.ID,
		WebURL:     webPlayerBase + "track/" + track.ID,
		Name:       track.Name,
		Explicit:   track.Explicit,
		Artist:     artist,
		Album:      AlbumLink{RowID: album.RowID, Name: album.Name, Href: AlbumHref(album.RowID)},
		Image:      imageOf(img, 320, 320),
		ISRC:       derive.Optional(track.ISRC),
		Markets:    markets,
		Duration:   derive.Duration(track.DurationMs),
		DiscNumber: track.DiscNumber,
		Number:     track.TrackNumber,
		Popularity: track.Popularity,
		Features:   featurePanel(feature),
	}
	if track.PreviewURL != nil {
		page.PreviewURL = *track.PreviewURL
	}
	for i := range credited {
		page.Credits = append(page.Credits, linkArtist(&credited[i]))
	}
	return page, nil
}

// featurePanel formats a feature row. Rows carrying the null-response tag
// yield no panel at all.
func featurePanel(f *models.AudioFeature) *FeaturePanel {
	if !f.Populated() {
		return nil
	}
	d := f.Descriptors
	meter := func(label string, v float64) Meter {
		return Meter{Label: label, Value: derive.Unit(v), Text: derive.Percent(v)}
	}
	return &FeaturePanel{
		TimeSignature: derive.TimeSignature(d.TimeSignature),
		Tempo:         derive.Tempo(d.Tempo),
		Key:           derive.KeyName(d.Key),
		Mode:          derive.ModeName(d.Mode),
		Loudness:      derive.Loudness(d.Loudness),
		Meters: []Meter{
			meter("Danceability", d.Danceability),
			meter("Energy", d.Energy),
			meter("Speechiness", d.Speechiness),
			meter("Acousticness", d.Acousticness),
			meter("Instrumentalness", d.Instrumentalness),
			meter("Liveness", d.Liveness),
			meter("Valence", d.Valence),
		},
	}
}

// owningArtist resolves the breadcrumb artist of an album, nil when the
// album has no qualifying association or the artist row is gone.
func (a *Assembler) owningArtist(ctx context.Context, id models.AlbumRowID) (*ArtistLink, error) {
	link, err := optional(a.store.OwningArtistAlbum(ctx, id))
	if err != nil {
		return nil, fmt.Errorf("album %d owner: %w", id, err)
	}
	if link == nil {
		return nil, nil
	}
	artist, err := optional(a.store.ArtistByRowID(ctx, link.ArtistRowID))
	if err != nil {
		return nil, fmt.Errorf("artist %d: %w", link.ArtistRowID, err)
	}
	if artist == nil {
		return nil, nil
	}
	l := linkArtist(artist)
	return &l, nil
}

// marketsFor resolves a market reference. The reserved rowid never reaches
// the store.
func (a *Assembler) marketsFor(ctx context.Context, id models.MarketsRowID) (Markets, error) {
	if id == models.UnavailableMarkets {
		return Markets{Status: MarketsUnavailable}, nil
	}
	row, err := optional(a.store.MarketsByRowID(ctx, id))
	if err != nil {
		return Markets{}, fmt.Errorf("markets %d: %w", id, err)
	}
	if row == nil {
		return Markets{Status: MarketsMissing}, nil
	}
	return Markets{Status: MarketsListed, List: derive.DecodeMarkets(row.Markets)}, nil
}

func (a *Assembler) artistCards(ctx context.Context, artists []models.Artist) ([]ArtistCard, error) {
	cards := make([]ArtistCard, 0, len(artists))
	for _, artist := range artists {
		img, err := optional(a.store.ArtistImage(ctx, artist.RowID))
		if err != nil {
			return nil, fmt.Errorf("artist %d image: %w", artist.RowID, err)
		}
		cards = append(cards, ArtistCard{
			RowID: artist.RowID,
			Name:  artist.Name,
			Href:  ArtistHref(artist.RowID),
			Image: imageOf(img, placeholderSize, placeholderSize),
		})
	}
	return cards, nil
}

func (a *Assembler) albumCards(ctx context.Context, albums []models.Album) ([]AlbumCard, error) {
	cards := make([]AlbumCard, 0, len(albums))
	for _, album := range albums {
		img, err := optional(a.store.AlbumImage(ctx, album.RowID))
		if err != nil {
			return nil, fmt.Errorf("album %d image: %w", album.RowID, err)
		}
		cards = append(cards, AlbumCard{
			RowID:       album.RowID,
			Name:        album.Name,
			Href:        AlbumHref(album.RowID),
			Image:       imageOf(img, placeholderSize, placeholderSize),
			ReleaseDate: album.ReleaseDate,
			ReleaseYear: derive.ReleaseYear(album.ReleaseDate),
		})
	}
	return cards, nil
}
