package database_test

import (
	"context"
	"sync"
	"testing"

	"metaexplorer/internal/database"
	"metaexplorer/internal/database/dbtest"
	"metaexplorer/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func seedCatalog(t *testing.T) *dbtest.Fixture {
	t.Helper()
	f := dbtest.New(t)

	f.AddArtist(t, models.Artist{RowID: 1, ID: "art1", FetchedAt: 1700000000000, Name: "Alpha Band", Followers: 1200, Popularity: 40})
	f.AddArtist(t, models.Artist{RowID: 2, ID: "art2", FetchedAt: 1700000000000, Name: "Beta 100% Crew", Followers: 10, Popularity: 90})
	f.AddArtist(t, models.Artist{RowID: 3, ID: "art3", FetchedAt: 1700000000000, Name: "gamma_ray", Followers: 5, Popularity: 60})
	f.AddArtistImage(t, 1, models.Image{Width: 640, Height: 640, URL: "https://img/1-large"})
	f.AddArtistImage(t, 1, models.Image{Width: 160, Height: 160, URL: "https://img/1-small"})

	f.AddMarkets(t, models.AvailableMarkets{RowID: 1, Markets: "US"})
	f.AddMarkets(t, models.AvailableMarkets{RowID: 2, Markets: "US,CA"})

	f.AddAlbum(t, models.Album{RowID: 10, ID: "alb10", Name: "First", Type: models.AlbumTypeAlbum, MarketsRowID: 2,
		UPC: strPtr("000111"), Label: "Label", Popularity: 30, ReleaseDate: "2020-01-01", ReleaseDatePrecision: "day", TotalTracks: 2})
	f.AddAlbum(t, models.Album{RowID: 11, ID: "alb11", Name: "Second", Type: models.AlbumTypeSingle, MarketsRowID: 1,
		Label: "Label", Popularity: 70, ReleaseDate: "2019", ReleaseDatePrecision: "year", TotalTracks: 1})

	f.AddArtistAlbum(t, models.ArtistAlbum{ArtistRowID: 3, AlbumRowID: 10, IsImplicitAppearsOn: true})
	f.AddArtistAlbum(t, models.ArtistAlbum{ArtistRowID: 2, AlbumRowID: 10})
	f.AddArtistAlbum(t, models.ArtistAlbum{ArtistRowID: 1, AlbumRowID: 10})
	f.AddArtistAlbum(t, models.ArtistAlbum{ArtistRowID: 1, AlbumRowID: 10})
	f.AddArtistAlbum(t, models.ArtistAlbum{ArtistRowID: 1, AlbumRowID: 11, IsAppearsOn: true})

	f.AddTrack(t, models.Track{RowID: 100, ID: "trk100", Name: "Two", AlbumRowID: 10, TrackNumber: 2, DiscNumber: 1,
		DurationMs: 125000, MarketsRowID: 2, Popularity: 10})
	f.AddTrack(t, models.Track{RowID: 101, ID: "trk101", Name: "One", AlbumRowID: 10, TrackNumber: 1, DiscNumber: 1,
		DurationMs: 59999, MarketsRowID: 2, Popularity: 50, Explicit: true, ISRC: strPtr("USRC1"), PreviewURL: strPtr("https://p/101")})
	f.AddTrack(t, models.Track{RowID: 102, ID: "trk102", Name: "Bonus", AlbumRowID: 10, TrackNumber: 1, DiscNumber: 2,
		DurationMs: 1000, MarketsRowID: 2, Popularity: 20})
	f.AddTrackArtist(t, 101, 2)
	f.AddTrackArtist(t, 101, 1)

	f.AddAudioFeature(t, models.AudioFeature{RowID: 1, TrackID: "trk101", FetchedAt: 1, Descriptors: &models.AudioDescriptors{
		TimeSignature: 4, Tempo: 120, Key: 1, Mode: 1, Danceability: 0.5, Energy: 0.25, Loudness: -5.5, Valence: 1,
	}})
	f.AddAudioFeature(t, models.AudioFeature{RowID: 2, TrackID: "trk100", FetchedAt: 1})
	return f
}

func TestArtistLookups(t *testing.T) {
	c := seedCatalog(t).Open(t)
	ctx := context.Background()

	artist, err := c.ArtistByRowID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Band", artist.Name)
	assert.Equal(t, int64(1200), artist.Followers)

	artist, err = c.ArtistByExternalID(ctx, "art3")
	require.NoError(t, err)
	assert.Equal(t, models.ArtistRowID(3), artist.RowID)

	_, err = c.ArtistByRowID(ctx, 999)
	assert.ErrorIs(t, err, database.ErrNotFound)

	_, err = c.ArtistByExternalID(ctx, "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)

	img, err := c.ArtistImage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://img/1-large", img.URL, "first stored image wins")

	_, err = c.ArtistImage(ctx, 2)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestArtistsByPopularity(t *testing.T) {
	c := seedCatalog(t).Open(t)
	ctx := context.Background()

	first, err := c.ArtistsByPopularity(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, models.ArtistRowID(2), first[0].RowID)
	assert.Equal(t, models.ArtistRowID(3), first[1].RowID)

	rest, err := c.ArtistsByPopularity(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, models.ArtistRowID(1), rest[0].RowID)
}

func TestSearchArtists(t *testing.T) {
	c := seedCatalog(t).Open(t)
	ctx := context.Background()

	tests := []struct {
		name string
		q    string
		want []models.ArtistRowID
	}{
		{name: "case insensitive substring", q: "BAND", want: []models.ArtistRowID{1}},
		{name: "percent is literal", q: "100%", want: []models.ArtistRowID{2}},
		{name: "underscore is literal", q: "a_r", want: []models.ArtistRowID{3}},
		{name: "wildcard does not match everything", q: "%", want: []models.ArtistRowID{2}},
		{name: "no match", q: "zzz", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artists, err := c.SearchArtists(ctx, tt.q, 50)
			require.NoError(t, err)
			var got []models.ArtistRowID
			for _, a := range artists {
				got = append(got, a.RowID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearchArtistsFoldsUnicodeCase(t *testing.T) {
	f := dbtest.New(t)
	f.AddArtist(t, models.Artist{RowID: 1, ID: "o1", Name: "Ökuma", Popularity: 50})
	f.AddArtist(t, models.Artist{RowID: 2, ID: "s1", Name: "Straße Ensemble", Popularity: 40})
	f.AddArtist(t, models.Artist{RowID: 3, ID: "d1", Name: "ΔΕΛΤΑ", Popularity: 30})
	c := f.Open(t)

	tests := []struct {
		q    string
		want []models.ArtistRowID
	}{
		{q: "ök", want: []models.ArtistRowID{1}},
		{q: "ÖKUMA", want: []models.ArtistRowID{1}},
		{q: "STRASSE", want: []models.ArtistRowID{2}},
		{q: "δέλτα", want: nil},
		{q: "δελτα", want: []models.ArtistRowID{3}},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			artists, err := c.SearchArtists(context.Background(), tt.q, 50)
			require.NoError(t, err)
			var got []models.ArtistRowID
			for _, a := range artists {
				got = append(got, a.RowID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArtistAlbums(t *testing.T) {
	c := seedCatalog(t).Open(t)
	ctx := context.Background()

	links, err := c.DirectArtistAlbums(ctx, 1)
	require.NoError(t, err)
	require.Len(t, links, 2, "duplicates are returned as stored; appears-on rows are not")
	for _, l := range links {
		assert.Equal(t, models.AlbumRowID(10), l.AlbumRowID)
		assert.False(t, l.IsAppearsOn)
		assert.Nil(t, l.IndexInAlbum)
	}

	owner, err := c.OwningArtistAlbum(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, models.ArtistRowID(1), owner.ArtistRowID, "lowest non-implicit artist rowid owns the album")

	owner, err = c.OwningArtistAlbum(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, models.ArtistRowID(1), owner.ArtistRowID)

	_, err = c.OwningArtistAlbum(ctx, 999)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestAlbumLookups(t *testing.T) {
	c := seedCatalog(t).Open(t)
	ctx := context.Background()

	album, err := c.AlbumByRowID(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, models.AlbumTypeAlbum, album.Type)
	require.NotNil(t, album.UPC)
	assert.Equal(t, "000111", *album.UPC)
	assert.Nil(t, album.AMGID)
	assert.Nil(t, album.CopyrightC)

	albums, err := c.AlbumsByPopularity(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, albums, 2)
	assert.Equal(t, models.AlbumRowID(11), albums[0].RowID)

	_, err = c.AlbumByRowID(ctx, 12)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestTrackLookups(t *testing.T) {
	c := seedCatalog(t).Open(t)
	ctx := context.Background()

	tracks, err := c.TracksByAlbum(ctx, 10)
	require.NoError(t, err)
	var order []models.TrackRowID
	for _, tr := range tracks {
		order = append(order, tr.RowID)
	}
	assert.Equal(t, []models.TrackRowID{101, 100, 102}, order, "ordered by disc then track number")

	track, err := c.TrackByRowID(ctx, 101)
	require.NoError(t, err)
	assert.True(t, track.Explicit)
	require.NotNil(t, track.ISRC)
	assert.Equal(t, "USRC1", *track.ISRC)
	require.NotNil(t, track.PreviewURL)

	track, err = c.TrackByRowID(ctx, 100)
	require.NoError(t, err)
	assert.False(t, track.Explicit)
	assert.Nil(t, track.ISRC)

	popular, err := c.TracksByPopularity(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, models.TrackRowID(101), popular[0].RowID)

	credited, err := c.TrackArtists(ctx, 101)
	require.NoError(t, err)
	require.Len(t, credited, 2)
	assert.Equal(t, "Beta 100% Crew", credited[0].Name, "credit order is insertion order")

	_, err = c.TrackByRowID(ctx, 1)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestMarketsByRowID(t *testing.T) {
	c := seedCatalog(t).Open(t)
	ctx := context.Background()

	m, err := c.MarketsByRowID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "US,CA", m.Markets)

	_, err = c.MarketsByRowID(ctx, 3)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestAudioFeatureByTrackID(t *testing.T) {
	c := seedCatalog(t).Open(t)
	ctx := context.Background()

	f, err := c.AudioFeatureByTrackID(ctx, "trk101")
	require.NoError(t, err)
	require.True(t, f.Populated())
	assert.Equal(t, 4, f.Descriptors.TimeSignature)
	assert.Equal(t, 120.0, f.Descriptors.Tempo)
	assert.Equal(t, 1, f.Descriptors.Key)
	assert.Equal(t, -5.5, f.Descriptors.Loudness)

	f, err = c.AudioFeatureByTrackID(ctx, "trk100")
	require.NoError(t, err)
	assert.False(t, f.Populated(), "null response rows carry no descriptors")

	_, err = c.AudioFeatureByTrackID(ctx, "trk102")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestNewCatalogMissingFile(t *testing.T) {
	f := dbtest.New(t)
	cfg := f.Config()
	cfg.FeaturesPath = cfg.FeaturesPath + ".missing"

	_, err := database.NewCatalog(cfg, nil)
	assert.Error(t, err, "read-only mode never creates a store")
}

func TestConcurrentReads(t *testing.T) {
	c := seedCatalog(t).Open(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.TracksByAlbum(ctx, 10); err != nil {
				errs <- err
			}
			if _, err := c.ArtistsByPopularity(ctx, 3, 0); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestPing(t *testing.T) {
	c := seedCatalog(t).Open(t)
	assert.NoError(t, c.Ping(context.Background()))
}
