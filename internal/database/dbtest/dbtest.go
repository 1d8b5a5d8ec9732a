// Package dbtest builds throwaway catalog and audio feature stores for tests.
// Rows are written through a writable handle and read back through the
// production read-only Catalog.
package dbtest

import (
	"database/sql"
	"io"
	"path/filepath"
	"testing"

	"metaexplorer/internal/config"
	"metaexplorer/internal/database"
	"metaexplorer/pkg/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const catalogSchema = `
CREATE TABLE artists (
	rowid integer PRIMARY KEY NOT NULL,
	id text NOT NULL,
	fetched_at integer NOT NULL,
	name text NOT NULL,
	followers_total integer NOT NULL,
	popularity integer NOT NULL
);
CREATE TABLE artist_images (
	artist_rowid integer NOT NULL,
	width integer NOT NULL,
	height integer NOT NULL,
	url text NOT NULL
);
CREATE TABLE albums (
	rowid integer PRIMARY KEY NOT NULL,
	id text NOT NULL,
	fetched_at integer NOT NULL,
	name text NOT NULL,
	album_type text NOT NULL,
	available_markets_rowid integer NOT NULL,
	external_id_upc text,
	copyright_c text,
	copyright_p text,
	label text NOT NULL,
	popularity integer NOT NULL,
	release_date text NOT NULL,
	release_date_precision text NOT NULL,
	total_tracks integer NOT NULL,
	external_id_amgid text
);
CREATE TABLE artist_albums (
	artist_rowid integer NOT NULL,
	album_rowid integer NOT NULL,
	is_appears_on integer NOT NULL,
	is_implicit_appears_on integer NOT NULL,
	index_in_album integer
);
CREATE TABLE album_images (
	album_rowid integer NOT NULL,
	width integer NOT NULL,
	height integer NOT NULL,
	url text NOT NULL
);
CREATE TABLE available_markets (
	rowid integer PRIMARY KEY NOT NULL,
	available_markets text NOT NULL
);
CREATE TABLE tracks (
	rowid integer PRIMARY KEY NOT NULL,
	id text NOT NULL,
	fetched_at integer NOT NULL,
	name text NOT NULL,
	preview_url text,
	album_rowid integer NOT NULL,
	track_number integer NOT NULL,
	external_id_isrc text,
	popularity integer NOT NULL,
	available_markets_rowid integer NOT NULL,
	disc_number integer NOT NULL,
	duration_ms integer NOT NULL,
	explicit integer NOT NULL
);
CREATE TABLE track_artists (
	track_rowid integer NOT NULL,
	artist_rowid integer NOT NULL
);
`

const featuresSchema = `
CREATE TABLE track_audio_features (
	rowid integer PRIMARY KEY NOT NULL,
	track_id text NOT NULL,
	fetched_at integer NOT NULL,
	null_response integer NOT NULL,
	duration_ms integer,
	time_signature integer,
	tempo integer,
	"key" integer,
	mode integer,
	danceability real,
	energy real,
	loudness real,
	speechiness real,
	acousticness real,
	instrumentalness real,
	liveness real,
	valence real
);
`

// Fixture is a pair of freshly created stores in a temp directory.
type Fixture struct {
	CatalogPath  string
	FeaturesPath string

	catalog  *sql.DB
	features *sql.DB
}

// New creates both stores with the full schema. They are removed when the
// test ends.
func New(t testing.TB) *Fixture {
	t.Helper()
	dir := t.TempDir()
	f := &Fixture{
		CatalogPath:  filepath.Join(dir, "catalog.sqlite3"),
		FeaturesPath: filepath.Join(dir, "features.sqlite3"),
	}
	f.catalog = openWritable(t, f.CatalogPath, catalogSchema)
	f.features = openWritable(t, f.FeaturesPath, featuresSchema)
	return f
}

func openWritable(t testing.TB, path, schema string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=rwc")
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema in %s: %v", path, err)
	}
	return db
}

// Config returns a database config pointing at the fixture.
func (f *Fixture) Config() config.DatabaseConfig {
	return config.DatabaseConfig{
		CatalogPath:    f.CatalogPath,
		FeaturesPath:   f.FeaturesPath,
		MaxConnections: 4,
	}
}

// Open opens the fixture through the production read-only path.
func (f *Fixture) Open(t testing.TB) *database.Catalog {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	c, err := database.NewCatalog(f.Config(), logger)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// Exec runs a statement against the catalog store.
func (f *Fixture) Exec(t testing.TB, query string, args ...any) {
	t.Helper()
	if _, err := f.catalog.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

// ExecFeatures runs a statement against the audio feature store.
func (f *Fixture) ExecFeatures(t testing.TB, query string, args ...any) {
	t.Helper()
	if _, err := f.features.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// AddArtist inserts an artist row.
func (f *Fixture) AddArtist(t testing.TB, a models.Artist) {
	t.Helper()
	f.Exec(t, `INSERT INTO artists (rowid, id, fetched_at, name, followers_total, popularity)
		VALUES (?, ?, ?, ?, ?, ?)`, a.RowID, a.ID, a.FetchedAt, a.Name, a.Followers, a.Popularity)
}

// AddArtistImage inserts an artist image row.
func (f *Fixture) AddArtistImage(t testing.TB, id models.ArtistRowID, img models.Image) {
	t.Helper()
	f.Exec(t, `INSERT INTO artist_images (artist_rowid, width, height, url) VALUES (?, ?, ?, ?)`,
		id, img.Width, img.Height, img.URL)
}

// AddAlbum inserts an album row.
func (f *Fixture) AddAlbum(t testing.TB, a models.Album) {
	t.Helper()
	f.Exec(t, `INSERT INTO albums (rowid, id, fetched_at, name, album_type, available_markets_rowid,
		external_id_upc, copyright_c, copyright_p, label, popularity,
		release_date, release_date_precision, total_tracks, external_id_amgid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RowID, a.ID, a.FetchedAt, a.Name, string(a.Type), a.MarketsRowID,
		a.UPC, a.CopyrightC, a.CopyrightP, a.Label, a.Popularity,
		a.ReleaseDate, a.ReleaseDatePrecision, a.TotalTracks, a.AMGID)
}

// AddAlbumImage inserts an album image row.
func (f *Fixture) AddAlbumImage(t testing.TB, id models.AlbumRowID, img models.Image) {
	t.Helper()
	f.Exec(t, `INSERT INTO album_images (album_rowid, width, height, url) VALUES (?, ?, ?, ?)`,
		id, img.Width, img.Height, img.URL)
}

// AddArtistAlbum inserts an association row.
func (f *Fixture) AddArtistAlbum(t testing.TB, l models.ArtistAlbum) {
	t.Helper()
	f.Exec(t, `INSERT INTO artist_albums (artist_rowid, album_rowid, is_appears_on, is_implicit_appears_on, index_in_album)
		VALUES (?, ?, ?, ?, ?)`,
		l.ArtistRowID, l.AlbumRowID, boolInt(l.IsAppearsOn), boolInt(l.IsImplicitAppearsOn), l.IndexInAlbum)
}

// AddMarkets inserts an available_markets row.
func (f *Fixture) AddMarkets(t testing.TB, m models.AvailableMarkets) {
	t.Helper()
	f.Exec(t, `INSERT INTO available_markets (rowid, available_markets) VALUES (?, ?)`, m.RowID, m.Markets)
}

// AddTrack inserts a track row.
func (f *Fixture) AddTrack(t testing.TB, tr models.Track) {
	t.Helper()
	f.Exec(t, `INSERT INTO tracks (rowid, id, fetched_at, name, preview_url, album_rowid,
		track_number, external_id_isrc, popularity, available_markets_rowid,
		disc_number, duration_ms, explicit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.RowID, tr.ID, tr.FetchedAt, tr.Name, tr.PreviewURL, tr.AlbumRowID,
		tr.TrackNumber, tr.ISRC, tr.Popularity, tr.MarketsRowID,
		tr.DiscNumber, tr.DurationMs, boolInt(tr.Explicit))
}

// AddTrackArtist credits an artist on a track.
func (f *Fixture) AddTrackArtist(t testing.TB, track models.TrackRowID, artist models.ArtistRowID) {
	t.Helper()
	f.Exec(t, `INSERT INTO track_artists (track_rowid, artist_rowid) VALUES (?, ?)`, track, artist)
}

// AddAudioFeature inserts a feature row. A nil Descriptors writes the
// null-response tag with every descriptor column NULL.
func (f *Fixture) AddAudioFeature(t testing.TB, af models.AudioFeature) {
	t.Helper()
	if af.Descriptors == nil {
		f.ExecFeatures(t, `INSERT INTO track_audio_features (rowid, track_id, fetched_at, null_response)
			VALUES (?, ?, ?, 1)`, af.RowID, af.TrackID, af.FetchedAt)
		return
	}
	d := af.Descriptors
	f.ExecFeatures(t, `INSERT INTO track_audio_features (rowid, track_id, fetched_at, null_response,
		duration_ms, time_signature, tempo, "key", mode, danceability, energy, loudness,
		speechiness, acousticness, instrumentalness, liveness, valence)
		VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		af.RowID, af.TrackID, af.FetchedAt,
		d.DurationMs, d.TimeSignature, d.Tempo, d.Key, d.Mode, d.Danceability, d.Energy, d.Loudness,
		d.Speechiness, d.Acousticness, d.Instrumentalness, d.Liveness, d.Valence)
}
