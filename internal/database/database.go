package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"metaexplorer/internal/config"
	"metaexplorer/internal/metrics"
	"metaexplorer/pkg/models"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
)

// driverName is go-sqlite3 with a casefold(text) SQL function, used to match
// artist names case-insensitively beyond ASCII.
const driverName = "sqlite3_casefold"

var registerDriver sync.Once

func casefold(s string) string {
	return cases.Fold().String(s)
}

func openDriver() string {
	registerDriver.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("casefold", casefold, true)
			},
		})
	})
	return driverName
}

// ErrNotFound is returned by every point lookup whose key matches no row.
var ErrNotFound = errors.New("row not found")

// Catalog wraps the two read-only sqlite handles backing the browser: the
// catalog proper (artists, albums, tracks and their joins) and the separately
// stored audio features. It is safe for concurrent use because *sql.DB and
// *sql.Stmt are, and the Catalog itself holds no mutable state.
type Catalog struct {
	conn     *sql.DB
	features *sql.DB
	logger   *logrus.Logger

	// Prepared statements, one per query shape
	artistByRowIDStmt      *sql.Stmt
	artistByIDStmt         *sql.Stmt
	artistsByPopStmt       *sql.Stmt
	searchArtistsStmt      *sql.Stmt
	artistImageStmt        *sql.Stmt
	directArtistAlbumsStmt *sql.Stmt
	owningArtistAlbumStmt  *sql.Stmt
	albumByRowIDStmt       *sql.Stmt
	albumsByPopStmt        *sql.Stmt
	albumImageStmt         *sql.Stmt
	trackByRowIDStmt       *sql.Stmt
	tracksByAlbumStmt      *sql.Stmt
	tracksByPopStmt        *sql.Stmt
	trackArtistsStmt       *sql.Stmt
	marketsByRowIDStmt     *sql.Stmt
	featureByTrackIDStmt   *sql.Stmt
}

// NewCatalog opens both stores read-only and prepares every query. Caller
// should Close() it when finished.
func NewCatalog(cfg config.DatabaseConfig, logger *logrus.Logger) (*Catalog, error) {
	if logger == nil {
		logger = logrus.New()
	}

	conn, err := openReadOnly(cfg.CatalogPath, cfg.MaxConnections)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	features, err := openReadOnly(cfg.FeaturesPath, cfg.MaxConnections)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open audio features database: %w", err)
	}

	c := &Catalog{
		conn:     conn,
		features: features,
		logger:   logger,
	}

	if err := c.prepareStatements(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"catalog_path":  cfg.CatalogPath,
		"features_path": cfg.FeaturesPath,
	}).Info("Catalog opened read-only")
	return c, nil
}

// openReadOnly opens a sqlite file that must already exist. The store is
// populated externally, so the handle refuses writes.
func openReadOnly(path string, maxConns int) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}

	conn, err := sql.Open(openDriver(), "file:"+path+"?mode=ro&_query_only=true")
	if err != nil {
		return nil, err
	}

	if maxConns < 1 {
		maxConns = 1
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns)
	conn.SetConnMaxLifetime(15 * time.Minute)

	// sql.Open is lazy; fail here rather than on the first request.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// prepareStatements prepares every query shape the assemblers need.
func (c *Catalog) prepareStatements() error {
	statements := []struct {
		dst   **sql.Stmt
		db    *sql.DB
		name  string
		query string
	}{
		{&c.artistByRowIDStmt, c.conn, "artist by rowid", `
			SELECT rowid, id, fetched_at, name, followers_total, popularity
			FROM artists WHERE rowid = ? LIMIT 1`},
		{&c.artistByIDStmt, c.conn, "artist by id", `
			SELECT rowid, id, fetched_at, name, followers_total, popularity
			FROM artists WHERE id = ? LIMIT 1`},
		{&c.artistsByPopStmt, c.conn, "artists by popularity", `
			SELECT rowid, id, fetched_at, name, followers_total, popularity
			FROM artists
			ORDER BY popularity DESC, rowid
			LIMIT ? OFFSET ?`},
		{&c.searchArtistsStmt, c.conn, "search artists", `
			SELECT rowid, id, fetched_at, name, followers_total, popularity
			FROM artists
			WHERE casefold(name) LIKE ? ESCAPE '\'
			ORDER BY popularity DESC, rowid
			LIMIT ?`},
		{&c.artistImageStmt, c.conn, "artist image", `
			SELECT width, height, url FROM artist_images
			WHERE artist_rowid = ? ORDER BY rowid LIMIT 1`},
		{&c.directArtistAlbumsStmt, c.conn, "direct artist albums", `
			SELECT artist_rowid, album_rowid, is_appears_on, is_implicit_appears_on, index_in_album
			FROM artist_albums
			WHERE artist_rowid = ? AND is_appears_on = 0 AND is_implicit_appears_on = 0
			ORDER BY rowid`},
		{&c.owningArtistAlbumStmt, c.conn, "owning artist album", `
			SELECT artist_rowid, album_rowid, is_appears_on, is_implicit_appears_on, index_in_album
			FROM artist_albums
			WHERE album_rowid = ? AND is_implicit_appears_on = 0
			ORDER BY artist_rowid, rowid
			LIMIT 1`},
		{&c.albumByRowIDStmt, c.conn, "album by rowid", `
			SELECT ` + albumColumns + ` FROM albums WHERE rowid = ? LIMIT 1`},
		{&c.albumsByPopStmt, c.conn, "albums by popularity", `
			SELECT ` + albumColumns + ` FROM albums
			ORDER BY popularity DESC, rowid
			LIMIT ? OFFSET ?`},
		{&c.albumImageStmt, c.conn, "album image", `
			SELECT width, height, url FROM album_images
			WHERE album_rowid = ? ORDER BY rowid LIMIT 1`},
		{&c.trackByRowIDStmt, c.conn, "track by rowid", `
			SELECT ` + trackColumns + ` FROM tracks WHERE rowid = ? LIMIT 1`},
		{&c.tracksByAlbumStmt, c.conn, "tracks by album", `
			SELECT ` + trackColumns + ` FROM tracks
			WHERE album_rowid = ?
			ORDER BY disc_number, track_number, rowid`},
		{&c.tracksByPopStmt, c.conn, "tracks by popularity", `
			SELECT ` + trackColumns + ` FROM tracks
			ORDER BY popularity DESC, rowid
			LIMIT ? OFFSET ?`},
		{&c.trackArtistsStmt, c.conn, "track artists", `
			SELECT a.rowid, a.id, a.fetched_at, a.name, a.followers_total, a.popularity
			FROM track_artists ta
			JOIN artists a ON a.rowid = ta.artist_rowid
			WHERE ta.track_rowid = ?
			ORDER BY ta.rowid`},
		{&c.marketsByRowIDStmt, c.conn, "markets by rowid", `
			SELECT rowid, available_markets FROM available_markets WHERE rowid = ? LIMIT 1`},
		{&c.featureByTrackIDStmt, c.features, "audio feature by track id", `
			SELECT rowid, track_id, fetched_at, null_response,
			       duration_ms, time_signature, tempo, "key", mode,
			       danceability, energy, loudness, speechiness,
			       acousticness, instrumentalness, liveness, valence
			FROM track_audio_features WHERE track_id = ? LIMIT 1`},
	}

	for _, s := range statements {
		stmt, err := s.db.Prepare(s.query)
		if err != nil {
			return fmt.Errorf("failed to prepare %s statement: %w", s.name, err)
		}
		*s.dst = stmt
	}
	return nil
}

const albumColumns = `rowid, id, fetched_at, name, album_type, available_markets_rowid,
	external_id_upc, copyright_c, copyright_p, label, popularity,
	release_date, release_date_precision, total_tracks, external_id_amgid`

const trackColumns = `rowid, id, fetched_at, name, preview_url, album_rowid,
	track_number, external_id_isrc, popularity, available_markets_rowid,
	disc_number, duration_ms, explicit`

// observe records query latency and logs unexpected failures. Absent rows are
// an expected outcome and only counted as latency.
func (c *Catalog) observe(query string, start time.Time, errp *error) {
	err := *errp
	metrics.ObserveQuery(query, time.Since(start), err != nil && !errors.Is(err, ErrNotFound))
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, context.Canceled) {
		c.logger.WithError(err).WithField("query", query).Error("Catalog query failed")
	}
}

// Ping checks that both stores still answer.
func (c *Catalog) Ping(ctx context.Context) error {
	if err := c.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if err := c.features.PingContext(ctx); err != nil {
		return fmt.Errorf("audio features: %w", err)
	}
	return nil
}

// Close releases statements and both handles.
func (c *Catalog) Close() error {
	stmts := []*sql.Stmt{
		c.artistByRowIDStmt, c.artistByIDStmt, c.artistsByPopStmt, c.searchArtistsStmt,
		c.artistImageStmt, c.directArtistAlbumsStmt, c.owningArtistAlbumStmt,
		c.albumByRowIDStmt, c.albumsByPopStmt, c.albumImageStmt, c.trackByRowIDStmt,
		c.tracksByAlbumStmt, c.tracksByPopStmt, c.trackArtistsStmt,
		c.marketsByRowIDStmt, c.featureByTrackIDStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}

	var errs []error
	if c.features != nil {
		errs = append(errs, c.features.Close())
	}
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
	}
	return errors.Join(errs...)
}

// ArtistByRowID returns the artist with the given rowid.
func (c *Catalog) ArtistByRowID(ctx context.Context, id models.ArtistRowID) (_ *models.Artist, err error) {
	defer c.observe("artist_by_rowid", time.Now(), &err)
	return scanArtist(c.artistByRowIDStmt.QueryRowContext(ctx, id))
}

// ArtistByExternalID returns the artist with the given external service id.
func (c *Catalog) ArtistByExternalID(ctx context.Context, id string) (_ *models.Artist, err error) {
	defer c.observe("artist_by_id", time.Now(), &err)
	return scanArtist(c.artistByIDStmt.QueryRowContext(ctx, id))
}

// ArtistsByPopularity returns one page of artists, most popular first.
func (c *Catalog) ArtistsByPopularity(ctx context.Context, limit, offset int) (_ []models.Artist, err error) {
	defer c.observe("artists_by_popularity", time.Now(), &err)
	rows, err := c.artistsByPopStmt.QueryContext(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanArtistRows(rows)
}

// SearchArtists returns up to limit artists whose name contains q. Both
// sides are Unicode case folded, so "ök" matches "Ökuma".
func (c *Catalog) SearchArtists(ctx context.Context, q string, limit int) (_ []models.Artist, err error) {
	defer c.observe("search_artists", time.Now(), &err)
	rows, err := c.searchArtistsStmt.QueryContext(ctx, "%"+escapeLike(casefold(q))+"%", limit)
	if err != nil {
		return nil, err
	}
	return scanArtistRows(rows)
}

// ArtistImage returns the first stored image of an artist.
func (c *Catalog) ArtistImage(ctx context.Context, id models.ArtistRowID) (_ *models.Image, err error) {
	defer c.observe("artist_image", time.Now(), &err)
	return scanImage(c.artistImageStmt.QueryRowContext(ctx, id))
}

// DirectArtistAlbums returns the artist's association rows that are neither
// appears-on nor implicit appears-on, in store order. Duplicate album rowids
// are returned as stored.
func (c *Catalog) DirectArtistAlbums(ctx context.Context, id models.ArtistRowID) (_ []models.ArtistAlbum, err error) {
	defer c.observe("direct_artist_albums", time.Now(), &err)
	rows, err := c.directArtistAlbumsStmt.QueryContext(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []models.ArtistAlbum
	for rows.Next() {
		link, err := scanArtistAlbum(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}

// OwningArtistAlbum returns the association that names the album's owning
// artist: the non-implicit row with the lowest artist rowid.
func (c *Catalog) OwningArtistAlbum(ctx context.Context, id models.AlbumRowID) (_ *models.ArtistAlbum, err error) {
	defer c.observe("owning_artist_album", time.Now(), &err)
	return scanArtistAlbum(c.owningArtistAlbumStmt.QueryRowContext(ctx, id))
}

// AlbumByRowID returns the album with the given rowid.
func (c *Catalog) AlbumByRowID(ctx context.Context, id models.AlbumRowID) (_ *models.Album, err error) {
	defer c.observe("album_by_rowid", time.Now(), &err)
	return scanAlbum(c.albumByRowIDStmt.QueryRowContext(ctx, id))
}

// AlbumsByPopularity returns one page of albums, most popular first.
func (c *Catalog) AlbumsByPopularity(ctx context.Context, limit, offset int) (_ []models.Album, err error) {
	defer c.observe("albums_by_popularity", time.Now(), &err)
	rows, err := c.albumsByPopStmt.QueryContext(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var albums []models.Album
	for rows.Next() {
		album, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, *album)
	}
	return albums, rows.Err()
}

// AlbumImage returns the first stored image of an album.
func (c *Catalog) AlbumImage(ctx context.Context, id models.AlbumRowID) (_ *models.Image, err error) {
	defer c.observe("album_image", time.Now(), &err)
	return scanImage(c.albumImageStmt.QueryRowContext(ctx, id))
}

// TrackByRowID returns the track with the given rowid.
func (c *Catalog) TrackByRowID(ctx context.Context, id models.TrackRowID) (_ *models.Track, err error) {
	defer c.observe("track_by_rowid", time.Now(), &err)
	return scanTrack(c.trackByRowIDStmt.QueryRowContext(ctx, id))
}

// TracksByAlbum returns an album's tracks ordered by disc then track number.
func (c *Catalog) TracksByAlbum(ctx context.Context, id models.AlbumRowID) (_ []models.Track, err error) {
	defer c.observe("tracks_by_album", time.Now(), &err)
	rows, err := c.tracksByAlbumStmt.QueryContext(ctx, id)
	if err != nil {
		return nil, err
	}
	return scanTrackRows(rows)
}

// TracksByPopularity returns one page of tracks, most popular first.
func (c *Catalog) TracksByPopularity(ctx context.Context, limit, offset int) (_ []models.Track, err error) {
	defer c.observe("tracks_by_popularity", time.Now(), &err)
	rows, err := c.tracksByPopStmt.QueryContext(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanTrackRows(rows)
}

// TrackArtists returns the artists credited on a track in credit order.
func (c *Catalog) TrackArtists(ctx context.Context, id models.TrackRowID) (_ []models.Artist, err error) {
	defer c.observe("track_artists", time.Now(), &err)
	rows, err := c.trackArtistsStmt.QueryContext(ctx, id)
	if err != nil {
		return nil, err
	}
	return scanArtistRows(rows)
}

// MarketsByRowID returns an available_markets row. It performs the lookup
// for any rowid, including the reserved one; callers short-circuit that.
func (c *Catalog) MarketsByRowID(ctx context.Context, id models.MarketsRowID) (_ *models.AvailableMarkets, err error) {
	defer c.observe("markets_by_rowid", time.Now(), &err)
	var m models.AvailableMarkets
	err = c.marketsByRowIDStmt.QueryRowContext(ctx, id).Scan(&m.RowID, &m.Markets)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// AudioFeatureByTrackID returns the feature row for an external track id.
// Descriptor columns are only copied out when null_response is 0.
func (c *Catalog) AudioFeatureByTrackID(ctx context.Context, trackID string) (_ *models.AudioFeature, err error) {
	defer c.observe("audio_feature_by_track_id", time.Now(), &err)

	var (
		f                                    models.AudioFeature
		nullResponse                         int
		durationMs, timeSignature, key, mode sql.NullInt64
		tempo, danceability, energy          sql.NullFloat64
		loudness, speechiness, acousticness  sql.NullFloat64
		instrumentalness, liveness, valence  sql.NullFloat64
	)
	err = c.featureByTrackIDStmt.QueryRowContext(ctx, trackID).Scan(
		&f.RowID, &f.TrackID, &f.FetchedAt, &nullResponse,
		&durationMs, &timeSignature, &tempo, &key, &mode,
		&danceability, &energy, &loudness, &speechiness,
		&acousticness, &instrumentalness, &liveness, &valence)
	if err != nil {
		return nil, notFound(err)
	}

	if nullResponse == 0 {
		// A populated row with a missing key must not read as C.
		k := -1
		if key.Valid {
			k = int(key.Int64)
		}
		m := -1
		if mode.Valid {
			m = int(mode.Int64)
		}
		f.Descriptors = &models.AudioDescriptors{
			DurationMs:       durationMs.Int64,
			TimeSignature:    int(timeSignature.Int64),
			Tempo:            tempo.Float64,
			Key:              k,
			Mode:             m,
			Danceability:     danceability.Float64,
			Energy:           energy.Float64,
			Loudness:         loudness.Float64,
			Speechiness:      speechiness.Float64,
			Acousticness:     acousticness.Float64,
			Instrumentalness: instrumentalness.Float64,
			Liveness:         liveness.Float64,
			Valence:          valence.Float64,
		}
	}
	return &f, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// escapeLike escapes LIKE wildcards so q matches literally.
func escapeLike(q string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
}

func scanArtist(row scanner) (*models.Artist, error) {
	var a models.Artist
	if err := row.Scan(&a.RowID, &a.ID, &a.FetchedAt, &a.Name, &a.Followers, &a.Popularity); err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func scanArtistRows(rows *sql.Rows) ([]models.Artist, error) {
	defer rows.Close()

	var artists []models.Artist
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, err
		}
		artists = append(artists, *a)
	}
	return artists, rows.Err()
}

func scanImage(row scanner) (*models.Image, error) {
	var img models.Image
	if err := row.Scan(&img.Width, &img.Height, &img.URL); err != nil {
		return nil, notFound(err)
	}
	return &img, nil
}

func scanArtistAlbum(row scanner) (*models.ArtistAlbum, error) {
	var (
		link               models.ArtistAlbum
		appearsOn, implied int
		index              sql.NullInt64
	)
	if err := row.Scan(&link.ArtistRowID, &link.AlbumRowID, &appearsOn, &implied, &index); err != nil {
		return nil, notFound(err)
	}
	link.IsAppearsOn = appearsOn != 0
	link.IsImplicitAppearsOn = implied != 0
	if index.Valid {
		i := int(index.Int64)
		link.IndexInAlbum = &i
	}
	return &link, nil
}

func scanAlbum(row scanner) (*models.Album, error) {
	var (
		a                        models.Album
		upc, copyC, copyP, amgid sql.NullString
		albumType                string
	)
	err := row.Scan(&a.RowID, &a.ID, &a.FetchedAt, &a.Name, &albumType, &a.MarketsRowID,
		&upc, &copyC, &copyP, &a.Label, &a.Popularity,
		&a.ReleaseDate, &a.ReleaseDatePrecision, &a.TotalTracks, &amgid)
	if err != nil {
		return nil, notFound(err)
	}
	a.Type = models.AlbumType(albumType)
	a.UPC = nullableString(upc)
	a.CopyrightC = nullableString(copyC)
	a.CopyrightP = nullableString(copyP)
	a.AMGID = nullableString(amgid)
	return &a, nil
}

func scanTrack(row scanner) (*models.Track, error) {
	var (
		t             models.Track
		preview, isrc sql.NullString
		explicit      int
	)
	err := row.Scan(&t.RowID, &t.ID, &t.FetchedAt, &t.Name, &preview, &t.AlbumRowID,
		&t.TrackNumber, &isrc, &t.Popularity, &t.MarketsRowID,
		&t.DiscNumber, &t.DurationMs, &explicit)
	if err != nil {
		return nil, notFound(err)
	}
	t.PreviewURL = nullableString(preview)
	t.ISRC = nullableString(isrc)
	t.Explicit = explicit != 0
	return &t, nil
}

func scanTrackRows(rows *sql.Rows) ([]models.Track, error) {
	defer rows.Close()

	var tracks []models.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *t)
	}
	return tracks, rows.Err()
}
