package router

import (
	"context"
	"strings"

	"metaexplorer/internal/view"
	"metaexplorer/pkg/models"
)

const (
	artistsPath = "/artists"
	albumsPath  = "/albums"
	tracksPath  = "/tracks"
	idPrefix    = "id:"
)

// table lists every route in priority order. The search routes precede the
// numeric artist routes.
func (r *Resolver) table() []route {
	return []route{
		{"home", exact("/"), Any, r.home},

		{"artists_index", exact(artistsPath), DocumentOnly, r.index("artists")},
		{"artists_batch", exact(artistsPath + "/"), FragmentOnly, r.artistBatch},
		{"artists_search", exact(artistsPath + "/search"), DocumentOnly, r.search},
		{"artists_suggest", exact(artistsPath + "/search"), FragmentOnly, r.suggest},
		{"artist", numeric(artistsPath + "/"), DocumentOnly, r.artist},
		{"artist_releases", numericSuffix{artistsPath + "/", []string{"albums", "singles", "compilations"}}, FragmentOnly, r.releases},

		{"albums_index", exact(albumsPath), DocumentOnly, r.index("albums")},
		{"albums_batch", exact(albumsPath + "/"), FragmentOnly, r.albumBatch},
		{"album", numeric(albumsPath + "/"), DocumentOnly, r.album},

		{"tracks_index", exact(tracksPath), DocumentOnly, r.index("tracks")},
		{"tracks_batch", exact(tracksPath + "/"), FragmentOnly, r.trackBatch},
		{"track", numeric(tracksPath + "/"), DocumentOnly, r.track},
	}
}

func document(p view.Page) Outcome { return Outcome{Kind: Document, Page: p} }
func fragment(p view.Page) Outcome { return Outcome{Kind: Fragment, Page: p} }
func redirect(to string) Outcome   { return Outcome{Kind: Redirect, Location: to} }

func (r *Resolver) home(_ context.Context, req Request, _ params) (Outcome, error) {
	return document(r.views.Home(req.Path)), nil
}

func (r *Resolver) index(kind string) handler {
	return func(_ context.Context, req Request, _ params) (Outcome, error) {
		return document(r.views.Index(req.Path, kind)), nil
	}
}

func (r *Resolver) artistBatch(ctx context.Context, req Request, _ params) (Outcome, error) {
	limit, offset, err := pagination(req.Query)
	if err != nil {
		return Outcome{}, err
	}
	batch, err := r.views.ArtistBatch(ctx, limit, offset)
	if err != nil {
		return Outcome{}, err
	}
	return fragment(batch), nil
}

func (r *Resolver) albumBatch(ctx context.Context, req Request, _ params) (Outcome, error) {
	limit, offset, err := pagination(req.Query)
	if err != nil {
		return Outcome{}, err
	}
	batch, err := r.views.AlbumBatch(ctx, limit, offset)
	if err != nil {
		return Outcome{}, err
	}
	return fragment(batch), nil
}

func (r *Resolver) trackBatch(ctx context.Context, req Request, _ params) (Outcome, error) {
	limit, offset, err := pagination(req.Query)
	if err != nil {
		return Outcome{}, err
	}
	batch, err := r.views.TrackBatch(ctx, limit, offset)
	if err != nil {
		return Outcome{}, err
	}
	return fragment(batch), nil
}

// search handles a submitted search form. "id:" queries resolve to exactly
// one artist; everything else is a name substring search. Both fall back to
// the artist index when nothing matches.
func (r *Resolver) search(ctx context.Context, req Request, _ params) (Outcome, error) {
	q := req.Query.Get("q")
	if q == "" {
		return redirect(artistsPath), nil
	}

	if externalID, ok := strings.CutPrefix(q, idPrefix); ok {
		to, found, err := r.views.ArtistIDRedirect(ctx, externalID)
		if err != nil {
			return Outcome{}, err
		}
		if !found {
			return redirect(artistsPath), nil
		}
		return redirect(to), nil
	}

	page, err := r.views.Search(ctx, req.Path, q)
	if err != nil {
		return Outcome{}, err
	}
	if len(page.Results) == 0 {
		return redirect(artistsPath), nil
	}
	return document(page), nil
}

func (r *Resolver) suggest(ctx context.Context, req Request, _ params) (Outcome, error) {
	list, err := r.views.Suggestions(ctx, req.Query.Get("q"))
	if err != nil {
		return Outcome{}, err
	}
	return fragment(list), nil
}

func (r *Resolver) artist(ctx context.Context, req Request, p params) (Outcome, error) {
	page, err := r.views.Artist(ctx, req.Path, models.ArtistRowID(p.id))
	if err != nil {
		return Outcome{}, err
	}
	return document(page), nil
}

func (r *Resolver) releases(ctx context.Context, _ Request, p params) (Outcome, error) {
	kind, ok := view.ReleaseTypeForSegment(p.segment)
	if !ok {
		return Outcome{}, errBadParam
	}
	group, err := r.views.ReleaseGroup(ctx, models.ArtistRowID(p.id), kind)
	if err != nil {
		return Outcome{}, err
	}
	return fragment(group), nil
}

func (r *Resolver) album(ctx context.Context, req Request, p params) (Outcome, error) {
	page, err := r.views.Album(ctx, req.Path, models.AlbumRowID(p.id))
	if err != nil {
		return Outcome{}, err
	}
	return document(page), nil
}

func (r *Resolver) track(ctx context.Context, req Request, p params) (Outcome, error) {
	page, err := r.views.Track(ctx, req.Path, models.TrackRowID(p.id))
	if err != nil {
		return Outcome{}, err
	}
	return document(page), nil
}
