package view

import (
	"context"
	"sort"
	"strings"

	"metaexplorer/internal/database"
	"metaexplorer/pkg/models"
)

// memStore is an in-memory Store. Slices keep insertion order, which stands
// in for store iteration order.
type memStore struct {
	artists      []models.Artist
	artistImages map[models.ArtistRowID]models.Image
	albums       []models.Album
	albumImages  map[models.AlbumRowID]models.Image
	links        []models.ArtistAlbum
	tracks       []models.Track
	credits      map[models.TrackRowID][]models.ArtistRowID
	markets      map[models.MarketsRowID]string
	features     map[string]models.AudioFeature

	marketLookups int
	failWith      error
}

func newMemStore() *memStore {
	return &memStore{
		artistImages: map[models.ArtistRowID]models.Image{},
		albumImages:  map[models.AlbumRowID]models.Image{},
		credits:      map[models.TrackRowID][]models.ArtistRowID{},
		markets:      map[models.MarketsRowID]string{},
		features:     map[string]models.AudioFeature{},
	}
}

func (s *memStore) ArtistByRowID(_ context.Context, id models.ArtistRowID) (*models.Artist, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	for _, a := range s.artists {
		if a.RowID == id {
			return &a, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *memStore) ArtistByExternalID(_ context.Context, id string) (*models.Artist, error) {
	for _, a := range s.artists {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, database.ErrNotFound
}

func page[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func (s *memStore) ArtistsByPopularity(_ context.Context, limit, offset int) ([]models.Artist, error) {
	sorted := append([]models.Artist(nil), s.artists...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Popularity > sorted[j].Popularity })
	return page(sorted, limit, offset), nil
}

func (s *memStore) SearchArtists(_ context.Context, q string, limit int) ([]models.Artist, error) {
	var out []models.Artist
	for _, a := range s.artists {
		if strings.Contains(strings.ToLower(a.Name), strings.ToLower(q)) && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) ArtistImage(_ context.Context, id models.ArtistRowID) (*models.Image, error) {
	if img, ok := s.artistImages[id]; ok {
		return &img, nil
	}
	return nil, database.ErrNotFound
}

func (s *memStore) DirectArtistAlbums(_ context.Context, id models.ArtistRowID) ([]models.ArtistAlbum, error) {
	var out []models.ArtistAlbum
	for _, l := range s.links {
		if l.ArtistRowID == id && !l.IsAppearsOn && !l.IsImplicitAppearsOn {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *memStore) OwningArtistAlbum(_ context.Context, id models.AlbumRowID) (*models.ArtistAlbum, error) {
	var best *models.ArtistAlbum
	for i, l := range s.links {
		if l.AlbumRowID == id && !l.IsImplicitAppearsOn && (best == nil || l.ArtistRowID < best.ArtistRowID) {
			best = &s.links[i]
		}
	}
	if best == nil {
		return nil, database.ErrNotFound
	}
	return best, nil
}

func (s *memStore) AlbumByRowID(_ context.Context, id models.AlbumRowID) (*models.Album, error) {
	for _, a := range s.albums {
		if a.RowID == id {
			return &a, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *memStore) AlbumsByPopularity(_ context.Context, limit, offset int) ([]models.Album, error) {
	sorted := append([]models.Album(nil), s.albums...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Popularity > sorted[j].Popularity })
	return page(sorted, limit, offset), nil
}

func (s *memStore) AlbumImage(_ context.Context, id models.AlbumRowID) (*models.Image, error) {
	if img, ok := s.albumImages[id]; ok {
		return &img, nil
	}
	return nil, database.ErrNotFound
}

func (s *memStore) TrackByRowID(_ context.Context, id models.TrackRowID) (*models.Track, error) {
	for _, t := range s.tracks {
		if t.RowID == id {
			return &t, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *memStore) TracksByAlbum(_ context.Context, id models.AlbumRowID) ([]models.Track, error) {
	var out []models.Track
	for _, t := range s.tracks {
		if t.AlbumRowID == id {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) TracksByPopularity(_ context.Context, limit, offset int) ([]models.Track, error) {
	sorted := append([]models.Track(nil), s.tracks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Popularity > sorted[j].Popularity })
	return page(sorted, limit, offset), nil
}

func (s *memStore) TrackArtists(ctx context.Context, id models.TrackRowID) ([]models.Artist, error) {
	var out []models.Artist
	for _, artistID := range s.credits[id] {
		a, err := s.ArtistByRowID(ctx, artistID)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func (s *memStore) MarketsByRowID(_ context.Context, id models.MarketsRowID) (*models.AvailableMarkets, error) {
	s.marketLookups++
	if s.failWith != nil {
		return nil, s.failWith
	}
	if m, ok := s.markets[id]; ok {
		return &models.AvailableMarkets{RowID: id, Markets: m}, nil
	}
	return nil, database.ErrNotFound
}

func (s *memStore) AudioFeatureByTrackID(_ context.Context, trackID string) (*models.AudioFeature, error) {
	if f, ok := s.features[trackID]; ok {
		return &f, nil
	}
	return nil, database.ErrNotFound
}
