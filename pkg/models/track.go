package models

// TrackRowID is the store-assigned identity of a tracks row.
type TrackRowID int64

// Track represents one row of the tracks table
type Track struct {
	RowID        TrackRowID   `json:"rowid"`
	ID           string       `json:"id"`
	FetchedAt    int64        `json:"fetchedAt"`
	Name         string       `json:"name"`
	PreviewURL   *string      `json:"previewUrl,omitempty"`
	AlbumRowID   AlbumRowID   `json:"albumRowid"`
	TrackNumber  int          `json:"trackNumber"`
	ISRC         *string      `json:"isrc,omitempty"`
	Popularity   int          `json:"popularity"`
	MarketsRowID MarketsRowID `json:"availableMarketsRowid"`
	DiscNumber   int          `json:"discNumber"`
	DurationMs   int64        `json:"durationMs"`
	Explicit     bool         `json:"explicit"`
}
