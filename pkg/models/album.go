package models

// AlbumRowID is the store-assigned identity of an albums row.
type AlbumRowID int64

// AlbumType is the release group an album belongs to.
type AlbumType string

const (
	AlbumTypeAlbum       AlbumType = "album"
	AlbumTypeSingle      AlbumType = "single"
	AlbumTypeCompilation AlbumType = "compilation"
)

// Album represents one row of the albums table. Optional columns are nil
// when the store holds NULL.
type Album struct {
	RowID                AlbumRowID   `json:"rowid"`
	ID                   string       `json:"id"`
	FetchedAt            int64        `json:"fetchedAt"`
	Name                 string       `json:"name"`
	Type                 AlbumType    `json:"albumType"`
	MarketsRowID         MarketsRowID `json:"availableMarketsRowid"`
	UPC                  *string      `json:"upc,omitempty"`
	CopyrightC           *string      `json:"copyrightC,omitempty"`
	CopyrightP           *string      `json:"copyrightP,omitempty"`
	Label                string       `json:"label"`
	Popularity           int          `json:"popularity"`
	ReleaseDate          string       `json:"releaseDate"`
	ReleaseDatePrecision string       `json:"releaseDatePrecision"`
	TotalTracks          int          `json:"totalTracks"`
	AMGID                *string      `json:"amgid,omitempty"`
}

// MarketsRowID references a row of available_markets.
type MarketsRowID int64

// UnavailableMarkets is the reserved available_markets rowid meaning the
// release is not sold anywhere.
const UnavailableMarkets MarketsRowID = 1

// AvailableMarkets is a comma-joined set of two-letter market codes.
type AvailableMarkets struct {
	RowID   MarketsRowID `json:"rowid"`
	Markets string       `json:"availableMarkets"`
}
