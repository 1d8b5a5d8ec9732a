package models

// ArtistRowID is the store-assigned identity of an artists row.
type ArtistRowID int64

// Artist represents one row of the artists table
type Artist struct {
	RowID      ArtistRowID `json:"rowid"`
	ID         string      `json:"id"`        // external service id
	FetchedAt  int64       `json:"fetchedAt"` // unix milliseconds
	Name       string      `json:"name"`
	Followers  int64       `json:"followers"`
	Popularity int         `json:"popularity"`
}

// Image is a sized artwork reference shared by artist_images and album_images.
type Image struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URL    string `json:"url"`
}

// ArtistAlbum is one row of the artist_albums association table. The same
// (artist, album) pair may occur several times.
type ArtistAlbum struct {
	ArtistRowID         ArtistRowID `json:"artistRowid"`
	AlbumRowID          AlbumRowID  `json:"albumRowid"`
	IsAppearsOn         bool        `json:"isAppearsOn"`
	IsImplicitAppearsOn bool        `json:"isImplicitAppearsOn"`
	IndexInAlbum        *int        `json:"indexInAlbum,omitempty"`
}
