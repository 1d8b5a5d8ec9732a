package models

// AudioFeature is a row of track_audio_features, keyed by the external track
// id. The upstream service either answered with descriptors or with an
// empty (null) response; Descriptors is nil exactly in the latter case.
type AudioFeature struct {
	RowID       int64             `json:"rowid"`
	TrackID     string            `json:"trackId"`
	FetchedAt   int64             `json:"fetchedAt"`
	Descriptors *AudioDescriptors `json:"descriptors,omitempty"`
}

// Populated reports whether the row carries descriptors.
func (f *AudioFeature) Populated() bool {
	return f != nil && f.Descriptors != nil
}

// AudioDescriptors holds the numeric analysis of a track. The ratio fields
// are in [0, 1].
type AudioDescriptors struct {
	DurationMs       int64   `json:"durationMs"`
	TimeSignature    int     `json:"timeSignature"`
	Tempo            float64 `json:"tempo"`
	Key              int     `json:"key"`
	Mode             int     `json:"mode"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Loudness         float64 `json:"loudness"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Valence          float64 `json:"valence"`
}
