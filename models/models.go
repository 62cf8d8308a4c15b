package models

import "time"

// Beat is one catalog entry: an uploaded recording and its fingerprint.
type Beat struct {
	BeatID      string    `json:"beat_id" bson:"_id"`
	Filename    string    `json:"filename" bson:"filename"`
	OwnerID     string    `json:"owner_id" bson:"owner_id"`
	DurationS   float64   `json:"duration_s" bson:"duration_s"`
	SampleRate  int       `json:"sample_rate" bson:"sample_rate"`
	Vector      []float64 `json:"vector" bson:"vector"`
	BPM         *int      `json:"bpm,omitempty" bson:"bpm,omitempty"`
	Key         *string   `json:"key,omitempty" bson:"key,omitempty"`
	ContentHash string    `json:"content_hash,omitempty" bson:"content_hash,omitempty"`
	StoredPath  string    `json:"stored_path,omitempty" bson:"stored_path,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// BeatSummary is the listing view of a Beat, without the vector.
type BeatSummary struct {
	BeatID    string  `json:"beat_id"`
	Filename  string  `json:"filename"`
	OwnerID   string  `json:"owner_id"`
	DurationS float64 `json:"duration_s"`
	BPM       *int    `json:"bpm,omitempty"`
	Key       *string `json:"key,omitempty"`
}

func (b Beat) Summary() BeatSummary {
	return BeatSummary{
		BeatID:    b.BeatID,
		Filename:  b.Filename,
		OwnerID:   b.OwnerID,
		DurationS: b.DurationS,
		BPM:       b.BPM,
		Key:       b.Key,
	}
}

// Match is one ranked search result. Score is rounded for display.
type Match struct {
	BeatID    string  `json:"beat_id"`
	Filename  string  `json:"filename"`
	OwnerID   string  `json:"owner_id"`
	DurationS float64 `json:"duration_s"`
	Score     float64 `json:"score"`
	BPM       *int    `json:"bpm,omitempty"`
	Key       *string `json:"key,omitempty"`
}

// RecordData is the socket.io search payload. Audio is a base64 encoded
// container (wav, webm, ogg, ...).
type RecordData struct {
	OwnerID  string `json:"owner_id"`
	TopK     int    `json:"top_k"`
	Audio    string `json:"audio"`
	Filename string `json:"filename,omitempty"`
}
