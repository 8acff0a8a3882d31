package models

import "time"

// EmbeddingDimensions is the fixed dimensionality of transcript vectors.
// It matches the embedding API's output; switching providers is a data
// migration, not a schema change.
const EmbeddingDimensions = 1536

// EmbeddingRecord is the stored vector for one content item's transcript,
// 1:1 with the item via ItemID. It keeps the transcript snapshot the vector
// was built from so staleness against the live transcript is detectable.
type EmbeddingRecord struct {
	ID         int64     `json:"id"`
	ItemID     int64     `json:"item_id"`
	Transcript string    `json:"transcript"`
	Vector     []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Stale reports whether the stored snapshot differs from the live transcript.
func (r *EmbeddingRecord) Stale(liveTranscript string) bool {
	return r.Transcript != liveTranscript
}
