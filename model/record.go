package model

import "time"

// VectorRecord is a vector indexed payload (a document chunk or a query
// history record). Records are immutable once written and deleted only by
// a bulk corpus reset.
type VectorRecord struct {
	ID         string    `json:"id"`
	Embedding  []float32 `json:"embedding,omitempty"`
	SourceText string    `json:"source_text"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// VectorHit is a record returned by nearest neighbor search with its
// cosine similarity in [0,1].
type VectorHit struct {
	Record     *VectorRecord `json:"record"`
	Similarity float64       `json:"similarity"`
}
