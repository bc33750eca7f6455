// Package vectorindex defines the vector store contract used by the ingestion
// and query pipelines, plus an in-memory implementation.
package vectorindex

import (
	"context"
	"errors"
	"time"
)

// ErrDimensionMismatch is returned when a vector does not match the index
// dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Record is one stored chunk. An empty UserID marks a global chunk visible to
// everyone.
type Record struct {
	ID         string
	Vector     []float32
	Text       string
	Source     string
	UploadedAt time.Time
	UserID     string
}

// Match is a search hit. Score is cosine similarity; higher is closer.
type Match struct {
	ID         string
	Score      float64
	Text       string
	Source     string
	UploadedAt time.Time
	UserID     string
}

// Visibility restricts results to global chunks plus those owned by UserID.
type Visibility struct {
	UserID string
}

// Filter narrows a query by metadata. Zero values mean no restriction.
type Filter struct {
	Source     string
	Visibility *Visibility
}

// Query is a nearest-neighbour search request.
type Query struct {
	Vector []float32
	TopK   int
	Filter Filter
}

// Stats describes the index.
type Stats struct {
	TotalVectorCount int64
	Dimension        int
}

// Index stores records and answers similarity queries.
type Index interface {
	Query(ctx context.Context, q Query) ([]Match, error)
	Upsert(ctx context.Context, records []Record) error
	Stats(ctx context.Context) (Stats, error)
}

// VisibilityFilterer is implemented by indexes that apply Filter.Visibility
// themselves. Indexes without it ignore the field.
type VisibilityFilterer interface {
	SupportsVisibility() bool
}

// SupportsVisibility reports whether idx applies visibility filters natively.
func SupportsVisibility(idx Index) bool {
	vf, ok := idx.(VisibilityFilterer)
	return ok && vf.SupportsVisibility()
}
