package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is a brute-force in-memory index scored by cosine similarity. It
// honours Filter.Source but not Filter.Visibility, so callers filter
// ownership themselves.
type Memory struct {
	mu        sync.RWMutex
	dimension int
	records   []Record
	byID      map[string]int
}

// NewMemory creates an empty index for vectors of the given dimension.
func NewMemory(dimension int) (*Memory, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dimension)
	}
	return &Memory{dimension: dimension, byID: make(map[string]int)}, nil
}

// Upsert inserts records, replacing any with the same ID.
func (m *Memory) Upsert(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, r := range records {
		if len(r.Vector) != m.dimension {
			return fmt.Errorf("%w: record %s has %d, index has %d", ErrDimensionMismatch, r.ID, len(r.Vector), m.dimension)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		r.Vector = append([]float32(nil), r.Vector...)
		if i, ok := m.byID[r.ID]; ok {
			m.records[i] = r
			continue
		}
		m.byID[r.ID] = len(m.records)
		m.records = append(m.records, r)
	}
	return nil
}

// Query returns up to TopK matches ordered by descending score. Ties keep
// insertion order.
func (m *Memory) Query(ctx context.Context, q Query) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(q.Vector) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(q.Vector), m.dimension)
	}
	if q.TopK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0, len(m.records))
	for _, r := range m.records {
		if q.Filter.Source != "" && r.Source != q.Filter.Source {
			continue
		}
		matches = append(matches, Match{
			ID:         r.ID,
			Score:      cosine(q.Vector, r.Vector),
			Text:       r.Text,
			Source:     r.Source,
			UploadedAt: r.UploadedAt,
			UserID:     r.UserID,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > q.TopK {
		matches = matches[:q.TopK]
	}
	return matches, nil
}

// Stats reports the record count and dimension.
func (m *Memory) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{TotalVectorCount: int64(len(m.records)), Dimension: m.dimension}, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
