package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/fbuddy/rag/internal/embeddings"
	"github.com/fbuddy/rag/internal/logger"
	"github.com/fbuddy/rag/internal/vectorindex"
)

var (
	// ErrEmbedding wraps query embedding failures.
	ErrEmbedding = errors.New("failed to embed query")
	// ErrSearch wraps vector index failures.
	ErrSearch = errors.New("failed to search index")
)

// RetrieverOptions tunes candidate fetching and filtering.
type RetrieverOptions struct {
	TopK            int
	ScoreThreshold  float64
	ContextCap      int
	OverfetchFactor int
	MaxSources      int
}

// DefaultRetrieverOptions returns the production defaults.
func DefaultRetrieverOptions() RetrieverOptions {
	return RetrieverOptions{
		TopK:            7,
		ScoreThreshold:  0.25,
		ContextCap:      7,
		OverfetchFactor: 3,
		MaxSources:      7,
	}
}

// Retrieval is the filtered context for one question.
type Retrieval struct {
	Texts   []string
	Sources []string
}

// Retriever handles RAG retrieval using vector similarity search
type Retriever struct {
	index    vectorindex.Index
	embedder embeddings.Embedder
	opts     RetrieverOptions
}

// NewRetriever creates a new RAG retriever. Non-positive counts take their
// defaults; MaxSources defaults to ContextCap.
func NewRetriever(index vectorindex.Index, embedder embeddings.Embedder, opts RetrieverOptions) *Retriever {
	def := DefaultRetrieverOptions()
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.ContextCap <= 0 {
		opts.ContextCap = def.ContextCap
	}
	if opts.OverfetchFactor <= 0 {
		opts.OverfetchFactor = def.OverfetchFactor
	}
	if opts.MaxSources <= 0 {
		opts.MaxSources = opts.ContextCap
	}
	return &Retriever{index: index, embedder: embedder, opts: opts}
}

// Retrieve embeds the query, searches the index and keeps only candidates the
// user may see. Anonymous callers see global chunks only.
func (r *Retriever) Retrieve(ctx context.Context, query, userID string) (*Retrieval, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	q := r.buildQuery(vec, userID)
	logger.Debug("Searching top %d candidates (user=%q)", q.TopK, userID)

	matches, err := r.index.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearch, err)
	}

	visible := filterVisible(matches, userID, r.opts.ScoreThreshold)
	logger.Debug("Kept %d of %d candidates", len(visible), len(matches))

	result := &Retrieval{}
	seen := make(map[string]bool)
	for _, m := range visible {
		result.Texts = append(result.Texts, m.Text)
		if !seen[m.Source] && len(result.Sources) < r.opts.MaxSources {
			seen[m.Source] = true
			result.Sources = append(result.Sources, m.Source)
		}
	}
	if len(result.Texts) > r.opts.ContextCap {
		result.Texts = result.Texts[:r.opts.ContextCap]
	}

	return result, nil
}

// buildQuery pushes visibility into indexes that support it. Otherwise a
// signed-in user gets a wider candidate window to make up for the chunks the
// in-memory filter will drop.
func (r *Retriever) buildQuery(vec []float32, userID string) vectorindex.Query {
	q := vectorindex.Query{Vector: vec, TopK: r.opts.TopK}
	if vectorindex.SupportsVisibility(r.index) {
		q.Filter.Visibility = &vectorindex.Visibility{UserID: userID}
		return q
	}
	if userID != "" {
		q.TopK = r.opts.TopK * r.opts.OverfetchFactor
	}
	return q
}

// filterVisible keeps matches at or above threshold that are global or owned
// by userID, preserving rank order.
func filterVisible(matches []vectorindex.Match, userID string, threshold float64) []vectorindex.Match {
	var kept []vectorindex.Match
	for _, m := range matches {
		if m.Score < threshold {
			continue
		}
		if m.UserID != "" && m.UserID != userID {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}
