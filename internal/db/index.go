package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/fbuddy/rag/internal/vectorindex"
)

// VectorIndex is a vectorindex.Index backed by one table. Scores are cosine
// similarity computed as 1 - cosine distance.
type VectorIndex struct {
	db        *DB
	table     string
	dimension int
}

// NewVectorIndex binds an index name to a table.
func NewVectorIndex(db *DB, name string, dimension int) (*VectorIndex, error) {
	if name == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dimension)
	}
	return &VectorIndex{db: db, table: name, dimension: dimension}, nil
}

// SupportsVisibility reports that Query applies Filter.Visibility in SQL.
func (idx *VectorIndex) SupportsVisibility() bool {
	return true
}

const upsertSQL = `INSERT INTO %s (id, text, source, uploaded_at, user_id, embedding)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		text = EXCLUDED.text,
		source = EXCLUDED.source,
		uploaded_at = EXCLUDED.uploaded_at,
		user_id = EXCLUDED.user_id,
		embedding = EXCLUDED.embedding`

// Upsert writes records in one batch.
func (idx *VectorIndex) Upsert(ctx context.Context, records []vectorindex.Record) error {
	if len(records) == 0 {
		return nil
	}

	stmt := fmt.Sprintf(upsertSQL, pgx.Identifier{idx.table}.Sanitize())
	batch := &pgx.Batch{}
	for _, r := range records {
		if len(r.Vector) != idx.dimension {
			return fmt.Errorf("%w: record %s has %d, index has %d", vectorindex.ErrDimensionMismatch, r.ID, len(r.Vector), idx.dimension)
		}
		uploadedAt := r.UploadedAt
		if uploadedAt.IsZero() {
			uploadedAt = time.Now().UTC()
		}
		batch.Queue(stmt, r.ID, r.Text, r.Source, uploadedAt, nullable(r.UserID), pgvector.NewVector(r.Vector))
	}

	br := idx.db.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert record %d: %w", i, err)
		}
	}
	return nil
}

// Query runs a nearest-neighbour search with metadata filters applied in SQL.
func (idx *VectorIndex) Query(ctx context.Context, q vectorindex.Query) ([]vectorindex.Match, error) {
	if len(q.Vector) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", vectorindex.ErrDimensionMismatch, len(q.Vector), idx.dimension)
	}
	if q.TopK <= 0 {
		return nil, nil
	}

	sql, args := buildSearch(idx.table, q)

	ef := efSearch(q)
	if ef == 0 {
		return runSearch(ctx, idx.db.pool, sql, args)
	}

	// Filters are applied after the HNSW scan, so widen the candidate list
	// for this transaction only.
	tx, err := idx.db.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin search: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", ef)); err != nil {
		return nil, fmt.Errorf("failed to set ef_search: %w", err)
	}
	return runSearch(ctx, tx, sql, args)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func runSearch(ctx context.Context, db querier, sql string, args []any) ([]vectorindex.Match, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var matches []vectorindex.Match
	for rows.Next() {
		var (
			m      vectorindex.Match
			userID *string
		)
		if err := rows.Scan(&m.ID, &m.Text, &m.Source, &m.UploadedAt, &userID, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if userID != nil {
			m.UserID = *userID
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

const (
	defaultEfSearch    = 40
	maxEfSearch        = 1000
	filteredScanFactor = 20
)

// efSearch returns the hnsw.ef_search to use for q, or 0 to keep the
// server default. Unfiltered queries need no more than the default.
func efSearch(q vectorindex.Query) int {
	if q.Filter.Source == "" && q.Filter.Visibility == nil {
		return 0
	}
	return min(max(q.TopK*filteredScanFactor, defaultEfSearch), maxEfSearch)
}

// Stats counts stored vectors.
func (idx *VectorIndex) Stats(ctx context.Context) (vectorindex.Stats, error) {
	var count int64
	err := idx.db.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s`, pgx.Identifier{idx.table}.Sanitize()),
	).Scan(&count)
	if err != nil {
		return vectorindex.Stats{}, fmt.Errorf("failed to count vectors: %w", err)
	}
	return vectorindex.Stats{TotalVectorCount: count, Dimension: idx.dimension}, nil
}

func buildSearch(table string, q vectorindex.Query) (string, []any) {
	args := []any{pgvector.NewVector(q.Vector)}
	var where []string

	if q.Filter.Source != "" {
		args = append(args, q.Filter.Source)
		where = append(where, fmt.Sprintf("source = $%d", len(args)))
	}
	if v := q.Filter.Visibility; v != nil {
		if v.UserID == "" {
			where = append(where, "user_id IS NULL")
		} else {
			args = append(args, v.UserID)
			where = append(where, fmt.Sprintf("(user_id IS NULL OR user_id = $%d)", len(args)))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT id, text, source, uploaded_at, user_id, 1 - (embedding <=> $1) AS score FROM %s",
		pgx.Identifier{table}.Sanitize())
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, q.TopK)
	fmt.Fprintf(&b, " ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	return b.String(), args
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
