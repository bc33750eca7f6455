package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// migrationStatements returns the DDL for one index table. Every statement is
// idempotent.
func migrationStatements(table string, dimension int) []string {
	ident := pgx.Identifier{table}.Sanitize()
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          text PRIMARY KEY,
			text        text NOT NULL,
			source      text NOT NULL,
			uploaded_at timestamptz NOT NULL DEFAULT now(),
			user_id     text,
			embedding   vector(%d) NOT NULL
		)`, ident, dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pgx.Identifier{table + "_embedding_idx"}.Sanitize(), ident),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (user_id)`,
			pgx.Identifier{table + "_user_id_idx"}.Sanitize(), ident),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (source)`,
			pgx.Identifier{table + "_source_idx"}.Sanitize(), ident),
	}
}

// Migrate creates the pgvector extension, the index table and its indexes.
func (idx *VectorIndex) Migrate(ctx context.Context) error {
	for _, stmt := range migrationStatements(idx.table, idx.dimension) {
		if _, err := idx.db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
