package db

import (
	"context"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fbuddy/rag/internal/vectorindex"
)

func TestBuildSearch(t *testing.T) {
	vec := []float32{0.1, 0.2}

	tests := []struct {
		name     string
		filter   vectorindex.Filter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "no filter",
			wantSQL:  `SELECT id, text, source, uploaded_at, user_id, 1 - (embedding <=> $1) AS score FROM "rag1" ORDER BY embedding <=> $1 LIMIT $2`,
			wantArgs: []any{pgvector.NewVector(vec), 7},
		},
		{
			name:     "source",
			filter:   vectorindex.Filter{Source: "context.pdf"},
			wantSQL:  `SELECT id, text, source, uploaded_at, user_id, 1 - (embedding <=> $1) AS score FROM "rag1" WHERE source = $2 ORDER BY embedding <=> $1 LIMIT $3`,
			wantArgs: []any{pgvector.NewVector(vec), "context.pdf", 7},
		},
		{
			name:     "user visibility",
			filter:   vectorindex.Filter{Visibility: &vectorindex.Visibility{UserID: "u1"}},
			wantSQL:  `SELECT id, text, source, uploaded_at, user_id, 1 - (embedding <=> $1) AS score FROM "rag1" WHERE (user_id IS NULL OR user_id = $2) ORDER BY embedding <=> $1 LIMIT $3`,
			wantArgs: []any{pgvector.NewVector(vec), "u1", 7},
		},
		{
			name:     "anonymous visibility",
			filter:   vectorindex.Filter{Visibility: &vectorindex.Visibility{}},
			wantSQL:  `SELECT id, text, source, uploaded_at, user_id, 1 - (embedding <=> $1) AS score FROM "rag1" WHERE user_id IS NULL ORDER BY embedding <=> $1 LIMIT $2`,
			wantArgs: []any{pgvector.NewVector(vec), 7},
		},
		{
			name:     "source and user",
			filter:   vectorindex.Filter{Source: "a.pdf", Visibility: &vectorindex.Visibility{UserID: "u1"}},
			wantSQL:  `SELECT id, text, source, uploaded_at, user_id, 1 - (embedding <=> $1) AS score FROM "rag1" WHERE source = $2 AND (user_id IS NULL OR user_id = $3) ORDER BY embedding <=> $1 LIMIT $4`,
			wantArgs: []any{pgvector.NewVector(vec), "a.pdf", "u1", 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := buildSearch("rag1", vectorindex.Query{Vector: vec, TopK: 7, Filter: tt.filter})
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestEfSearch(t *testing.T) {
	user := &vectorindex.Visibility{UserID: "u1"}

	tests := []struct {
		name string
		q    vectorindex.Query
		want int
	}{
		{"unfiltered keeps default", vectorindex.Query{TopK: 7}, 0},
		{"visibility widens scan", vectorindex.Query{TopK: 7, Filter: vectorindex.Filter{Visibility: user}}, 140},
		{"source widens scan", vectorindex.Query{TopK: 5, Filter: vectorindex.Filter{Source: "a.pdf"}}, 100},
		{"small k floors at default", vectorindex.Query{TopK: 1, Filter: vectorindex.Filter{Visibility: user}}, 40},
		{"large k capped", vectorindex.Query{TopK: 500, Filter: vectorindex.Filter{Visibility: user}}, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, efSearch(tt.q))
		})
	}
}

func TestMigrationStatements(t *testing.T) {
	stmts := migrationStatements(`odd"name`, 768)
	require.Len(t, stmts, 5)

	assert.Equal(t, "CREATE EXTENSION IF NOT EXISTS vector", stmts[0])
	assert.Contains(t, stmts[1], `CREATE TABLE IF NOT EXISTS "odd""name"`)
	assert.Contains(t, stmts[1], "vector(768)")
	assert.Contains(t, stmts[2], `"odd""name_embedding_idx"`)
	assert.Contains(t, stmts[2], "hnsw (embedding vector_cosine_ops)")
	assert.Contains(t, stmts[3], "(user_id)")
	assert.Contains(t, stmts[4], "(source)")
}

func TestNewVectorIndexValidation(t *testing.T) {
	_, err := NewVectorIndex(nil, "", 768)
	assert.Error(t, err)

	_, err = NewVectorIndex(nil, "rag1", 0)
	assert.Error(t, err)

	idx, err := NewVectorIndex(nil, "rag1", 3)
	require.NoError(t, err)
	assert.True(t, vectorindex.SupportsVisibility(idx))
}

func TestVectorIndexRejectsWrongDimension(t *testing.T) {
	idx, err := NewVectorIndex(nil, "rag1", 3)
	require.NoError(t, err)

	_, err = idx.Query(context.Background(), vectorindex.Query{Vector: []float32{1}, TopK: 1})
	assert.ErrorIs(t, err, vectorindex.ErrDimensionMismatch)

	err = idx.Upsert(context.Background(), []vectorindex.Record{{ID: "a", Vector: []float32{1}}})
	assert.ErrorIs(t, err, vectorindex.ErrDimensionMismatch)

	assert.NoError(t, idx.Upsert(context.Background(), nil))
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	require.NotNil(t, nullable("u1"))
	assert.Equal(t, "u1", *nullable("u1"))
}
