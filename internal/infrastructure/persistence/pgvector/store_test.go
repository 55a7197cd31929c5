package pgvector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-qa-api/internal/application/retrieval"
	"doc-qa-api/internal/config"
	"doc-qa-api/pkg/errors"
)

func TestNewStore_RejectsUnsafeTableName(t *testing.T) {
	_, err := NewStore(&Client{}, "segments; DROP TABLE x", 8)
	assert.ErrorIs(t, err, errors.ErrConfiguration)

	_, err = NewStore(&Client{}, "segments", 0)
	assert.ErrorIs(t, err, errors.ErrConfiguration)

	s, err := NewStore(&Client{}, "", 8)
	require.NoError(t, err)
	assert.Equal(t, DefaultTable, s.table)
}

func TestSchemaStatements_UseDimensionAndCosineIndex(t *testing.T) {
	s, err := NewStore(&Client{}, "segs", 384)
	require.NoError(t, err)

	stmts := s.schemaStatements()
	require.Len(t, stmts, 4)
	assert.Contains(t, stmts[1], "vector(384)")
	assert.Contains(t, stmts[2], "vector_cosine_ops")
}

func TestCheckColumnDimension(t *testing.T) {
	tests := []struct {
		name    string
		typmod  int
		wantErr bool
	}{
		{"matches", 768, false},
		{"unconstrained column", -1, false},
		{"existing table built for another model", 1024, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkColumnDimension("segs", tt.typmod, 768)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, errors.ErrConfiguration)
			assert.Contains(t, errors.AsAppError(err).Detail, "1024")
		})
	}
}

func TestSchemaStatements_IndexesFollowTable(t *testing.T) {
	s, err := NewStore(&Client{}, "segs", 384)
	require.NoError(t, err)

	stmts := s.schemaStatements()
	assert.Contains(t, stmts[indexStatementsFrom-1], "CREATE TABLE")
	for _, stmt := range stmts[indexStatementsFrom:] {
		assert.Contains(t, stmt, "CREATE INDEX")
	}
}

func TestRowConversion(t *testing.T) {
	entry := retrieval.IndexEntry{
		ID:     "a.txt-1-0",
		Text:   "hello",
		Vector: []float32{1, 0, 0},
		Meta:   retrieval.SegmentMeta{Source: "a.txt", ChunkIndex: 0, TotalChunks: 1, NumPages: 0, Timestamp: 1},
	}
	row := toRow(entry)
	assert.Equal(t, []float32{1, 0, 0}, row.Embedding.Slice())

	got := fromRow(scoredRow{segmentRow: row, Score: 0.5})
	assert.Equal(t, entry.Meta, got.Meta)
	assert.Equal(t, entry.Text, got.Text)
	assert.InDelta(t, 0.5, got.Score, 1e-9)
}

func TestStore_DimensionMismatchFailsBeforeDatabase(t *testing.T) {
	s, err := NewStore(&Client{}, "segs", 3)
	require.NoError(t, err)

	err = s.Add(context.Background(), []retrieval.IndexEntry{{ID: "x", Vector: []float32{1}}})
	assert.ErrorIs(t, err, errors.ErrConfiguration)

	_, err = s.Query(context.Background(), []float32{1}, 2)
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestDSN(t *testing.T) {
	dsn := DSN(&config.PGVectorConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "qa"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=qa sslmode=disable", dsn)
}
