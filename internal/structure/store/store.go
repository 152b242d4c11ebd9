package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/sjando/jolecule/pkg/metrics"
	"github.com/sjando/jolecule/pkg/postgres"
)

const (
	selectChunks = `
SELECT chunk_index, chunk_count, content
FROM structure_chunks
WHERE structure_id = $1
ORDER BY chunk_index ASC, created_at ASC, id ASC`

	insertChunk = `
INSERT INTO structure_chunks (structure_id, chunk_index, chunk_count, content)
VALUES ($1, $2, $3, $4)`
)

// Store reads and writes artifact chunks in PostgreSQL.
//
// It requires a `structure_chunks` table:
//
//	CREATE TABLE structure_chunks (
//	    id           BIGSERIAL PRIMARY KEY,
//	    structure_id TEXT NOT NULL,
//	    chunk_index  INT NOT NULL,
//	    chunk_count  INT NOT NULL,
//	    content      TEXT NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//	CREATE INDEX structure_chunks_structure_id_idx
//	    ON structure_chunks (structure_id, chunk_index);
type Store struct {
	db        *postgres.Client
	blockSize int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a chunk store. The metrics argument may be nil.
func New(db *postgres.Client, blockSize int, m *metrics.Metrics) *Store {
	return &Store{
		db:        db,
		blockSize: blockSize,
		metrics:   m,
		logger:    slog.Default().With("component", "chunk-store"),
	}
}

// Read fetches and reassembles the artifact for a structure id. A structure
// with no stored chunks reports a miss, not an error.
func (s *Store) Read(ctx context.Context, structureID string) (string, bool, error) {
	rows, err := s.db.DB.QueryContext(ctx, selectChunks, structureID)
	if err != nil {
		return "", false, fmt.Errorf("querying chunks for %s: %w", structureID, err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.Index, &c.Count, &c.Content); err != nil {
			return "", false, fmt.Errorf("scanning chunk row: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return "", false, fmt.Errorf("iterating chunk rows: %w", err)
	}
	if len(chunks) == 0 {
		return "", false, nil
	}

	text, err := Assemble(chunks, s.blockSize)
	if err != nil {
		return "", false, fmt.Errorf("reassembling %s: %w", structureID, err)
	}
	return text, true, nil
}

// Write splits the artifact and persists all chunks in one transaction,
// index ascending. It returns the number of chunks written.
func (s *Store) Write(ctx context.Context, structureID, text string) (int, error) {
	chunks := Split(text, s.blockSize)
	if len(chunks) == 0 {
		return 0, nil
	}
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, c := range chunks {
			if _, err := tx.ExecContext(ctx, insertChunk, structureID, c.Index, c.Count, c.Content); err != nil {
				return fmt.Errorf("inserting chunk %d: %w", c.Index, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("writing %d chunks for %s: %w", len(chunks), structureID, err)
	}
	if s.metrics != nil {
		s.metrics.ChunksWrittenTotal.Add(float64(len(chunks)))
	}
	s.logger.Debug("artifact stored",
		"structure_id", structureID,
		"chunks", len(chunks),
		"bytes", len(text),
	)
	return len(chunks), nil
}
