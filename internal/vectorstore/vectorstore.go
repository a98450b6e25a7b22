// Package vectorstore keeps frame embeddings in Postgres with pgvector,
// giving the task API kNN search over a task's frames and the delete cascade
// a single statement to clear them.
package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
)

// TableName is the pgvector table frames are indexed in. Recorded on the
// task's VectorMetaData so the delete cascade knows where to look.
const TableName = "frame_vectors"

// Store is a pooled Postgres connection for the frame vector index.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to vector database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping vector database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the vector table and index when missing. Safe to call
// on every cold start.
func (s *Store) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS ` + TableName + ` (
			id BIGSERIAL PRIMARY KEY,
			task_id TEXT NOT NULL,
			frame_id TEXT NOT NULL,
			frame_ts DOUBLE PRECISION NOT NULL,
			mm_embedding vector(1024),
			text_embedding vector(1024),
			embedding_text TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (task_id, frame_id)
		)`,
		`CREATE INDEX IF NOT EXISTS frame_vectors_task_idx ON ` + TableName + ` (task_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init vector schema: %w", err)
		}
	}
	return nil
}

// SaveFrame upserts a frame's vectors. Re-running a failed embedding stage
// overwrites the previous row instead of duplicating it.
func (s *Store) SaveFrame(ctx context.Context, taskID, frameID string, frameTS float64, mmEmbedding, textEmbedding []float32, embeddingText string) error {
	var mm, text interface{}
	if len(mmEmbedding) > 0 {
		mm = pgvector.NewVector(mmEmbedding)
	}
	if len(textEmbedding) > 0 {
		text = pgvector.NewVector(textEmbedding)
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+TableName+`
		 (task_id, frame_id, frame_ts, mm_embedding, text_embedding, embedding_text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (task_id, frame_id) DO UPDATE SET
		   mm_embedding = EXCLUDED.mm_embedding,
		   text_embedding = EXCLUDED.text_embedding,
		   embedding_text = EXCLUDED.embedding_text`,
		taskID, frameID, frameTS, mm, text, embeddingText, time.Now())
	if err != nil {
		return fmt.Errorf("save frame vector %s: %w", frameID, err)
	}
	return nil
}

// SearchResult is one kNN hit over a task's frames.
type SearchResult struct {
	FrameID       string
	FrameTS       float64
	EmbeddingText string
	// Similarity is 1 - cosine distance, so higher is closer.
	Similarity float64
}

// SearchFrames returns the frames of a task closest to the query vector,
// ordered by cosine distance.
func (s *Store) SearchFrames(ctx context.Context, taskID string, query []float32, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT frame_id, frame_ts, COALESCE(embedding_text, ''),
		        1 - (mm_embedding <=> $1) AS similarity
		 FROM `+TableName+`
		 WHERE task_id = $2 AND mm_embedding IS NOT NULL
		 ORDER BY mm_embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(query), taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("search frames for task %s: %w", taskID, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.FrameID, &r.FrameTS, &r.EmbeddingText, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// DeleteTask removes every vector belonging to a task. Deleting a task with
// no vectors is a no-op.
func (s *Store) DeleteTask(ctx context.Context, taskID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+TableName+` WHERE task_id = $1`, taskID)
	if err != nil {
		return 0, fmt.Errorf("delete vectors for task %s: %w", taskID, err)
	}
	deleted := tag.RowsAffected()
	if deleted > 0 {
		log.Debug().Str("taskId", taskID).Int64("rows", deleted).Msg("Frame vectors deleted")
	}
	return deleted, nil
}
