package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/serisow/parchemin/rag_type"
	"github.com/serisow/parchemin/services/rag_service"
)

const documentColumns = "id, file_hash, filename, metadata, status, file_size, created_at"

// querier covers what documents/chunks queries need from either a pool or a
// dedicated connection.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the pgvector-backed storage collaborator. Methods on Store run
// over the shared pool; AcquireSession hands out an exclusive-connection
// variant for concurrent batch workers.
type Store struct {
	queries
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{
		queries: queries{db: pool, logger: logger},
		pool:    pool,
	}
}

// AcquireSession checks one connection out of the pool for exclusive use.
// The caller must Release it regardless of outcome.
func (s *Store) AcquireSession(ctx context.Context) (rag_service.StorageSession, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &Session{
		queries: queries{db: conn, logger: s.logger},
		conn:    conn,
	}, nil
}

// Session is a Store bound to a single dedicated connection.
type Session struct {
	queries
	conn *pgxpool.Conn
}

func (s *Session) Release() {
	s.conn.Release()
}

type queries struct {
	db     querier
	logger *slog.Logger
}

// FindDocumentByHash returns the document owning the fingerprint, or nil
// when none exists.
func (q *queries) FindDocumentByHash(ctx context.Context, fileHash string) (*rag_type.Document, error) {
	row := q.db.QueryRow(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE file_hash = $1", fileHash)

	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up document by hash: %w", err)
	}
	return doc, nil
}

// InsertDocumentWithChunks writes the document and all its chunks inside one
// transaction; either the full row set commits or none of it does.
// Generated IDs and timestamps are filled into the passed values.
func (q *queries) InsertDocumentWithChunks(ctx context.Context, doc *rag_type.Document, chunks []rag_type.Chunk) error {
	tx, err := q.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = now
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO documents (id, file_hash, filename, metadata, status, file_size, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.FileHash, doc.Filename, doc.Metadata, doc.Status, doc.FileSize, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range chunks {
		chunks[i].ID = uuid.New()
		chunks[i].DocumentID = doc.ID
		chunks[i].CreatedAt = now

		var embedding any
		if chunks[i].Embedding != nil {
			embedding = pgvector.NewVector(chunks[i].Embedding)
		}
		batch.Queue(
			`INSERT INTO chunks (id, document_id, content, chunk_type, page_number, position, bbox, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			chunks[i].ID, chunks[i].DocumentID, chunks[i].Content, chunks[i].ChunkType,
			chunks[i].PageNumber, chunks[i].Position, chunks[i].BBox, embedding, chunks[i].CreatedAt)
	}

	if batch.Len() > 0 {
		results := tx.SendBatch(ctx, batch)
		for range chunks {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to insert chunk: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to close chunk batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	q.logger.Debug("Document persisted",
		slog.String("document_id", doc.ID.String()),
		slog.Int("chunks", len(chunks)))
	return nil
}

// SimilaritySearch ranks chunks by cosine similarity to the query vector.
// Ties break by chunk position, then creation time. Results below the
// threshold are excluded, never replaced by lower-ranked candidates.
func (q *queries) SimilaritySearch(ctx context.Context, embedding []float32, topK int, scoreThreshold *float64) ([]rag_type.SearchResult, error) {
	vec := pgvector.NewVector(embedding)

	sql := `SELECT c.id, c.document_id, c.content, COALESCE(c.chunk_type, ''), c.page_number,
		       c.position, c.bbox, c.created_at,
		       d.id, d.file_hash, d.filename, d.metadata, d.status, d.file_size, d.created_at,
		       1 - (c.embedding <=> $1) AS score
		FROM chunks c
		JOIN documents d ON c.document_id = d.id
		WHERE c.embedding IS NOT NULL`
	args := []any{vec, topK}
	if scoreThreshold != nil {
		sql += ` AND 1 - (c.embedding <=> $1) >= $3`
		args = append(args, *scoreThreshold)
	}
	sql += `
		ORDER BY c.embedding <=> $1 ASC, c.position ASC, c.created_at ASC
		LIMIT $2`

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var results []rag_type.SearchResult
	for rows.Next() {
		var res rag_type.SearchResult
		var doc rag_type.Document
		err := rows.Scan(
			&res.Chunk.ID, &res.Chunk.DocumentID, &res.Chunk.Content, &res.Chunk.ChunkType,
			&res.Chunk.PageNumber, &res.Chunk.Position, &res.Chunk.BBox, &res.Chunk.CreatedAt,
			&doc.ID, &doc.FileHash, &doc.Filename, &doc.Metadata, &doc.Status, &doc.FileSize, &doc.CreatedAt,
			&res.Score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		res.Document = &doc
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}
	return results, nil
}

func (q *queries) ListDocuments(ctx context.Context) ([]rag_type.Document, error) {
	rows, err := q.db.Query(ctx,
		"SELECT "+documentColumns+" FROM documents ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []rag_type.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document; its chunks go with it via the cascade.
func (q *queries) DeleteDocument(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := q.db.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanDocument(row pgx.Row) (*rag_type.Document, error) {
	var doc rag_type.Document
	err := row.Scan(&doc.ID, &doc.FileHash, &doc.Filename, &doc.Metadata,
		&doc.Status, &doc.FileSize, &doc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
