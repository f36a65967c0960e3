package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Schema for the ingestion store. Documents own chunks; deleting a document
// cascades to its chunks. Chunk positions are unique and gapless per
// document, enforced here for uniqueness and by the chunker for gaplessness.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		file_hash TEXT NOT NULL UNIQUE,
		filename TEXT NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'processing',
		file_size BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS chunks (
		id UUID PRIMARY KEY,
		document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		chunk_type TEXT,
		page_number INT,
		position INT NOT NULL,
		bbox DOUBLE PRECISION[],
		embedding vector(1536),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (document_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks (document_id)`,
}

// Connect opens a pgx pool against databaseURL, retrying while the database
// comes up, and registers the pgvector type codecs on every connection.
func Connect(databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse DATABASE_URL: %w", err)
	}
	// Type registration needs the vector extension in place, so it is
	// created over a bare connection before the pool opens.
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	maxRetries := 10
	retryDelay := time.Second * 10

	for i := 0; i < maxRetries; i++ {
		err = ensureVectorExtension(context.Background(), databaseURL)
		if err == nil {
			break
		}

		log.Printf("Failed to connect to the database (attempt %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database after %d attempts: %w", maxRetries, err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping the database: %w", err)
	}

	log.Println("Successfully connected to the database")
	return pool, nil
}

func ensureVectorExtension(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("unable to create vector extension: %w", err)
	}
	return nil
}

// Migrate applies the schema. The vector extension has to exist before the
// chunks table, so statements run in order.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
