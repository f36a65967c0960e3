package rag_service

import (
	"context"

	"github.com/google/uuid"

	"github.com/serisow/parchemin/rag_type"
)

// Storage is the persistent-store collaborator consumed by the ingestion and
// retrieval pipelines. All multi-row writes are atomic: InsertDocumentWithChunks
// commits the document and its chunks as one transaction or not at all.
type Storage interface {
	// FindDocumentByHash returns the document owning the fingerprint, or nil
	// when no such document exists. A lookup failure is an error, never "new".
	FindDocumentByHash(ctx context.Context, fileHash string) (*rag_type.Document, error)
	// InsertDocumentWithChunks persists the document and all its chunks in a
	// single transaction, filling generated IDs and timestamps in place.
	InsertDocumentWithChunks(ctx context.Context, doc *rag_type.Document, chunks []rag_type.Chunk) error
	// SimilaritySearch returns up to topK chunks ranked by cosine similarity,
	// dropping results below scoreThreshold when one is given.
	SimilaritySearch(ctx context.Context, embedding []float32, topK int, scoreThreshold *float64) ([]rag_type.SearchResult, error)
	ListDocuments(ctx context.Context) ([]rag_type.Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) (bool, error)
}

// StorageSession is a Storage bound to one exclusive connection. Sessions
// are never shared across concurrent workers.
type StorageSession interface {
	Storage
	Release()
}

// SessionStorage hands out exclusive per-worker sessions on top of shared
// pool-backed access.
type SessionStorage interface {
	Storage
	AcquireSession(ctx context.Context) (StorageSession, error)
}

// Embedder is the embedding collaborator: one fixed-dimension vector per
// input text, same length and order as the input.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
