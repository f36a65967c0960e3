package rag_service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/serisow/parchemin/rag_type"
)

// DefaultMaxFileSize bounds uploads at 50MB.
const DefaultMaxFileSize = 50 * 1024 * 1024

// Ingestor runs the per-document pipeline: validate, hash-check, extract,
// chunk, embed, persist. Any stage failure yields an IngestResult carrying
// the error; chunks are never persisted without their embeddings attached in
// the same transactional write.
type Ingestor struct {
	storage     Storage
	embedder    Embedder
	chunker     *Chunker
	extractors  map[string]Extractor
	maxFileSize int64
	logger      *slog.Logger
}

func NewIngestor(storage Storage, embedder Embedder, chunker *Chunker, maxFileSize int64, logger *slog.Logger) *Ingestor {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Ingestor{
		storage:  storage,
		embedder: embedder,
		chunker:  chunker,
		extractors: map[string]Extractor{
			".pdf":  NewPDFExtractor(logger),
			".doc":  NewWordExtractor(logger),
			".docx": NewWordExtractor(logger),
		},
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// RegisterExtractor overrides the extraction backend for an extension. The
// registry is fixed at configuration time; per-call dispatch only consults it.
func (ing *Ingestor) RegisterExtractor(ext string, extractor Extractor) {
	ing.extractors[strings.ToLower(ext)] = extractor
}

// WithStorage returns a copy of the Ingestor bound to another storage
// session. Batch workers use it to run the same pipeline over their own
// exclusive connection.
func (ing *Ingestor) WithStorage(storage Storage) *Ingestor {
	clone := *ing
	clone.storage = storage
	return &clone
}

// Ingest processes one file. The returned error, when non-nil, is also
// recorded as the result's Error message; duplicates are a recognized
// outcome, not an error.
func (ing *Ingestor) Ingest(ctx context.Context, file rag_type.IngestFile) (rag_type.IngestResult, error) {
	start := time.Now()

	if err := ing.validate(file); err != nil {
		return failedResult(err), err
	}

	fileHash := ComputeFileHash(file.Data)

	existing, err := ing.storage.FindDocumentByHash(ctx, fileHash)
	if err != nil {
		err = &StorageError{Op: "dedup lookup", Err: err}
		return failedResult(err), err
	}
	if existing != nil {
		ing.logger.Info("Document already exists",
			slog.String("filename", file.Filename),
			slog.String("document_id", existing.ID.String()),
			slog.String("file_hash", fileHash))
		return rag_type.IngestResult{Document: existing, WasDuplicate: true}, nil
	}

	doc := rag_type.Document{
		ID:       uuid.New(),
		FileHash: fileHash,
		Filename: file.Filename,
		Metadata: file.Metadata,
		Status:   rag_type.StatusProcessing,
		FileSize: int64(len(file.Data)),
	}

	extractor := ing.extractors[strings.ToLower(filepath.Ext(file.Filename))]
	parsed, err := extractor.Extract(file.Filename, file.Data)
	if err != nil {
		doc.Status = rag_type.StatusError
		return failedResult(err), err
	}

	chunks := ing.chunker.ChunkParsedDocument(parsed)

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, chunk := range chunks {
			texts[i] = chunk.Content
		}

		vectors, err := ing.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			doc.Status = rag_type.StatusError
			return failedResult(err), err
		}
		if len(vectors) != len(chunks) {
			doc.Status = rag_type.StatusError
			err = &EmbeddingError{Err: fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(vectors))}
			return failedResult(err), err
		}
		// Attach by tracked index; list order across the provider call is
		// already verified inside the embedder.
		for i := range chunks {
			chunks[i].Embedding = vectors[i]
			chunks[i].DocumentID = doc.ID
		}
	}

	doc.Status = rag_type.StatusProcessed
	if err := ing.storage.InsertDocumentWithChunks(ctx, &doc, chunks); err != nil {
		doc.Status = rag_type.StatusError
		err = &StorageError{Op: "insert document with chunks", Err: err}
		return failedResult(err), err
	}

	ing.logger.Info("Document ingested",
		slog.String("document_id", doc.ID.String()),
		slog.String("filename", file.Filename),
		slog.Int("chunks_count", len(chunks)),
		slog.Duration("duration", time.Since(start)))

	return rag_type.IngestResult{Document: &doc, ChunksCount: len(chunks)}, nil
}

func (ing *Ingestor) validate(file rag_type.IngestFile) error {
	base := filepath.Base(file.Filename)
	if base != file.Filename || strings.Contains(file.Filename, "..") || file.Filename == "" {
		return &ValidationError{Reason: fmt.Sprintf("invalid filename %q", file.Filename)}
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if _, ok := ing.extractors[ext]; !ok {
		return &ValidationError{Reason: fmt.Sprintf("unsupported file type: %s", ext)}
	}

	if len(file.Data) == 0 {
		return &ValidationError{Reason: "empty file"}
	}
	if int64(len(file.Data)) > ing.maxFileSize {
		return &ValidationError{Reason: fmt.Sprintf("file exceeds maximum size of %d bytes", ing.maxFileSize)}
	}

	if ext == ".pdf" && (len(file.Data) < 5 || string(file.Data[:5]) != "%PDF-") {
		return &ValidationError{Reason: "file does not have a valid PDF header"}
	}
	return nil
}

func failedResult(err error) rag_type.IngestResult {
	return rag_type.IngestResult{Error: err.Error()}
}
