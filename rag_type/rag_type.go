package rag_type

import (
	"time"

	"github.com/google/uuid"
)

// Document lifecycle statuses. A document only ever moves forward:
// processing -> processed or processing -> error.
const (
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusError      = "error"
)

// Chunk content-type tags. Advisory metadata, never used to alter
// chunking decisions.
const (
	ChunkTypeHeading   = "heading"
	ChunkTypeParagraph = "paragraph"
	ChunkTypeList      = "list"
	ChunkTypeTable     = "table"
)

// Document is an ingested file identified by the sha256 of its raw bytes.
type Document struct {
	ID        uuid.UUID      `json:"id"`
	FileHash  string         `json:"file_hash"`
	Filename  string         `json:"filename"`
	Metadata  map[string]any `json:"metadata"`
	Status    string         `json:"status"`
	FileSize  int64          `json:"file_size"`
	CreatedAt time.Time      `json:"created_at"`
}

// Chunk is one bounded unit of a document's text. Position values within a
// document form a gapless sequence starting at 0 in reading order.
type Chunk struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	Content    string    `json:"content"`
	ChunkType  string    `json:"chunk_type,omitempty"`
	PageNumber *int      `json:"page_number,omitempty"`
	Position   int       `json:"position"`
	BBox       []float64 `json:"bbox,omitempty"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// TextBlock is a unit of extracted text with layout hints. BBox is
// [x0, y0, x1, y1] page-relative, nil when the extractor cannot provide it.
type TextBlock struct {
	BlockIndex int       `json:"block_index"`
	BlockType  string    `json:"block_type"`
	Text       string    `json:"text"`
	BBox       []float64 `json:"bbox,omitempty"`
}

// ParsedPage holds the blocks extracted from one page.
type ParsedPage struct {
	PageNumber int         `json:"page_number"`
	Blocks     []TextBlock `json:"blocks"`
}

// ParsedDocument is the extraction collaborator's output.
type ParsedDocument struct {
	Filename   string       `json:"filename"`
	TotalPages int          `json:"total_pages"`
	Pages      []ParsedPage `json:"pages"`
}

// IngestFile is one input to the ingestion pipeline.
type IngestFile struct {
	Filename string
	Data     []byte
	Metadata map[string]any
}

// IngestResult is the per-file outcome of an ingestion. Exactly one of
// Document or Error is meaningful; a duplicate carries the existing document.
type IngestResult struct {
	Document     *Document `json:"document,omitempty"`
	ChunksCount  int       `json:"chunks_count"`
	WasDuplicate bool      `json:"was_duplicate"`
	Error        string    `json:"error,omitempty"`
}

// BatchResult aggregates a batch ingestion. Results has the same length and
// order as the submitted files.
type BatchResult struct {
	Results    []IngestResult `json:"results"`
	Successful int            `json:"successful"`
	Duplicates int            `json:"duplicates"`
	Failed     int            `json:"failed"`
}

// SearchResult is a retrieved chunk with its cosine similarity score and the
// owning document, used only for response assembly.
type SearchResult struct {
	Chunk    Chunk     `json:"chunk"`
	Score    float64   `json:"score"`
	Document *Document `json:"document,omitempty"`
}

// SourceReference maps one retrieved chunk back to its citation.
type SourceReference struct {
	DocumentID     uuid.UUID `json:"document_id"`
	Filename       string    `json:"filename"`
	PageNumber     *int      `json:"page_number,omitempty"`
	BBox           []float64 `json:"bbox,omitempty"`
	ContentPreview string    `json:"content_preview"`
}

// QueryResponse is the answer to a RAG query with its citations.
type QueryResponse struct {
	Answer     string            `json:"answer"`
	Sources    []SourceReference `json:"sources"`
	ChunksUsed int               `json:"chunks_used"`
}
