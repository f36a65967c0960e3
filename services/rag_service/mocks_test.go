package rag_service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/serisow/parchemin/rag_type"
)

type mockStorage struct {
	mu sync.Mutex

	docsByHash map[string]*rag_type.Document

	findErr   error
	insertErr error
	searchErr error

	insertedDocs   []rag_type.Document
	insertedChunks [][]rag_type.Chunk
	searchResults  []rag_type.SearchResult

	findCalls   int
	insertCalls int
}

func newMockStorage() *mockStorage {
	return &mockStorage{docsByHash: make(map[string]*rag_type.Document)}
}

func (m *mockStorage) FindDocumentByHash(ctx context.Context, fileHash string) (*rag_type.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.docsByHash[fileHash], nil
}

func (m *mockStorage) InsertDocumentWithChunks(ctx context.Context, doc *rag_type.Document, chunks []rag_type.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	if m.insertErr != nil {
		return m.insertErr
	}
	m.docsByHash[doc.FileHash] = doc
	m.insertedDocs = append(m.insertedDocs, *doc)
	m.insertedChunks = append(m.insertedChunks, chunks)
	return nil
}

func (m *mockStorage) SimilaritySearch(ctx context.Context, embedding []float32, topK int, scoreThreshold *float64) ([]rag_type.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	results := m.searchResults
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *mockStorage) ListDocuments(ctx context.Context) ([]rag_type.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertedDocs, nil
}

func (m *mockStorage) DeleteDocument(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

type mockSession struct {
	*mockStorage
	released *int
	mu       *sync.Mutex
}

func (s *mockSession) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.released++
}

// mockSessionStorage hands every worker a session backed by the same
// storage, tracking acquire/release balance.
type mockSessionStorage struct {
	*mockStorage

	sessionMu  sync.Mutex
	acquired   int
	released   int
	acquireErr error
}

func newMockSessionStorage() *mockSessionStorage {
	return &mockSessionStorage{mockStorage: newMockStorage()}
}

func (m *mockSessionStorage) AcquireSession(ctx context.Context) (StorageSession, error) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}
	m.acquired++
	return &mockSession{mockStorage: m.mockStorage, released: &m.released, mu: &m.sessionMu}, nil
}

type mockEmbedder struct {
	mu         sync.Mutex
	batchCalls int
	queryCalls int
	batchErr   error
	queryErr   error
	dimensions int
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dimensions: 4}
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, m.dimensions)
		vec[0] = float32(i)
		vectors[i] = vec
	}
	return vectors, nil
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls++
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return make([]float32, m.dimensions), nil
}

type mockExtractor struct {
	mu    sync.Mutex
	calls int
	doc   *rag_type.ParsedDocument
	err   error
}

func (m *mockExtractor) Extract(filename string, data []byte) (*rag_type.ParsedDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.doc != nil {
		return m.doc, nil
	}
	return threePageDoc(filename), nil
}

func threePageDoc(filename string) *rag_type.ParsedDocument {
	doc := &rag_type.ParsedDocument{Filename: filename, TotalPages: 3}
	for page := 1; page <= 3; page++ {
		doc.Pages = append(doc.Pages, rag_type.ParsedPage{
			PageNumber: page,
			Blocks: []rag_type.TextBlock{
				{
					BlockIndex: 0,
					BlockType:  rag_type.ChunkTypeParagraph,
					Text:       fmt.Sprintf("This is the content of page %d. It talks about things.", page),
				},
			},
		})
	}
	return doc
}

func pdfBytes(payload string) []byte {
	return []byte("%PDF-1.4\n" + payload)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
