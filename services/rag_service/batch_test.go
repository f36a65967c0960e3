package rag_service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/serisow/parchemin/rag_type"
)

func newTestBatchIngestor(t *testing.T, storage *mockSessionStorage, concurrency int) *BatchIngestor {
	t.Helper()
	ing := newTestIngestor(t, storage.mockStorage, newMockEmbedder())
	ing.RegisterExtractor(".pdf", &mockExtractor{})
	return NewBatchIngestor(storage, ing, concurrency, testLogger())
}

func TestIngestBatchPreservesOrder(t *testing.T) {
	storage := newMockSessionStorage()
	// One worker keeps the dedup outcome deterministic: input 3 always
	// lands after its twin at input 0.
	batch := newTestBatchIngestor(t, storage, 1)

	files := []rag_type.IngestFile{
		{Filename: "a.pdf", Data: pdfBytes("document a")},
		{Filename: "invalid.txt", Data: []byte("wrong type")},
		{Filename: "b.pdf", Data: pdfBytes("document b")},
		{Filename: "a-again.pdf", Data: pdfBytes("document a")},
	}

	result := batch.IngestBatch(context.Background(), files)

	if len(result.Results) != len(files) {
		t.Fatalf("got %d results for %d inputs", len(result.Results), len(files))
	}
	if result.Results[0].Error != "" || result.Results[0].Document == nil {
		t.Errorf("result 0 should be a success, got %+v", result.Results[0])
	}
	if result.Results[1].Error == "" {
		t.Error("result 1 should carry the validation failure")
	}
	if result.Results[2].Error != "" || result.Results[2].Document == nil {
		t.Errorf("result 2 should be a success, got %+v", result.Results[2])
	}
	if !result.Results[3].WasDuplicate {
		t.Error("result 3 shares bytes with input 0 and should be a duplicate")
	}

	if result.Successful != 2 || result.Duplicates != 1 || result.Failed != 1 {
		t.Errorf("counts = %d/%d/%d (ok/dup/fail), want 2/1/1",
			result.Successful, result.Duplicates, result.Failed)
	}
}

func TestIngestBatchEmptyInput(t *testing.T) {
	storage := newMockSessionStorage()
	batch := newTestBatchIngestor(t, storage, 4)

	result := batch.IngestBatch(context.Background(), nil)
	if result.Results == nil || len(result.Results) != 0 {
		t.Errorf("expected an empty result slice, got %v", result.Results)
	}
	if storage.acquired != 0 {
		t.Error("no session should be acquired for an empty batch")
	}
}

func TestIngestBatchSessionLifecycle(t *testing.T) {
	storage := newMockSessionStorage()
	batch := newTestBatchIngestor(t, storage, 3)

	var files []rag_type.IngestFile
	for i := 0; i < 10; i++ {
		files = append(files, rag_type.IngestFile{
			Filename: fmt.Sprintf("doc-%d.pdf", i),
			Data:     pdfBytes(fmt.Sprintf("unique content %d", i)),
		})
	}

	result := batch.IngestBatch(context.Background(), files)

	if result.Successful != 10 {
		t.Errorf("successful = %d, want 10", result.Successful)
	}
	if storage.acquired == 0 || storage.acquired > 3 {
		t.Errorf("acquired %d sessions with concurrency 3", storage.acquired)
	}
	if storage.released != storage.acquired {
		t.Errorf("acquired %d sessions but released %d", storage.acquired, storage.released)
	}
}

func TestIngestBatchSessionAcquireFailure(t *testing.T) {
	storage := newMockSessionStorage()
	storage.acquireErr = errors.New("pool exhausted")
	batch := newTestBatchIngestor(t, storage, 2)

	files := []rag_type.IngestFile{
		{Filename: "a.pdf", Data: pdfBytes("a")},
		{Filename: "b.pdf", Data: pdfBytes("b")},
	}

	result := batch.IngestBatch(context.Background(), files)

	if result.Failed != len(files) {
		t.Fatalf("failed = %d, want %d", result.Failed, len(files))
	}
	for i, r := range result.Results {
		if !strings.Contains(r.Error, "acquire session") {
			t.Errorf("result %d error %q does not mention the session failure", i, r.Error)
		}
	}
}

func TestIngestBatchIsolatesPanics(t *testing.T) {
	storage := newMockSessionStorage()
	ing := newTestIngestor(t, storage.mockStorage, newMockEmbedder())
	ing.RegisterExtractor(".pdf", &mockExtractor{})
	ing.RegisterExtractor(".docx", panickyExtractor{})
	batch := NewBatchIngestor(storage, ing, 2, testLogger())

	files := []rag_type.IngestFile{
		{Filename: "fine.pdf", Data: pdfBytes("fine")},
		{Filename: "boom.docx", Data: []byte("explodes")},
		{Filename: "also-fine.pdf", Data: pdfBytes("also fine")},
	}

	result := batch.IngestBatch(context.Background(), files)

	if result.Results[1].Error == "" {
		t.Error("panicking item should surface as a failed result")
	}
	if result.Successful != 2 {
		t.Errorf("successful = %d, want 2 (panic must not take down siblings)", result.Successful)
	}
}

type panickyExtractor struct{}

func (panickyExtractor) Extract(filename string, data []byte) (*rag_type.ParsedDocument, error) {
	panic("extractor blew up")
}
