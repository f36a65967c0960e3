package rag_service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/serisow/parchemin/rag_type"
)

// DefaultBatchConcurrency is the worker-pool size for batch ingestion.
const DefaultBatchConcurrency = 4

// BatchIngestor runs Ingestors concurrently over a bounded worker pool.
// Each worker holds its own exclusive storage session for its whole
// lifetime; results come back in input order and one item's failure never
// aborts the others.
type BatchIngestor struct {
	storage     SessionStorage
	ingestor    *Ingestor
	concurrency int
	logger      *slog.Logger
}

func NewBatchIngestor(storage SessionStorage, ingestor *Ingestor, concurrency int, logger *slog.Logger) *BatchIngestor {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	return &BatchIngestor{
		storage:     storage,
		ingestor:    ingestor,
		concurrency: concurrency,
		logger:      logger,
	}
}

type batchJob struct {
	index int
	file  rag_type.IngestFile
}

// IngestBatch processes the files and returns one result per input, same
// length and same order, with aggregate counts.
func (b *BatchIngestor) IngestBatch(ctx context.Context, files []rag_type.IngestFile) rag_type.BatchResult {
	total := len(files)
	if total == 0 {
		return rag_type.BatchResult{Results: []rag_type.IngestResult{}}
	}

	b.logger.Info("Starting batch ingestion",
		slog.Int("total_files", total),
		slog.Int("concurrency", b.concurrency))
	start := time.Now()

	results := make([]rag_type.IngestResult, total)
	jobs := make(chan batchJob)

	workers := b.concurrency
	if workers > total {
		workers = total
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.runWorker(ctx, jobs, results)
		}()
	}

	for i, file := range files {
		jobs <- batchJob{index: i, file: file}
	}
	close(jobs)
	wg.Wait()

	result := rag_type.BatchResult{Results: results}
	for _, r := range results {
		switch {
		case r.Error != "":
			result.Failed++
		case r.WasDuplicate:
			result.Duplicates++
		default:
			result.Successful++
		}
	}

	b.logger.Info("Batch ingestion complete",
		slog.Int("total_files", total),
		slog.Int("successful", result.Successful),
		slog.Int("duplicates", result.Duplicates),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", time.Since(start)))

	return result
}

// runWorker drains jobs with one exclusive storage session. Results are
// written by original input index, so concurrent workers never contend.
func (b *BatchIngestor) runWorker(ctx context.Context, jobs <-chan batchJob, results []rag_type.IngestResult) {
	session, err := b.storage.AcquireSession(ctx)
	if err != nil {
		err = &StorageError{Op: "acquire session", Err: err}
		for job := range jobs {
			results[job.index] = failedResult(err)
		}
		return
	}
	defer session.Release()

	ingestor := b.ingestor.WithStorage(session)

	for job := range jobs {
		results[job.index] = b.ingestOne(ctx, ingestor, job)
	}
}

// ingestOne isolates a single item, converting panics into a failed result
// so a misbehaving document cannot take down sibling workers.
func (b *BatchIngestor) ingestOne(ctx context.Context, ingestor *Ingestor, job batchJob) (result rag_type.IngestResult) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Ingestion worker panicked",
				slog.String("filename", job.file.Filename),
				slog.Any("panic", r))
			result = failedResult(fmt.Errorf("ingestion panicked: %v", r))
		}
	}()

	result, err := ingestor.Ingest(ctx, job.file)
	if err != nil {
		b.logger.Error("Failed to ingest document",
			slog.String("filename", job.file.Filename),
			slog.String("error", err.Error()))
	}
	return result
}
