package rag_service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/serisow/parchemin/rag_type"
	"github.com/serisow/parchemin/services/llm_service"
)

const (
	DefaultTopK            = 5
	DefaultMaxContextChars = 12000

	contentPreviewLength = 200
)

// NoEvidenceAnswer is returned when retrieval yields nothing above the score
// threshold. No generation call happens and no citations are fabricated.
const NoEvidenceAnswer = "I couldn't find any relevant information in the documents to answer your question."

// RetrieverConfig bounds retrieval and context assembly.
type RetrieverConfig struct {
	TopK            int
	ScoreThreshold  *float64
	MaxContextChars int
}

// Retriever embeds a query, ranks nearest chunks from storage, assembles the
// grounding context and delegates answer generation. Every chunk that feeds
// the answer maps back to a citation.
type Retriever struct {
	storage  Storage
	embedder Embedder
	llm      llm_service.LLMService
	cfg      RetrieverConfig
	logger   *slog.Logger
}

func NewRetriever(storage Storage, embedder Embedder, llm llm_service.LLMService, cfg RetrieverConfig, logger *slog.Logger) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = DefaultMaxContextChars
	}
	return &Retriever{
		storage:  storage,
		embedder: embedder,
		llm:      llm,
		cfg:      cfg,
		logger:   logger,
	}
}

// Retrieve returns up to topK chunks ranked by cosine similarity, dropping
// anything below the configured score threshold. An emptied result set stays
// empty; lower-ranked chunks are never substituted in.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]rag_type.SearchResult, error) {
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	start := time.Now()

	embedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := r.storage.SimilaritySearch(ctx, embedding, topK, r.cfg.ScoreThreshold)
	if err != nil {
		return nil, &StorageError{Op: "similarity search", Err: err}
	}

	if r.cfg.ScoreThreshold != nil {
		filtered := results[:0]
		for _, res := range results {
			if res.Score >= *r.cfg.ScoreThreshold {
				filtered = append(filtered, res)
			}
		}
		results = filtered
	}

	r.logger.Info("Retrieval completed",
		slog.Int("query_length", len(query)),
		slog.Int("top_k", topK),
		slog.Int("results_count", len(results)),
		slog.Duration("duration", time.Since(start)))

	return results, nil
}

// Query answers a question with retrieval-augmented generation.
func (r *Retriever) Query(ctx context.Context, question string, topK int) (*rag_type.QueryResponse, error) {
	start := time.Now()

	results, err := r.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return &rag_type.QueryResponse{
			Answer:  NoEvidenceAnswer,
			Sources: []rag_type.SourceReference{},
		}, nil
	}

	used, grounding := r.assembleContext(results)

	answer, err := r.llm.Generate(ctx, question, grounding)
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	r.logger.Info("RAG query completed",
		slog.Int("question_length", len(question)),
		slog.Int("chunks_used", len(used)),
		slog.Int("answer_length", len(answer)),
		slog.Duration("duration", time.Since(start)))

	return &rag_type.QueryResponse{
		Answer:     answer,
		Sources:    buildSources(used),
		ChunksUsed: len(used),
	}, nil
}

// assembleContext concatenates the surviving chunks' text in ranked order,
// each annotated with its source document and page, bounded by the overall
// context budget. Lowest-ranked chunks fall off first when the budget would
// be exceeded; the top result always survives.
func (r *Retriever) assembleContext(results []rag_type.SearchResult) ([]rag_type.SearchResult, string) {
	var parts []string
	var used []rag_type.SearchResult
	total := 0

	for i, res := range results {
		var sourceInfo []string
		if res.Document != nil {
			sourceInfo = append(sourceInfo, "Source: "+res.Document.Filename)
		}
		if res.Chunk.PageNumber != nil {
			sourceInfo = append(sourceInfo, fmt.Sprintf("Page: %d", *res.Chunk.PageNumber))
		}
		if res.Chunk.ChunkType != "" {
			sourceInfo = append(sourceInfo, "Type: "+res.Chunk.ChunkType)
		}

		header := fmt.Sprintf("[Context %d]", i+1)
		if len(sourceInfo) > 0 {
			header += " " + strings.Join(sourceInfo, " | ")
		}
		part := header + "\n" + res.Chunk.Content

		if len(used) > 0 && total+len(part) > r.cfg.MaxContextChars {
			r.logger.Debug("Context budget reached, truncating lowest-ranked chunks",
				slog.Int("chunks_kept", len(used)),
				slog.Int("chunks_dropped", len(results)-len(used)))
			break
		}
		parts = append(parts, part)
		used = append(used, res)
		total += len(part)
	}

	return used, strings.Join(parts, "\n\n---\n\n")
}

func buildSources(results []rag_type.SearchResult) []rag_type.SourceReference {
	sources := make([]rag_type.SourceReference, 0, len(results))
	for _, res := range results {
		source := rag_type.SourceReference{
			PageNumber:     res.Chunk.PageNumber,
			BBox:           res.Chunk.BBox,
			ContentPreview: preview(res.Chunk.Content),
		}
		if res.Document != nil {
			source.DocumentID = res.Document.ID
			source.Filename = res.Document.Filename
		}
		sources = append(sources, source)
	}
	return sources
}

func preview(content string) string {
	if len(content) > contentPreviewLength {
		return content[:contentPreviewLength] + "..."
	}
	return content
}
