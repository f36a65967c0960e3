package rag_service

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/serisow/parchemin/rag_type"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultMaxChunkSize = 1500

	// How far back from the cut point the fixed-size strategy will look for
	// a whitespace boundary before accepting a mid-word split.
	wordSnapLookback = 100
)

var paragraphSplitRe = regexp.MustCompile(`\n\s*\n`)

var listItemPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*[•◦▪▸►\-\*]`),
	regexp.MustCompile(`^\s*\d+[\.\)]`),
	regexp.MustCompile(`^\s*[a-zA-Z][\.\)]`),
}

// ChunkerConfig selects the chunking strategy and its size constraints.
type ChunkerConfig struct {
	Strategy     string // "semantic" (default) or "fixed"
	ChunkSize    int
	Overlap      int
	MaxChunkSize int
}

// Chunker splits extracted text into ordered, typed chunks under size
// constraints.
type Chunker struct {
	cfg    ChunkerConfig
	logger *slog.Logger
}

func NewChunker(cfg ChunkerConfig, logger *slog.Logger) (*Chunker, error) {
	if cfg.Strategy == "" {
		cfg.Strategy = "semantic"
	}
	if cfg.Strategy != "semantic" && cfg.Strategy != "fixed" {
		return nil, fmt.Errorf("unknown chunking strategy: %s", cfg.Strategy)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = DefaultChunkOverlap
	}
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = DefaultMaxChunkSize
	}
	if cfg.Overlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", cfg.Overlap, cfg.ChunkSize)
	}
	return &Chunker{cfg: cfg, logger: logger}, nil
}

// FixedSizeChunks slides a window of the configured chunk size over the text
// with the configured overlap repeated between consecutive windows. The cut
// point snaps backward to the nearest preceding whitespace within
// wordSnapLookback characters; the final chunk may be shorter.
func (c *Chunker) FixedSizeChunks(text string) []string {
	return fixedSizeChunks(text, c.cfg.ChunkSize, c.cfg.Overlap)
}

func fixedSizeChunks(text string, chunkSize, overlap int) []string {
	if strings.TrimSpace(text) == "" || chunkSize <= 0 {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{strings.TrimSpace(text)}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + chunkSize
		last := false
		if end >= len(text) {
			end = len(text)
			last = true
		} else if idx := strings.LastIndex(text[start:end], " "); idx > 0 && chunkSize-idx <= wordSnapLookback {
			end = start + idx
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if last {
			break
		}

		next := end - overlap
		if next <= start {
			// No whitespace to make progress on; take the hard cut.
			next = end
		}
		start = next
	}
	return chunks
}

// SemanticChunks splits text on blank-line boundaries and greedily merges
// consecutive paragraphs while the running total stays under the configured
// maximum. A single paragraph exceeding the maximum is re-split with the
// fixed-size strategy, so no chunk exceeds the ceiling except for an
// unsplittable zero-whitespace run.
func (c *Chunker) SemanticChunks(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	raw := paragraphSplitRe.Split(text, -1)
	paragraphs := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return nil
	}

	maxSize := c.cfg.MaxChunkSize
	var chunks []string
	var current []string
	currentSize := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = nil
			currentSize = 0
		}
	}

	for _, para := range paragraphs {
		paraSize := len(para)

		if paraSize > maxSize {
			flush()
			chunks = append(chunks, fixedSizeChunks(para, maxSize, c.cfg.Overlap)...)
			continue
		}

		newSize := currentSize + paraSize
		if len(current) > 0 {
			newSize += 2 // blank-line separator
		}
		if newSize > maxSize && len(current) > 0 {
			flush()
		}

		current = append(current, para)
		currentSize += paraSize
		if len(current) > 1 {
			currentSize += 2
		}
	}
	flush()

	return chunks
}

// DetectContentType classifies a text block with lightweight heuristics.
// The tag is advisory metadata carried through to storage.
func DetectContentType(text string) string {
	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return rag_type.ChunkTypeParagraph
	}

	lines := strings.Split(stripped, "\n")

	// Tabular alignment: multiple column separators on the first line.
	if strings.Contains(stripped, "|") && strings.Count(lines[0], "|") >= 2 {
		return rag_type.ChunkTypeTable
	}

	listCount := 0
	for _, line := range lines {
		for _, p := range listItemPatterns {
			if p.MatchString(line) {
				listCount++
				break
			}
		}
	}
	if float64(listCount) > float64(len(lines))/2 {
		return rag_type.ChunkTypeList
	}

	if len(stripped) < 100 && isUpper(stripped) {
		return rag_type.ChunkTypeHeading
	}
	if len(stripped) < 80 && !strings.HasSuffix(stripped, ".") &&
		!strings.HasSuffix(stripped, "!") && !strings.HasSuffix(stripped, "?") &&
		!strings.HasSuffix(stripped, ":") {
		return rag_type.ChunkTypeHeading
	}

	return rag_type.ChunkTypeParagraph
}

// isUpper reports whether s contains at least one cased character and every
// cased character is upper case.
func isUpper(s string) bool {
	hasCased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasCased = true
		}
	}
	return hasCased
}

// ChunkParsedDocument turns an extracted document into an ordered chunk
// sequence. Consecutive blocks sharing a type hint are grouped per page
// before the strategy is applied; Position is assigned by final emission
// order regardless of which strategy produced the chunk.
func (c *Chunker) ChunkParsedDocument(doc *rag_type.ParsedDocument) []rag_type.Chunk {
	var chunks []rag_type.Chunk
	position := 0

	for _, page := range doc.Pages {
		for _, group := range groupBlocks(page.Blocks) {
			var pieces []string
			switch {
			case group.blockType == rag_type.ChunkTypeTable:
				// Tables stay whole; splitting rows apart destroys them.
				pieces = []string{group.text}
			case c.cfg.Strategy == "fixed":
				pieces = c.FixedSizeChunks(group.text)
			default:
				pieces = c.SemanticChunks(group.text)
			}

			for _, piece := range pieces {
				if strings.TrimSpace(piece) == "" {
					continue
				}
				chunkType := group.blockType
				if chunkType == "" {
					chunkType = DetectContentType(piece)
				}
				pageNum := page.PageNumber
				chunks = append(chunks, rag_type.Chunk{
					Content:    piece,
					ChunkType:  chunkType,
					PageNumber: &pageNum,
					Position:   position,
					BBox:       group.bbox,
				})
				position++
			}
		}
	}

	if c.logger != nil {
		c.logger.Debug("Document chunked",
			slog.String("strategy", c.cfg.Strategy),
			slog.Int("pages", len(doc.Pages)),
			slog.Int("chunks", len(chunks)))
	}

	return chunks
}

type blockGroup struct {
	text      string
	blockType string
	bbox      []float64
}

// groupBlocks merges consecutive blocks of the same type hint, keeping the
// first block's bbox for the group.
func groupBlocks(blocks []rag_type.TextBlock) []blockGroup {
	var groups []blockGroup
	var texts []string
	var currentType string
	var currentBBox []float64

	flush := func() {
		if len(texts) > 0 {
			groups = append(groups, blockGroup{
				text:      strings.Join(texts, "\n\n"),
				blockType: currentType,
				bbox:      currentBBox,
			})
			texts = nil
			currentBBox = nil
		}
	}

	for _, block := range blocks {
		if block.BlockType != currentType {
			flush()
		}
		currentType = block.BlockType
		texts = append(texts, block.Text)
		if currentBBox == nil {
			currentBBox = block.BBox
		}
	}
	flush()

	return groups
}
