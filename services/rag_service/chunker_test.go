package rag_service

import (
	"strings"
	"testing"

	"github.com/serisow/parchemin/rag_type"
)

func TestNewChunkerValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ChunkerConfig
		wantErr bool
	}{
		{"defaults", ChunkerConfig{}, false},
		{"explicit fixed", ChunkerConfig{Strategy: "fixed", ChunkSize: 500, Overlap: 100}, false},
		{"unknown strategy", ChunkerConfig{Strategy: "recursive"}, true},
		{"overlap equals size", ChunkerConfig{ChunkSize: 200, Overlap: 200}, true},
		{"overlap exceeds size", ChunkerConfig{ChunkSize: 200, Overlap: 300}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunker(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewChunker(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
			}
		})
	}
}

func TestFixedSizeChunks(t *testing.T) {
	chunker, err := NewChunker(ChunkerConfig{Strategy: "fixed", ChunkSize: 100, Overlap: 20}, nil)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}

	t.Run("empty input", func(t *testing.T) {
		if got := chunker.FixedSizeChunks(""); got != nil {
			t.Errorf("expected nil for empty input, got %v", got)
		}
		if got := chunker.FixedSizeChunks("   \n\t  "); got != nil {
			t.Errorf("expected nil for whitespace input, got %v", got)
		}
	})

	t.Run("short text stays whole", func(t *testing.T) {
		got := chunker.FixedSizeChunks("a short text")
		if len(got) != 1 || got[0] != "a short text" {
			t.Errorf("expected single chunk, got %v", got)
		}
	})

	t.Run("size bound and overlap", func(t *testing.T) {
		var sb strings.Builder
		for i := 0; i < 200; i++ {
			sb.WriteString("sentence number ")
		}
		text := strings.TrimSpace(sb.String())

		chunks := chunker.FixedSizeChunks(text)
		if len(chunks) < 2 {
			t.Fatalf("expected multiple chunks, got %d", len(chunks))
		}
		for i, chunk := range chunks {
			if len(chunk) > 100 {
				t.Errorf("chunk %d exceeds size limit: %d chars", i, len(chunk))
			}
			if !strings.Contains(text, chunk) {
				t.Errorf("chunk %d is not a substring of the input", i)
			}
		}
		// Each chunk after the first starts inside the tail of its
		// predecessor, so no text is lost at the seams.
		for i := 1; i < len(chunks); i++ {
			head := chunks[i]
			if len(head) > 10 {
				head = head[:10]
			}
			if !strings.Contains(chunks[i-1], head) {
				t.Errorf("chunk %d does not overlap chunk %d", i, i-1)
			}
		}
	})

	t.Run("no whitespace still makes progress", func(t *testing.T) {
		text := strings.Repeat("x", 350)
		chunks := chunker.FixedSizeChunks(text)
		if len(chunks) == 0 {
			t.Fatal("expected chunks for unbroken text")
		}
		total := 0
		for _, chunk := range chunks {
			total += len(chunk)
		}
		if total < len(text) {
			t.Errorf("chunks cover %d chars, input has %d", total, len(text))
		}
	})
}

func TestSemanticChunks(t *testing.T) {
	chunker, err := NewChunker(ChunkerConfig{Strategy: "semantic", MaxChunkSize: 100, ChunkSize: 100, Overlap: 20}, nil)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}

	t.Run("empty input", func(t *testing.T) {
		if got := chunker.SemanticChunks("\n\n  \n\n"); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})

	t.Run("paragraphs merge under the ceiling", func(t *testing.T) {
		a := strings.Repeat("a", 40)
		b := strings.Repeat("b", 40)
		c := strings.Repeat("c", 40)
		chunks := chunker.SemanticChunks(a + "\n\n" + b + "\n\n" + c)

		if len(chunks) != 2 {
			t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
		}
		if chunks[0] != a+"\n\n"+b {
			t.Errorf("first chunk should merge the first two paragraphs, got %q", chunks[0])
		}
		if chunks[1] != c {
			t.Errorf("second chunk should be the third paragraph, got %q", chunks[1])
		}
	})

	t.Run("single paragraph stays whole", func(t *testing.T) {
		text := "one paragraph under the limit"
		chunks := chunker.SemanticChunks(text)
		if len(chunks) != 1 || chunks[0] != text {
			t.Errorf("expected the paragraph unchanged, got %v", chunks)
		}
	})

	t.Run("oversized paragraph falls back to fixed-size", func(t *testing.T) {
		var sb strings.Builder
		for i := 0; i < 80; i++ {
			sb.WriteString("word ")
		}
		chunks := chunker.SemanticChunks(strings.TrimSpace(sb.String()))
		if len(chunks) < 2 {
			t.Fatalf("expected the paragraph to be split, got %d chunks", len(chunks))
		}
		for i, chunk := range chunks {
			if len(chunk) > 100 {
				t.Errorf("chunk %d exceeds ceiling: %d chars", i, len(chunk))
			}
		}
	})
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty", "", rag_type.ChunkTypeParagraph},
		{"plain sentence", "This paragraph describes the quarterly results in detail and ends with a period.", rag_type.ChunkTypeParagraph},
		{"pipe table", "Name | Age | City\nAlice | 30 | Paris", rag_type.ChunkTypeTable},
		{"bullet list", "• first item\n• second item\n• third item", rag_type.ChunkTypeList},
		{"numbered list", "1. first\n2. second\n3. third", rag_type.ChunkTypeList},
		{"mostly prose with one bullet", "An introduction sentence here, which is prose.\n- one stray bullet\nAnother full prose sentence follows right after it.", rag_type.ChunkTypeParagraph},
		{"uppercase heading", "QUARTERLY REVIEW 2025", rag_type.ChunkTypeHeading},
		{"short title without punctuation", "Introduction to the system", rag_type.ChunkTypeHeading},
		{"short line ending with colon", "Here is the list:", rag_type.ChunkTypeParagraph},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectContentType(tt.text); got != tt.want {
				t.Errorf("DetectContentType(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestChunkParsedDocument(t *testing.T) {
	chunker, err := NewChunker(ChunkerConfig{}, nil)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}

	t.Run("positions are contiguous across pages", func(t *testing.T) {
		chunks := chunker.ChunkParsedDocument(threePageDoc("report.pdf"))
		if len(chunks) == 0 {
			t.Fatal("expected chunks")
		}
		for i, chunk := range chunks {
			if chunk.Position != i {
				t.Errorf("chunk %d has position %d", i, chunk.Position)
			}
			if chunk.PageNumber == nil {
				t.Errorf("chunk %d has no page number", i)
			}
		}
		if first, last := *chunks[0].PageNumber, *chunks[len(chunks)-1].PageNumber; first != 1 || last != 3 {
			t.Errorf("expected pages 1..3, got first=%d last=%d", first, last)
		}
	})

	t.Run("tables are never split", func(t *testing.T) {
		var rows []string
		for i := 0; i < 100; i++ {
			rows = append(rows, "cell one | cell two | cell three")
		}
		table := strings.Join(rows, "\n")

		doc := &rag_type.ParsedDocument{
			Filename:   "table.pdf",
			TotalPages: 1,
			Pages: []rag_type.ParsedPage{{
				PageNumber: 1,
				Blocks: []rag_type.TextBlock{
					{BlockType: rag_type.ChunkTypeTable, Text: table},
				},
			}},
		}

		chunks := chunker.ChunkParsedDocument(doc)
		if len(chunks) != 1 {
			t.Fatalf("expected the table in one chunk, got %d", len(chunks))
		}
		if chunks[0].ChunkType != rag_type.ChunkTypeTable {
			t.Errorf("chunk type = %q, want table", chunks[0].ChunkType)
		}
		if chunks[0].Content != table {
			t.Error("table content was altered")
		}
	})

	t.Run("empty document yields no chunks", func(t *testing.T) {
		doc := &rag_type.ParsedDocument{Filename: "empty.pdf", TotalPages: 0}
		if chunks := chunker.ChunkParsedDocument(doc); len(chunks) != 0 {
			t.Errorf("expected no chunks, got %d", len(chunks))
		}
	})
}
