package rag_service

import (
	"errors"
	"testing"

	"github.com/serisow/parchemin/rag_type"
)

func TestSplitIntoBlocks(t *testing.T) {
	text := "INTRODUCTION\n\nThis is the opening paragraph and it describes the topic at length in full sentences.\n\n• first point\n• second point\n• third point\n\n\n   \n\nA closing paragraph wraps everything up with a final thought for the reader."

	blocks := splitIntoBlocks(text)
	if len(blocks) != 4 {
		t.Fatalf("got %d blocks, want 4", len(blocks))
	}

	wantTypes := []string{
		rag_type.ChunkTypeHeading,
		rag_type.ChunkTypeParagraph,
		rag_type.ChunkTypeList,
		rag_type.ChunkTypeParagraph,
	}
	for i, block := range blocks {
		if block.BlockIndex != i {
			t.Errorf("block %d has index %d", i, block.BlockIndex)
		}
		if block.BlockType != wantTypes[i] {
			t.Errorf("block %d type = %q, want %q", i, block.BlockType, wantTypes[i])
		}
	}

	if got := splitIntoBlocks("  \n\n \t \n\n"); got != nil {
		t.Errorf("whitespace input should produce no blocks, got %v", got)
	}
}

func TestAssessNeedsOCR(t *testing.T) {
	tests := []struct {
		name       string
		totalChars int
		totalPages int
		want       bool
	}{
		{"dense text", 5000, 3, false},
		{"exactly at threshold", scannedCharsThreshold, 1, false},
		{"sparse text suggests scan", 40, 1, true},
		{"sparse across many pages", 400, 20, true},
		{"no pages", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := assessNeedsOCR(tt.totalChars, tt.totalPages); got != tt.want {
				t.Errorf("assessNeedsOCR(%d, %d) = %v, want %v", tt.totalChars, tt.totalPages, got, tt.want)
			}
		})
	}
}

func TestPDFExtractorRejectsGarbage(t *testing.T) {
	extractor := NewPDFExtractor(testLogger())
	_, err := extractor.Extract("garbage.pdf", []byte("%PDF-1.4 but nothing else"))
	if err == nil {
		t.Fatal("expected an error for non-PDF bytes")
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("error %v is not a ParseError", err)
	}
}
