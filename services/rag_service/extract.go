package rag_service

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"code.sajari.com/docconv/v2"
	"github.com/ledongthuc/pdf"

	"github.com/serisow/parchemin/rag_type"
)

// Pages averaging fewer extracted characters than this are likely scanned
// images. Detection only warns; OCR recovery is a future extension point.
const scannedCharsThreshold = 50

// Extractor turns raw file bytes into an ordered sequence of typed text
// blocks. One variant is selected per file type at configuration time;
// callers never branch on the backend per call.
type Extractor interface {
	Extract(filename string, data []byte) (*rag_type.ParsedDocument, error)
}

// PDFExtractor extracts per-page text blocks from PDF bytes.
type PDFExtractor struct {
	logger *slog.Logger
}

func NewPDFExtractor(logger *slog.Logger) *PDFExtractor {
	return &PDFExtractor{logger: logger}
}

func (e *PDFExtractor) Extract(filename string, data []byte) (*rag_type.ParsedDocument, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		e.logger.Error("Failed to create PDF reader",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
			slog.Int("data_size", len(data)))
		return nil, &ParseError{Filename: filename, Err: fmt.Errorf("failed to create PDF reader: %w", err)}
	}

	totalPages := reader.NumPage()
	e.logger.Debug("Starting PDF text extraction",
		slog.String("filename", filename),
		slog.Int("total_pages", totalPages))

	doc := &rag_type.ParsedDocument{
		Filename:   filename,
		TotalPages: totalPages,
	}
	totalChars := 0

	for pageIndex := 1; pageIndex <= totalPages; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			e.logger.Warn("Null page encountered",
				slog.String("filename", filename),
				slog.Int("page_number", pageIndex))
			doc.Pages = append(doc.Pages, rag_type.ParsedPage{PageNumber: pageIndex})
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Error("Failed to extract text from page",
				slog.String("filename", filename),
				slog.Int("page_number", pageIndex),
				slog.String("error", err.Error()))
			return nil, &ParseError{Filename: filename, Err: fmt.Errorf("failed to extract text from page %d: %w", pageIndex, err)}
		}

		totalChars += len(strings.TrimSpace(text))
		doc.Pages = append(doc.Pages, rag_type.ParsedPage{
			PageNumber: pageIndex,
			Blocks:     splitIntoBlocks(text),
		})
	}

	if totalChars == 0 {
		e.logger.Error("No text extracted from PDF",
			slog.String("filename", filename),
			slog.Int("total_pages", totalPages))
		return nil, &ParseError{Filename: filename, Err: fmt.Errorf("no text content extracted from PDF")}
	}

	if assessNeedsOCR(totalChars, totalPages) {
		e.logger.Warn("Document may need OCR, text extraction may be incomplete",
			slog.String("filename", filename),
			slog.Int("total_chars", totalChars),
			slog.Int("total_pages", totalPages))
	}

	e.logger.Info("Successfully extracted text from PDF",
		slog.String("filename", filename),
		slog.Int("total_pages", totalPages),
		slog.Int("total_text_length", totalChars))

	return doc, nil
}

// WordExtractor extracts text blocks from .doc/.docx bytes via docconv.
// Word documents carry no page layout, so everything lands on a single
// synthetic page.
type WordExtractor struct {
	logger *slog.Logger
}

func NewWordExtractor(logger *slog.Logger) *WordExtractor {
	return &WordExtractor{logger: logger}
}

func (e *WordExtractor) Extract(filename string, data []byte) (*rag_type.ParsedDocument, error) {
	mimeType := "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	result, err := docconv.Convert(bytes.NewReader(data), mimeType, false)
	if err != nil {
		e.logger.Error("Failed to convert Word document",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
			slog.Int("data_size", len(data)))
		return nil, &ParseError{Filename: filename, Err: fmt.Errorf("failed to convert Word document: %w", err)}
	}

	if len(result.Body) == 0 {
		return nil, &ParseError{Filename: filename, Err: fmt.Errorf("no text content extracted from Word document")}
	}

	e.logger.Info("Successfully extracted text from Word document",
		slog.String("filename", filename),
		slog.Int("text_length", len(result.Body)))

	return &rag_type.ParsedDocument{
		Filename:   filename,
		TotalPages: 1,
		Pages: []rag_type.ParsedPage{
			{PageNumber: 1, Blocks: splitIntoBlocks(result.Body)},
		},
	}, nil
}

// splitIntoBlocks cuts extracted page text on blank-line boundaries and tags
// each block with a content-type hint.
func splitIntoBlocks(text string) []rag_type.TextBlock {
	var blocks []rag_type.TextBlock
	for _, part := range paragraphSplitRe.Split(text, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		blocks = append(blocks, rag_type.TextBlock{
			BlockIndex: len(blocks),
			BlockType:  DetectContentType(part),
			Text:       part,
		})
	}
	return blocks
}

func assessNeedsOCR(totalChars, totalPages int) bool {
	if totalPages == 0 {
		return true
	}
	return totalChars/totalPages < scannedCharsThreshold
}
