package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/serisow/parchemin/rag_type"
	"github.com/serisow/parchemin/services/rag_service"
)

// IngestHandler accepts a single multipart file upload and runs it through
// the ingestion pipeline.
type IngestHandler struct {
	ingestor      *rag_service.Ingestor
	maxUploadSize int64
	logger        *slog.Logger
}

func NewIngestHandler(ingestor *rag_service.Ingestor, maxUploadSize int64, logger *slog.Logger) *IngestHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = rag_service.DefaultMaxFileSize
	}
	return &IngestHandler{
		ingestor:      ingestor,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Received file upload request")

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		writeJSONError(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "Failed to get file from form", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ingestFile, err := readUpload(file, header, parseMetadata(r))
	if err != nil {
		writeJSONError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	result, err := h.ingestor.Ingest(r.Context(), ingestFile)
	if err != nil {
		h.logger.Error("Ingestion failed",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()))
		writeJSON(w, ingestErrorStatus(err), result)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// BatchIngestHandler accepts multiple files under the "files" form field and
// returns one result per file, in upload order.
type BatchIngestHandler struct {
	batch         *rag_service.BatchIngestor
	maxUploadSize int64
	logger        *slog.Logger
}

func NewBatchIngestHandler(batch *rag_service.BatchIngestor, maxUploadSize int64, logger *slog.Logger) *BatchIngestHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = rag_service.DefaultMaxFileSize
	}
	return &BatchIngestHandler{
		batch:         batch,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

func (h *BatchIngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Received batch upload request")

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		writeJSONError(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		writeJSONError(w, "No files provided under the 'files' field", http.StatusBadRequest)
		return
	}

	metadata := parseMetadata(r)
	headers := r.MultipartForm.File["files"]
	files := make([]rag_type.IngestFile, 0, len(headers))
	for _, header := range headers {
		upload, err := header.Open()
		if err != nil {
			writeJSONError(w, "Failed to open uploaded file", http.StatusInternalServerError)
			return
		}
		ingestFile, err := readUpload(upload, header, metadata)
		upload.Close()
		if err != nil {
			writeJSONError(w, "Failed to read uploaded file", http.StatusInternalServerError)
			return
		}
		files = append(files, ingestFile)
	}

	result := h.batch.IngestBatch(r.Context(), files)
	writeJSON(w, http.StatusOK, result)
}

func readUpload(file multipart.File, header *multipart.FileHeader, metadata map[string]any) (rag_type.IngestFile, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return rag_type.IngestFile{}, err
	}
	return rag_type.IngestFile{
		// Strip any client-supplied directory components.
		Filename: filepath.Base(header.Filename),
		Data:     data,
		Metadata: metadata,
	}, nil
}

// parseMetadata decodes the optional "metadata" form value as a JSON object.
// Malformed metadata is dropped rather than failing the upload.
func parseMetadata(r *http.Request) map[string]any {
	raw := r.FormValue("metadata")
	if raw == "" {
		return nil
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil
	}
	return metadata
}

func ingestErrorStatus(err error) int {
	var validationErr *rag_service.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}
	var parseErr *rag_service.ParseError
	if errors.As(err, &parseErr) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
