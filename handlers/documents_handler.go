package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/serisow/parchemin/rag_type"
	"github.com/serisow/parchemin/services/rag_service"
)

type DocumentListResponse struct {
	Documents []rag_type.Document `json:"documents"`
	Count     int                 `json:"count"`
}

type DeleteResponse struct {
	Deleted    bool      `json:"deleted"`
	DocumentID uuid.UUID `json:"document_id"`
}

// DocumentsHandler lists and deletes ingested documents.
type DocumentsHandler struct {
	storage rag_service.Storage
	logger  *slog.Logger
}

func NewDocumentsHandler(storage rag_service.Storage, logger *slog.Logger) *DocumentsHandler {
	return &DocumentsHandler{
		storage: storage,
		logger:  logger,
	}
}

func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.storage.ListDocuments(r.Context())
	if err != nil {
		h.logger.Error("Failed to list documents",
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to list documents", http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []rag_type.Document{}
	}

	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs, Count: len(docs)})
}

func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, "Invalid document id", http.StatusBadRequest)
		return
	}

	deleted, err := h.storage.DeleteDocument(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to delete document",
			slog.String("document_id", id.String()),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to delete document", http.StatusInternalServerError)
		return
	}
	if !deleted {
		writeJSONError(w, "Document not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: true, DocumentID: id})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
