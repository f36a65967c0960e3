package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/serisow/parchemin/services/rag_service"
)

const (
	maxQuestionLength = 10000
	maxTopK           = 20
)

type QueryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

// QueryHandler answers questions over the ingested corpus.
type QueryHandler struct {
	retriever *rag_service.Retriever
	logger    *slog.Logger
}

func NewQueryHandler(retriever *rag_service.Retriever, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{
		retriever: retriever,
		logger:    logger,
	}
}

func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request body",
			slog.String("error", err.Error()))
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Question == "" {
		writeJSONError(w, "Question must not be empty", http.StatusBadRequest)
		return
	}
	if len(req.Question) > maxQuestionLength {
		writeJSONError(w, "Question too long", http.StatusBadRequest)
		return
	}
	if req.TopK < 0 || req.TopK > maxTopK {
		writeJSONError(w, "top_k out of range", http.StatusBadRequest)
		return
	}

	response, err := h.retriever.Query(r.Context(), req.Question, req.TopK)
	if err != nil {
		h.logger.Error("Query failed",
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to answer question", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, response)
}
