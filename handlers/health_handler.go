package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

type HealthResponse struct {
	Status string          `json:"status"`
	Checks map[string]bool `json:"checks,omitempty"`
}

// HealthHandler exposes liveness and readiness checks.
type HealthHandler struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewHealthHandler(db *pgxpool.Pool, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		logger: logger,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]bool{"database": false}

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err == nil {
			checks["database"] = true
		} else {
			h.logger.Debug("Readiness database ping failed",
				slog.String("error", err.Error()))
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !checks["database"] {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{Status: status, Checks: checks})
}
