package health

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Handler exposes the manager's results over HTTP for probes.
type Handler struct {
	manager *Manager
	logger  *zap.Logger
}

// NewHandler creates an HTTP handler over the manager.
func NewHandler(manager *Manager, logger *zap.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

// Register mounts the probe endpoints on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.handleLiveness)
	mux.HandleFunc("/readyz", h.handleReadiness)
	mux.HandleFunc("/health", h.handleDetailed)
}

// handleLiveness answers 200 whenever the process can serve HTTP.
func (h *Handler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadiness answers 200 only when no critical check is failing.
func (h *Handler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if h.manager.IsReady() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

// handleDetailed returns the full per-check results as JSON.
func (h *Handler) handleDetailed(w http.ResponseWriter, r *http.Request) {
	overall := h.manager.Overall()
	w.Header().Set("Content-Type", "application/json")
	if !overall.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(overall); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}
