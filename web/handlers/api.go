// Package handlers provides the HTTP handlers and middleware for the Factum
// dashboard. The dashboard is a read-only view over the memory store; all
// mutations go through the MCP tool layer.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/factumhq/factum/internal/engine"
	"github.com/factumhq/factum/internal/storage"
	"github.com/factumhq/factum/pkg/types"
)

// dashboardEngine is the read-only subset of engine.Engine the dashboard
// uses.
type dashboardEngine interface {
	Get(ctx context.Context, id string) (*types.Memory, error)
	GetAll(ctx context.Context, limit, offset int) ([]*types.Memory, error)
	Search(ctx context.Context, query string) ([]*types.Memory, error)
	SmartSearch(ctx context.Context, query string) ([]engine.ScoredMemory, error)
	GetRelated(ctx context.Context, id string) ([]*types.Memory, error)
	Stats(ctx context.Context) (*types.Stats, error)
}

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// APIHandlers contains the HTTP handlers for the dashboard REST API.
type APIHandlers struct {
	engine dashboardEngine
	logger *log.Logger
}

// NewAPIHandlers creates an APIHandlers instance over the given engine.
func NewAPIHandlers(eng dashboardEngine) *APIHandlers {
	return &APIHandlers{
		engine: eng,
		logger: log.New(os.Stderr).With("component", "web"),
	}
}

// Register mounts the API routes on mux.
func (h *APIHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/memories", h.ListMemories)
	mux.HandleFunc("GET /api/memories/{id}", h.GetMemory)
	mux.HandleFunc("GET /api/memories/{id}/related", h.GetRelated)
	mux.HandleFunc("GET /api/search", h.Search)
	mux.HandleFunc("GET /api/stats", h.Stats)
}

// ListMemories handles GET /api/memories with limit/offset pagination.
func (h *APIHandlers) ListMemories(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 0)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	memories, err := h.engine.GetAll(r.Context(), limit, offset)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to list memories", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"memories": memories,
		"count":    len(memories),
	})
}

// GetMemory handles GET /api/memories/{id}. Expired memories read as 404.
func (h *APIHandlers) GetMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	m, err := h.engine.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to load memory", err)
		return
	}
	if m == nil {
		respondJSON(w, http.StatusNotFound, ErrorResponse{Error: "memory not found", Code: "NOT_FOUND"})
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// GetRelated handles GET /api/memories/{id}/related.
func (h *APIHandlers) GetRelated(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	memories, err := h.engine.GetRelated(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondJSON(w, http.StatusNotFound, ErrorResponse{Error: "memory not found", Code: "NOT_FOUND"})
			return
		}
		h.respondError(w, http.StatusInternalServerError, "failed to load related memories", err)
		return
	}
	if memories == nil {
		memories = []*types.Memory{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"memories": memories,
		"count":    len(memories),
	})
}

// Search handles GET /api/search. The default mode is a plain substring
// match; mode=smart switches to relevance-ranked results.
func (h *APIHandlers) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "query parameter q is required", Code: "BAD_REQUEST"})
		return
	}

	if r.URL.Query().Get("mode") == "smart" {
		scored, err := h.engine.SmartSearch(r.Context(), query)
		if err != nil {
			h.respondError(w, http.StatusInternalServerError, "search failed", err)
			return
		}
		if scored == nil {
			scored = []engine.ScoredMemory{}
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"matches": scored,
			"count":   len(scored),
		})
		return
	}

	memories, err := h.engine.Search(r.Context(), query)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "search failed", err)
		return
	}
	if memories == nil {
		memories = []*types.Memory{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"memories": memories,
		"count":    len(memories),
	})
}

// Stats handles GET /api/stats.
func (h *APIHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to compute stats", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *APIHandlers) respondError(w http.ResponseWriter, status int, msg string, err error) {
	h.logger.Error(msg, "error", err)
	respondJSON(w, status, ErrorResponse{Error: msg, Code: http.StatusText(status)})
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func parseInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
