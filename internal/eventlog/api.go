package eventlog

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler provides HTTP handlers for the activity log
type Handler struct {
	log *Log
}

// NewHandler creates a new log handler
func NewHandler(log *Log) *Handler {
	return &Handler{log: log}
}

// Routes registers the log routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListEntries)
	return r
}

// ListEntries returns all activity entries in append order
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries := h.log.Entries()
	if entries == nil {
		entries = []Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"entries": entries,
		"total":   len(entries),
	})
}
