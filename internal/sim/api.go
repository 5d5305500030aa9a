package sim

import (
	"encoding/json"
	"net/http"

	"github.com/docbox-health/docbox/internal/patient"
	"github.com/docbox-health/docbox/internal/shared/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler provides HTTP handlers for simulation control
type Handler struct {
	engine *Engine
}

// NewHandler creates a new simulation handler
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// Routes registers the simulation control routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/state", h.GetState)
	r.Post("/start", h.Start)
	r.Post("/stop", h.Stop)
	r.Post("/reset", h.Reset)
	r.Post("/step", h.Step)
	r.Post("/speed", h.SetSpeed)
	r.Post("/mode", h.SetMode)
	r.Post("/inject", h.Inject)

	return r
}

// GetState returns the current simulation state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.State())
}

// Start resumes the simulation clock
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.engine.Start()
	writeJSON(w, http.StatusOK, h.engine.State())
}

// Stop pauses the simulation clock
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	h.engine.Stop()
	writeJSON(w, http.StatusOK, h.engine.State())
}

// Reset clears the board and returns the simulation to tick zero
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.engine.Reset()
	writeJSON(w, http.StatusOK, h.engine.State())
}

// Step advances exactly one tick, whether or not the clock is running
func (h *Handler) Step(w http.ResponseWriter, r *http.Request) {
	tick := h.engine.Step()
	writeJSON(w, http.StatusOK, map[string]any{
		"tick":  tick,
		"state": h.engine.State(),
	})
}

// SetSpeed changes the speed multiplier
func (h *Handler) SetSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := h.engine.SetSpeed(req.Speed); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.State())
}

// SetMode changes the simulation mode
func (h *Handler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode Mode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := h.engine.SetMode(req.Mode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.State())
}

// Inject adds a patient to the board immediately
func (h *Handler) Inject(w http.ResponseWriter, r *http.Request) {
	var p patient.Patient
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if p.Name == "" {
		writeError(w, errors.Validation("name is required", map[string]string{"name": "required"}))
		return
	}
	if p.PID == "" {
		p.PID = uuid.New().String()
	}
	if p.Color == "" {
		p.Color = p.DefaultColor()
	}

	added, err := h.engine.InjectNow(p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
