package adjudication

import (
	"encoding/json"
	"net/http"

	"github.com/docbox-health/docbox/internal/patient"
	"github.com/docbox-health/docbox/internal/shared/errors"
	"github.com/docbox-health/docbox/internal/shared/metrics"
	"github.com/go-chi/chi/v5"
)

// Engine is the simulation surface the reject flow needs
type Engine interface {
	RejectDischarge(pid string, timeToDischarge int64, labs []patient.LabResult, note string) (patient.Patient, error)
	Tick() int64
	Patient(pid string) (patient.Patient, bool)
}

// Handler provides the discharge-rejection endpoint
type Handler struct {
	adjudicator Adjudicator
	engine      Engine
}

// NewHandler creates a new adjudication handler
func NewHandler(adjudicator Adjudicator, engine Engine) *Handler {
	return &Handler{adjudicator: adjudicator, engine: engine}
}

// Routes registers the adjudication routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Reject)
	return r
}

// Reject adjudicates a rejected discharge recommendation and applies
// the outcome to the patient.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PID  string `json:"pid"`
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.PID == "" {
		writeError(w, errors.Validation("pid is required", map[string]string{"pid": "required"}))
		return
	}

	p, ok := h.engine.Patient(req.PID)
	if !ok {
		writeError(w, errors.NotFound("patient", req.PID))
		return
	}

	tick := h.engine.Tick()
	result, err := h.adjudicator.Adjudicate(r.Context(), p, req.Note, tick)
	if err != nil {
		metrics.RecordAdjudication("error")
		writeError(w, errors.Unavailable("adjudication failed"))
		return
	}

	updated, err := h.engine.RejectDischarge(req.PID, result.TimeToDischarge, result.AdditionalLabs, req.Note)
	if err != nil {
		metrics.RecordAdjudication("rejected")
		writeError(w, err)
		return
	}
	metrics.RecordAdjudication("applied")

	writeJSON(w, http.StatusOK, map[string]any{
		"patient":           updated,
		"time_to_discharge": result.TimeToDischarge,
		"additional_labs":   result.AdditionalLabs,
		"reasoning":         result.Reasoning,
	})
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
