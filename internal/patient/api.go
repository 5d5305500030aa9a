package patient

import (
	"encoding/json"
	"net/http"

	"github.com/docbox-health/docbox/internal/shared/errors"
	"github.com/go-chi/chi/v5"
)

// Actions is the set of staff-initiated transitions the API exposes.
// The simulation engine implements it; routing transitions through the
// engine keeps UI actions on the same logging and versioning paths as
// automatic ones.
type Actions interface {
	Delete(pid string) bool
	Accept(pid string) (Patient, error)
	AssignBed(pid string, bed int) (Patient, error)
	AutoAssignBed(pid string) (Patient, error)
	FlagForDischarge(pid string) (Patient, error)
	Discharge(pid string) (Patient, error)
	Transfer(pid string, to Status) (Patient, error)
	MarkDone(pid string) (Patient, error)
	AcknowledgeLabs(pid string) (Patient, error)
}

// Handler provides HTTP handlers for the patient module
type Handler struct {
	store   *Store
	actions Actions
}

// NewHandler creates a new patient handler
func NewHandler(store *Store, actions Actions) *Handler {
	return &Handler{store: store, actions: actions}
}

// Routes registers the patient routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListPatients)
	r.Route("/{pid}", func(r chi.Router) {
		r.Get("/", h.GetPatient)
		r.Patch("/", h.UpdatePatient)
		r.Delete("/", h.DeletePatient)

		r.Post("/accept", h.Accept)
		r.Post("/assign-bed", h.AssignBed)
		r.Post("/flag-discharge", h.FlagForDischarge)
		r.Post("/discharge", h.Discharge)
		r.Post("/transfer", h.Transfer)
		r.Post("/done", h.MarkDone)
		r.Post("/acknowledge-labs", h.AcknowledgeLabs)
	})

	return r
}

// ListPatients returns all patients in insertion order
func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	patients := h.store.List()
	if patients == nil {
		patients = []Patient{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"patients": patients,
		"total":    len(patients),
	})
}

// GetPatient returns a single patient
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	p, ok := h.store.Get(pid)
	if !ok {
		writeError(w, errors.NotFound("patient", pid))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdatePatient merges a partial update. A stale version is dropped and
// the stored record returned unchanged.
func (h *Handler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")

	var req struct {
		Patch
		Version *int64 `json:"version,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		writeError(w, errors.Validation("invalid status", map[string]string{"status": "unknown value"}))
		return
	}

	if _, ok := h.store.Get(pid); !ok {
		writeError(w, errors.NotFound("patient", pid))
		return
	}

	updated, applied := h.store.Update(pid, req.Patch, req.Version)
	writeJSON(w, http.StatusOK, map[string]any{
		"patient": updated,
		"applied": applied,
	})
}

// DeletePatient removes a patient from the board
func (h *Handler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	if !h.actions.Delete(pid) {
		writeError(w, errors.NotFound("patient", pid))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Accept moves a called-in patient to the waiting room
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.actions.Accept)
}

// AssignBed places a waiting patient in a bed; without an explicit bed
// number the lowest free bed is used.
func (h *Handler) AssignBed(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")

	var req struct {
		Bed *int `json:"bed,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errors.BadRequest("invalid request body"))
			return
		}
	}

	var (
		updated Patient
		err     error
	)
	if req.Bed != nil {
		updated, err = h.actions.AssignBed(pid, *req.Bed)
	} else {
		updated, err = h.actions.AutoAssignBed(pid)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// FlagForDischarge marks a bedded patient ready for discharge
func (h *Handler) FlagForDischarge(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.actions.FlagForDischarge)
}

// Discharge completes a bedded patient's stay
func (h *Handler) Discharge(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.actions.Discharge)
}

// Transfer moves a bedded patient to the OR or ICU
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")

	var req struct {
		To Status `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	updated, err := h.actions.Transfer(pid, req.To)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// MarkDone completes an OR/ICU patient
func (h *Handler) MarkDone(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.actions.MarkDone)
}

// AcknowledgeLabs acknowledges a patient's surprising labs
func (h *Handler) AcknowledgeLabs(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.actions.AcknowledgeLabs)
}

func (h *Handler) action(w http.ResponseWriter, r *http.Request, fn func(pid string) (Patient, error)) {
	pid := chi.URLParam(r, "pid")
	updated, err := fn(pid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
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
