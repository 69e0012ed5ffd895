package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/coachcal/internal/editor"
	"github.com/dukerupert/coachcal/internal/ics"
	"github.com/dukerupert/coachcal/internal/model"
	"github.com/dukerupert/coachcal/internal/schedule"
	"github.com/dukerupert/coachcal/internal/store"
)

// AvailabilityHandler runs every create, edit and delete through an
// editor.Editor, so HTTP clients get the same validation as the form.
type AvailabilityHandler struct {
	svc     *schedule.Service
	coaches *store.CoachStore
	logger  *slog.Logger
}

func NewAvailabilityHandler(svc *schedule.Service, coaches *store.CoachStore, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc, coaches: coaches, logger: logger}
}

type availabilityRequest struct {
	Type string `json:"type"`
	editor.Form
}

func (h *AvailabilityHandler) editor(coachID int64) *editor.Editor {
	return editor.New(h.svc.Persister(coachID), editor.WithCoach(coachID))
}

func (h *AvailabilityHandler) List(w http.ResponseWriter, r *http.Request) {
	coachID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	records, err := h.svc.Records(r.Context(), coachID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list availability")
		return
	}

	out := make([]model.AvailabilityRecord, len(records))
	for i, a := range records {
		out[i] = model.Record(a)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AvailabilityHandler) Create(w http.ResponseWriter, r *http.Request) {
	coachID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Type == "" {
		req.Type = string(editor.TabSingle)
	}
	tab, err := editor.ParseTab(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, "type must be single or recurring")
		return
	}

	ed := h.editor(coachID)
	if err := ed.Open(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open editor")
		return
	}
	if err := ed.SelectTab(tab); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to select tab")
		return
	}
	if err := ed.SetForm(req.Form); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to set form")
		return
	}

	a, err := ed.Save(r.Context())
	if err != nil {
		h.writeEditorError(w, err, "failed to create availability")
		return
	}
	writeJSON(w, http.StatusCreated, model.Record(a))
}

// Update replaces a record. The kind cannot change on edit; a "type" in
// the body is ignored.
func (h *AvailabilityHandler) Update(w http.ResponseWriter, r *http.Request) {
	coachID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, ok := h.lookup(w, r, coachID)
	if !ok {
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ed := h.editor(coachID)
	if err := ed.OpenEdit(existing); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open editor")
		return
	}
	if err := ed.SetForm(req.Form); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to set form")
		return
	}

	a, err := ed.Save(r.Context())
	if err != nil {
		h.writeEditorError(w, err, "failed to update availability")
		return
	}
	writeJSON(w, http.StatusOK, model.Record(a))
}

func (h *AvailabilityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	coachID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, ok := h.lookup(w, r, coachID)
	if !ok {
		return
	}

	ed := h.editor(coachID)
	if err := ed.OpenEdit(existing); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open editor")
		return
	}
	if err := ed.Delete(r.Context()); err != nil {
		h.writeEditorError(w, err, "failed to delete availability")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Feed serves the coach's availability as an iCalendar subscription.
func (h *AvailabilityHandler) Feed(w http.ResponseWriter, r *http.Request) {
	coachID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	coach, err := h.coaches.GetByID(r.Context(), coachID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get coach")
		return
	}
	if coach == nil {
		writeError(w, http.StatusNotFound, "coach not found")
		return
	}

	records, err := h.svc.Records(r.Context(), coachID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list availability")
		return
	}
	loc, err := h.svc.Location(r.Context(), coachID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to resolve timezone")
		return
	}

	body, err := ics.Export(*coach, records, loc, time.Now())
	if err != nil {
		h.logger.Error("export availability", "coach_id", coachID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="availability.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

func (h *AvailabilityHandler) lookup(w http.ResponseWriter, r *http.Request, coachID int64) (model.Availability, bool) {
	aid := r.PathValue("aid")
	existing, err := h.svc.Record(r.Context(), coachID, aid)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to get availability")
		return nil, false
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "availability not found")
		return nil, false
	}
	return existing, true
}

func (h *AvailabilityHandler) writeEditorError(w http.ResponseWriter, err error, fallback string) {
	var verr *editor.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
		return
	}
	// TransportError unwraps to the service failure.
	writeServiceError(w, h.logger, err, fallback)
}
