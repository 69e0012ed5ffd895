package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/coachcal/internal/model"
	"github.com/dukerupert/coachcal/internal/schedule"
)

type EventHandler struct {
	svc    *schedule.Service
	logger *slog.Logger
}

func NewEventHandler(svc *schedule.Service, logger *slog.Logger) *EventHandler {
	return &EventHandler{svc: svc, logger: logger}
}

// List returns availability events in record order followed by meetings.
// Clients sort for display.
// max_events overrides the configured per-record cap for this request.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	coachID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	maxEvents := 0
	if v := r.URL.Query().Get("max_events"); v != "" {
		maxEvents, err = strconv.Atoi(v)
		if err != nil || maxEvents <= 0 {
			writeError(w, http.StatusBadRequest, "max_events must be a positive integer")
			return
		}
	}

	events, err := h.svc.Events(r.Context(), coachID, maxEvents)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list events")
		return
	}
	if events == nil {
		events = []model.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// Move drags one event to a new span without touching its availability
// record.
func (h *EventHandler) Move(w http.ResponseWriter, r *http.Request) {
	coachID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Start.IsZero() || req.End.IsZero() {
		writeError(w, http.StatusBadRequest, "start and end are required (RFC 3339)")
		return
	}

	move, err := h.svc.Move(r.Context(), coachID, r.PathValue("eid"), req.Start, req.End)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to move event")
		return
	}
	writeJSON(w, http.StatusOK, move)
}

// Promote turns a moved single-availability event into an edit of the
// record it came from.
func (h *EventHandler) Promote(w http.ResponseWriter, r *http.Request) {
	coachID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	a, err := h.svc.Promote(r.Context(), coachID, r.PathValue("eid"))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to promote move")
		return
	}
	writeJSON(w, http.StatusOK, model.Record(a))
}
