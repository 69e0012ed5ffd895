package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/coachcal/internal/ics"
	"github.com/dukerupert/coachcal/internal/model"
	"github.com/dukerupert/coachcal/internal/schedule"
)

const maxImportBytes = 2 << 20

type MeetingHandler struct {
	svc    *schedule.Service
	logger *slog.Logger
}

func NewMeetingHandler(svc *schedule.Service, logger *slog.Logger) *MeetingHandler {
	return &MeetingHandler{svc: svc, logger: logger}
}

func (h *MeetingHandler) List(w http.ResponseWriter, r *http.Request) {
	coachID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	meetings, err := h.svc.Meetings(r.Context(), coachID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list meetings")
		return
	}
	if meetings == nil {
		meetings = []model.Meeting{}
	}
	writeJSON(w, http.StatusOK, meetings)
}

func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	coachID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Title         string    `json:"title"`
		Start         time.Time `json:"start"`
		End           time.Time `json:"end"`
		Attendee      string    `json:"attendee"`
		SessionID     string    `json:"session_id"`
		Location      string    `json:"location"`
		IsYourMeeting bool      `json:"is_your_meeting"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Start.IsZero() || req.End.IsZero() {
		writeError(w, http.StatusBadRequest, "start and end are required (RFC 3339)")
		return
	}
	if !req.End.After(req.Start) {
		writeError(w, http.StatusBadRequest, "end must be after start")
		return
	}

	m, err := h.svc.AddMeeting(r.Context(), model.Meeting{
		CoachID:       coachID,
		Title:         req.Title,
		Start:         req.Start.UTC(),
		End:           req.End.UTC(),
		Attendee:      strings.TrimSpace(req.Attendee),
		SessionID:     strings.TrimSpace(req.SessionID),
		Location:      strings.TrimSpace(req.Location),
		IsYourMeeting: req.IsYourMeeting,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to create meeting")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *MeetingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	coachID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.svc.DeleteMeeting(r.Context(), coachID, r.PathValue("mid")); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete meeting")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Import reads a text/calendar body and upserts its meetings by UID.
// ?yours=true marks them as the viewer's own meetings.
func (h *MeetingHandler) Import(w http.ResponseWriter, r *http.Request) {
	coachID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	yours := false
	if v := r.URL.Query().Get("yours"); v != "" {
		yours, err = strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "yours must be true or false")
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "calendar too large")
		return
	}

	res, err := ics.ImportMeetings(coachID, body, yours)
	if errors.Is(err, ics.ErrEmpty) {
		writeError(w, http.StatusBadRequest, "calendar has no events")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid calendar")
		return
	}

	n, err := h.svc.ImportMeetings(r.Context(), coachID, res.Meetings)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to import meetings")
		return
	}

	skipped := res.Skipped
	if skipped == nil {
		skipped = []ics.SkippedEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"imported": n,
		"skipped":  skipped,
	})
}
