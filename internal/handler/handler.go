package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/coachcal/internal/calendar"
	"github.com/dukerupert/coachcal/internal/schedule"
	"github.com/dukerupert/coachcal/internal/store"
)

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps schedule and calendar errors to a status. Anything
// unrecognized is logged and reported as fallback with a 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, schedule.ErrCoachNotFound):
		writeError(w, http.StatusNotFound, "coach not found")
	case errors.Is(err, calendar.ErrNotFound):
		writeError(w, http.StatusNotFound, "availability not found")
	case errors.Is(err, calendar.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, calendar.ErrInvalidSpan):
		writeError(w, http.StatusBadRequest, "end must be after start")
	case errors.Is(err, calendar.ErrNotMoved):
		writeError(w, http.StatusConflict, "event has not been moved")
	case errors.Is(err, calendar.ErrRecurringPromotion):
		writeError(w, http.StatusConflict, "a recurring occurrence cannot be promoted; edit the recurring availability instead")
	case errors.Is(err, schedule.ErrWrongCoach), errors.Is(err, calendar.ErrDuplicateID):
		writeError(w, http.StatusConflict, "availability id belongs to another record")
	default:
		logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
