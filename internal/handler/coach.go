package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/coachcal/internal/middleware"
	"github.com/dukerupert/coachcal/internal/model"
	"github.com/dukerupert/coachcal/internal/schedule"
	"github.com/dukerupert/coachcal/internal/store"
)

type CoachHandler struct {
	store  *store.CoachStore
	svc    *schedule.Service
	guard  *middleware.PINGuard
	logger *slog.Logger
}

func NewCoachHandler(s *store.CoachStore, svc *schedule.Service, guard *middleware.PINGuard, logger *slog.Logger) *CoachHandler {
	return &CoachHandler{store: s, svc: svc, guard: guard, logger: logger}
}

// PINSource adapts the coach store to middleware.PINSource.
func PINSource(s *store.CoachStore) middleware.PINSource {
	return coachPINs{s}
}

type coachPINs struct {
	store *store.CoachStore
}

func (p coachPINs) PINHash(ctx context.Context, coachID int64) (string, error) {
	hash, err := p.store.GetPINHash(ctx, coachID)
	if errors.Is(err, store.ErrNotFound) {
		return "", middleware.ErrCoachNotFound
	}
	return hash, err
}

type coachRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

func (req *coachRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Name == "" {
		return "name is required"
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return "timezone must be an IANA zone name (e.g. America/Denver)"
		}
	}
	return ""
}

func (h *CoachHandler) List(w http.ResponseWriter, r *http.Request) {
	coaches, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("list coaches", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list coaches")
		return
	}
	if coaches == nil {
		coaches = []model.Coach{}
	}
	writeJSON(w, http.StatusOK, coaches)
}

func (h *CoachHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req coachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	coach, err := h.store.Create(r.Context(), req.Name, req.Timezone)
	if err != nil {
		h.logger.Error("create coach", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create coach")
		return
	}

	h.logger.Info("coach created", "coach_id", coach.ID)
	writeJSON(w, http.StatusCreated, coach)
}

func (h *CoachHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	coach, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get coach")
		return
	}
	if coach == nil {
		writeError(w, http.StatusNotFound, "coach not found")
		return
	}
	writeJSON(w, http.StatusOK, coach)
}

// Update renames a coach or changes their timezone. A timezone change moves
// every derived event, so the cached calendar is dropped.
func (h *CoachHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req coachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	coach, err := h.store.Update(r.Context(), id, req.Name, req.Timezone)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "coach not found")
		return
	}
	if err != nil {
		h.logger.Error("update coach", "coach_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update coach")
		return
	}

	h.svc.Invalidate(id)
	writeJSON(w, http.StatusOK, coach)
}

func (h *CoachHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	err = h.store.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "coach not found")
		return
	}
	if err != nil {
		h.logger.Error("delete coach", "coach_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete coach")
		return
	}

	h.svc.Invalidate(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *CoachHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.PIN) != 4 || !isDigits(req.PIN) {
		writeError(w, http.StatusBadRequest, "PIN must be exactly 4 digits")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash PIN")
		return
	}

	err = h.store.SetPIN(r.Context(), id, string(hash))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "coach not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to set PIN")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "pin set"})
}

func (h *CoachHandler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	err = h.store.ClearPIN(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "coach not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear PIN")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "pin cleared"})
}

func (h *CoachHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	hash, err := h.store.GetPINHash(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "coach not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get PIN")
		return
	}
	if hash == "" {
		writeError(w, http.StatusBadRequest, "no PIN set for this coach")
		return
	}

	if !h.guard.Verify(w, r, id, hash, req.PIN) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
