package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// PINHeader carries the coach PIN on mutating requests.
const PINHeader = "X-Coach-PIN"

// ErrCoachNotFound is what a PINSource returns for an unknown coach.
var ErrCoachNotFound = errors.New("coach not found")

// PINSource looks up a coach's bcrypt PIN hash; "" means no PIN is set.
type PINSource interface {
	PINHash(ctx context.Context, coachID int64) (string, error)
}

type PINGuard struct {
	pins    PINSource
	limiter *RateLimiter
	limit   int
	window  time.Duration
}

// NewPINGuard allows limit PIN attempts per coach per window.
func NewPINGuard(pins PINSource, limiter *RateLimiter, limit int, window time.Duration) *PINGuard {
	return &PINGuard{pins: pins, limiter: limiter, limit: limit, window: window}
}

// Require rejects requests for a PIN-protected coach (the {id} path value)
// unless PINHeader matches. Coaches without a PIN pass through.
func (g *PINGuard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}

		hash, err := g.pins.PINHash(r.Context(), id)
		if errors.Is(err, ErrCoachNotFound) {
			writeError(w, http.StatusNotFound, "coach not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to check PIN")
			return
		}
		if hash == "" {
			next.ServeHTTP(w, r)
			return
		}

		if !g.Verify(w, r, id, hash, r.Header.Get(PINHeader)) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Verify compares pin with hash, counting the attempt against the rate
// limit. On failure it writes the response and returns false. The limit is
// keyed on the coach alone; forwarding headers are client supplied.
func (g *PINGuard) Verify(w http.ResponseWriter, r *http.Request, coachID int64, hash, pin string) bool {
	key := "pin:" + strconv.FormatInt(coachID, 10)
	if !g.limiter.Allow(key, g.limit, g.window) {
		writeError(w, http.StatusTooManyRequests, "too many PIN attempts")
		return false
	}
	if pin == "" {
		writeError(w, http.StatusUnauthorized, "PIN required")
		return false
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)); err != nil {
		writeError(w, http.StatusUnauthorized, "incorrect PIN")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
