package server

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/coachcal/internal/handler"
	"github.com/dukerupert/coachcal/internal/middleware"
	"github.com/dukerupert/coachcal/internal/schedule"
	"github.com/dukerupert/coachcal/internal/store"
	ws "github.com/dukerupert/coachcal/internal/websocket"
)

type Options struct {
	MaxEvents        int
	Location         *time.Location
	CacheSize        int
	PINAttempts      int
	PINWindow        time.Duration
	WebSocketOrigins []string
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	service       *schedule.Service
	coachH        *handler.CoachHandler
	availabilityH *handler.AvailabilityHandler
	eventH        *handler.EventHandler
	meetingH      *handler.MeetingHandler
	rateLimiter   *middleware.RateLimiter
	pinGuard      *middleware.PINGuard
	opts          Options
	logger        *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) (*Server, error) {
	if opts.PINAttempts <= 0 {
		opts.PINAttempts = 5
	}
	if opts.PINWindow <= 0 {
		opts.PINWindow = 15 * time.Minute
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	coachStore := store.NewCoachStore(db)
	availabilityStore := store.NewAvailabilityStore(db)
	meetingStore := store.NewMeetingStore(db)
	moveStore := store.NewMoveStore(db)

	svc, err := schedule.NewService(coachStore, availabilityStore, meetingStore, moveStore, hub,
		logger.With("component", "schedule"),
		schedule.Config{MaxEvents: opts.MaxEvents, Location: opts.Location, CacheSize: opts.CacheSize},
	)
	if err != nil {
		return nil, fmt.Errorf("create schedule service: %w", err)
	}

	rateLimiter := middleware.NewRateLimiter()
	guard := middleware.NewPINGuard(handler.PINSource(coachStore), rateLimiter, opts.PINAttempts, opts.PINWindow)

	return &Server{
		db:            db,
		hub:           hub,
		service:       svc,
		coachH:        handler.NewCoachHandler(coachStore, svc, guard, logger.With("component", "coach")),
		availabilityH: handler.NewAvailabilityHandler(svc, coachStore, logger.With("component", "availability")),
		eventH:        handler.NewEventHandler(svc, logger.With("component", "event")),
		meetingH:      handler.NewMeetingHandler(svc, logger.With("component", "meeting")),
		rateLimiter:   rateLimiter,
		pinGuard:      guard,
		opts:          opts,
		logger:        logger,
	}, nil
}

// Service returns the schedule service for background jobs.
func (s *Server) Service() *schedule.Service {
	return s.service
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.Health(s.db))
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket"), s.opts.WebSocketOrigins))
	mux.HandleFunc("GET /coaches/{id}/availability.ics", s.availabilityH.Feed)

	// Coach routes
	mux.HandleFunc("GET /api/coaches", s.coachH.List)
	mux.HandleFunc("POST /api/coaches", s.rateLimitedHandler(s.coachH.Create))
	mux.HandleFunc("GET /api/coaches/{id}", s.coachH.Get)
	mux.Handle("PUT /api/coaches/{id}", s.protected(s.coachH.Update))
	mux.Handle("DELETE /api/coaches/{id}", s.protected(s.coachH.Delete))

	// PIN routes
	mux.Handle("POST /api/coaches/{id}/pin", s.protected(s.coachH.SetPIN))
	mux.Handle("DELETE /api/coaches/{id}/pin", s.protected(s.coachH.ClearPIN))
	mux.HandleFunc("POST /api/coaches/{id}/pin/verify", s.coachH.VerifyPIN)

	// Availability routes
	mux.HandleFunc("GET /api/coaches/{id}/availability", s.availabilityH.List)
	mux.Handle("POST /api/coaches/{id}/availability", s.protected(s.availabilityH.Create))
	mux.Handle("PUT /api/coaches/{id}/availability/{aid}", s.protected(s.availabilityH.Update))
	mux.Handle("DELETE /api/coaches/{id}/availability/{aid}", s.protected(s.availabilityH.Delete))

	// Event routes
	mux.HandleFunc("GET /api/coaches/{id}/events", s.eventH.List)
	mux.Handle("PATCH /api/coaches/{id}/events/{eid}", s.protected(s.eventH.Move))
	mux.Handle("POST /api/coaches/{id}/events/{eid}/promote", s.protected(s.eventH.Promote))

	// Meeting routes
	mux.HandleFunc("GET /api/coaches/{id}/meetings", s.meetingH.List)
	mux.Handle("POST /api/coaches/{id}/meetings", s.protected(s.meetingH.Create))
	mux.Handle("DELETE /api/coaches/{id}/meetings/{mid}", s.protected(s.meetingH.Delete))
	mux.Handle("POST /api/coaches/{id}/meetings/import", s.protected(s.meetingH.Import))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

// protected requires the coach PIN when one is set.
func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return s.pinGuard.Require(h)
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.KeyByIP, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(h).ServeHTTP(w, r)
	}
}
