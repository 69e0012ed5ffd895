// Package schedule ties the stores to per-coach calendar containers. Every
// mutation is written to the database first and then applied to the cached
// container, so the cache never shows a state the database does not hold.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dukerupert/coachcal/internal/calendar"
	"github.com/dukerupert/coachcal/internal/editor"
	"github.com/dukerupert/coachcal/internal/model"
	"github.com/dukerupert/coachcal/internal/recurrence"
	"github.com/dukerupert/coachcal/internal/store"
	"github.com/dukerupert/coachcal/internal/timeofday"
	"github.com/dukerupert/coachcal/internal/websocket"
)

var (
	ErrCoachNotFound = errors.New("schedule: coach not found")
	ErrWrongCoach    = errors.New("schedule: record belongs to another coach")
)

// Broadcaster receives change notifications. *websocket.Hub implements it.
type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

type Config struct {
	MaxEvents int
	Location  *time.Location
	CacheSize int
}

type Service struct {
	coaches      *store.CoachStore
	availability *store.AvailabilityStore
	meetings     *store.MeetingStore
	moves        *store.MoveStore
	hub          Broadcaster
	logger       *slog.Logger
	cfg          Config

	mu    sync.Mutex
	cache *lru.Cache[int64, *calendar.Calendar]
}

func NewService(
	coaches *store.CoachStore,
	availability *store.AvailabilityStore,
	meetings *store.MeetingStore,
	moves *store.MoveStore,
	hub Broadcaster,
	logger *slog.Logger,
	cfg Config,
) (*Service, error) {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = recurrence.DefaultMaxEvents
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	cache, err := lru.New[int64, *calendar.Calendar](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create calendar cache: %w", err)
	}
	return &Service{
		coaches:      coaches,
		availability: availability,
		meetings:     meetings,
		moves:        moves,
		hub:          hub,
		logger:       logger,
		cfg:          cfg,
		cache:        cache,
	}, nil
}

// load returns the coach's container, building it from the stores on a
// cache miss. Callers hold s.mu.
func (s *Service) load(ctx context.Context, coachID int64) (*calendar.Calendar, error) {
	if cal, ok := s.cache.Get(coachID); ok {
		return cal, nil
	}
	cal, err := s.build(ctx, coachID, s.cfg.MaxEvents)
	if err != nil {
		return nil, err
	}
	s.cache.Add(coachID, cal)
	return cal, nil
}

func (s *Service) build(ctx context.Context, coachID int64, maxEvents int) (*calendar.Calendar, error) {
	coach, err := s.coaches.GetByID(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("load coach: %w", err)
	}
	if coach == nil {
		return nil, fmt.Errorf("%w: %d", ErrCoachNotFound, coachID)
	}

	records, err := s.availability.ListByCoach(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	external, err := s.externalEvents(ctx, coachID)
	if err != nil {
		return nil, err
	}
	moves, err := s.moves.ListByCoach(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("load moves: %w", err)
	}

	opts := calendar.Options{MaxEvents: maxEvents, Location: coach.Location(s.cfg.Location), CoachID: coachID}
	return calendar.New(records, external, moves, opts), nil
}

func (s *Service) externalEvents(ctx context.Context, coachID int64) ([]model.CalendarEvent, error) {
	meetings, err := s.meetings.ListByCoach(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("load meetings: %w", err)
	}
	events := make([]model.CalendarEvent, len(meetings))
	for i, m := range meetings {
		events[i] = m.Event()
	}
	return events, nil
}

// Events returns the unified list for a coach. A positive maxEvents other
// than the configured horizon builds an uncached container for that
// request.
func (s *Service) Events(ctx context.Context, coachID int64, maxEvents int) ([]model.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxEvents > 0 && maxEvents != s.cfg.MaxEvents {
		cal, err := s.build(ctx, coachID, maxEvents)
		if err != nil {
			return nil, err
		}
		return cal.Events(), nil
	}

	cal, err := s.load(ctx, coachID)
	if err != nil {
		return nil, err
	}
	return cal.Events(), nil
}

func (s *Service) Records(ctx context.Context, coachID int64) ([]model.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load(ctx, coachID)
	if err != nil {
		return nil, err
	}
	return cal.Records(), nil
}

// Record returns one record, or nil when the coach has no record with id.
func (s *Service) Record(ctx context.Context, coachID int64, id string) (model.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load(ctx, coachID)
	if err != nil {
		return nil, err
	}
	a, ok := cal.Record(id)
	if !ok {
		return nil, nil
	}
	return a, nil
}

// Location is the zone a coach's wall-clock times are anchored in.
func (s *Service) Location(ctx context.Context, coachID int64) (*time.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load(ctx, coachID)
	if err != nil {
		return nil, err
	}
	return cal.Options().Location, nil
}

// Save creates the record or, when its id is already known, replaces it.
func (s *Service) Save(ctx context.Context, a model.Availability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coachID := a.Owner()
	cal, err := s.load(ctx, coachID)
	if err != nil {
		return err
	}

	action := "created"
	var applyErr error
	if _, exists := cal.Record(a.AvailabilityID()); exists {
		action = "updated"
		if err := s.availability.Update(ctx, a); err != nil {
			return err
		}
		if err := s.moves.DeleteByAvailability(ctx, coachID, a.AvailabilityID()); err != nil {
			return err
		}
		applyErr = cal.Edit(a)
	} else {
		existing, err := s.availability.GetByID(ctx, a.AvailabilityID())
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", ErrWrongCoach, a.AvailabilityID())
		}
		if err := s.availability.Create(ctx, a); err != nil {
			return err
		}
		applyErr = cal.Add(a)
	}
	if applyErr != nil {
		s.cache.Remove(coachID)
		return applyErr
	}

	s.logger.Info("availability saved", "coach_id", coachID, "id", a.AvailabilityID(), "kind", a.Kind(), "action", action)
	s.notify("availability", action, coachID, a.AvailabilityID(), map[string]any{"kind": string(a.Kind())})
	return nil
}

func (s *Service) Delete(ctx context.Context, coachID int64, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load(ctx, coachID)
	if err != nil {
		return err
	}
	if _, ok := cal.Record(id); !ok {
		return fmt.Errorf("%w: %s", calendar.ErrNotFound, id)
	}

	if err := s.availability.Delete(ctx, coachID, id); err != nil {
		return err
	}
	if err := s.moves.DeleteByAvailability(ctx, coachID, id); err != nil {
		return err
	}
	if err := cal.Delete(id); err != nil {
		s.cache.Remove(coachID)
		return err
	}

	s.logger.Info("availability deleted", "coach_id", coachID, "id", id)
	s.notify("availability", "deleted", coachID, id, nil)
	return nil
}

// Move drags one displayed event. The availability record is not changed.
func (s *Service) Move(ctx context.Context, coachID int64, eventID string, start, end time.Time) (model.EventMove, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load(ctx, coachID)
	if err != nil {
		return model.EventMove{}, err
	}
	if !end.After(start) {
		return model.EventMove{}, calendar.ErrInvalidSpan
	}
	ev, ok := cal.Event(eventID)
	if !ok {
		return model.EventMove{}, fmt.Errorf("%w: %s", calendar.ErrEventNotFound, eventID)
	}

	m := model.EventMove{
		EventID:        eventID,
		CoachID:        coachID,
		AvailabilityID: ev.AvailabilityID,
		Start:          start,
		End:            end,
	}
	if err := s.moves.Upsert(ctx, m); err != nil {
		return model.EventMove{}, err
	}
	if _, err := cal.Move(eventID, start, end); err != nil {
		s.cache.Remove(coachID)
		return model.EventMove{}, err
	}

	s.notify("event", "moved", coachID, eventID, map[string]any{"availability_id": ev.AvailabilityID})
	return m, nil
}

// Promote turns a moved single-availability event into an edit of its
// record.
func (s *Service) Promote(ctx context.Context, coachID int64, eventID string) (model.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load(ctx, coachID)
	if err != nil {
		return nil, err
	}
	a, err := cal.Promote(eventID)
	if err != nil {
		return nil, err
	}

	// The container already holds the edit; drop it if the write fails.
	if err := s.availability.Update(ctx, a); err != nil {
		s.cache.Remove(coachID)
		return nil, err
	}
	if err := s.moves.DeleteByAvailability(ctx, coachID, a.AvailabilityID()); err != nil {
		s.cache.Remove(coachID)
		return nil, err
	}

	s.logger.Info("move promoted", "coach_id", coachID, "event_id", eventID, "id", a.AvailabilityID())
	s.notify("availability", "updated", coachID, a.AvailabilityID(), map[string]any{"kind": string(a.Kind())})
	return a, nil
}

func (s *Service) AddMeeting(ctx context.Context, m model.Meeting) (*model.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load(ctx, m.CoachID)
	if err != nil {
		return nil, err
	}
	created, err := s.meetings.Create(ctx, m)
	if err != nil {
		return nil, err
	}
	if err := s.refreshExternal(ctx, m.CoachID, cal); err != nil {
		return nil, err
	}

	s.notify("meeting", "created", m.CoachID, created.ID, nil)
	return created, nil
}

// ImportMeetings upserts meetings by id and returns how many were written.
func (s *Service) ImportMeetings(ctx context.Context, coachID int64, meetings []model.Meeting) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load(ctx, coachID)
	if err != nil {
		return 0, err
	}
	for i, m := range meetings {
		m.CoachID = coachID
		if err := s.meetings.Upsert(ctx, m); err != nil {
			return i, err
		}
	}
	if err := s.refreshExternal(ctx, coachID, cal); err != nil {
		return len(meetings), err
	}

	s.logger.Info("meetings imported", "coach_id", coachID, "count", len(meetings))
	s.notify("meeting", "imported", coachID, "", map[string]any{"count": len(meetings)})
	return len(meetings), nil
}

func (s *Service) Meetings(ctx context.Context, coachID int64) ([]model.Meeting, error) {
	return s.meetings.ListByCoach(ctx, coachID)
}

func (s *Service) DeleteMeeting(ctx context.Context, coachID int64, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load(ctx, coachID)
	if err != nil {
		return err
	}
	if err := s.meetings.Delete(ctx, coachID, id); err != nil {
		return err
	}
	if err := s.moves.DeleteByEvent(ctx, coachID, id); err != nil {
		return err
	}
	if err := s.refreshExternal(ctx, coachID, cal); err != nil {
		return err
	}

	s.notify("meeting", "deleted", coachID, id, nil)
	return nil
}

func (s *Service) refreshExternal(ctx context.Context, coachID int64, cal *calendar.Calendar) error {
	external, err := s.externalEvents(ctx, coachID)
	if err != nil {
		s.cache.Remove(coachID)
		return err
	}
	cal.SetExternal(external)
	return nil
}

// Invalidate drops a coach's cached container; the next read rebuilds it.
func (s *Service) Invalidate(coachID int64) {
	s.mu.Lock()
	s.cache.Remove(coachID)
	s.mu.Unlock()
}

type PurgeResult struct {
	Availabilities int64
	Moves          int64
	Coaches        []int64
}

// Purge deletes records that ended more than retention before now, along
// with moves whose span ended before the same cutoff.
func (s *Service) Purge(ctx context.Context, now time.Time, retention time.Duration) (PurgeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-retention)
	var res PurgeResult

	coaches, n, err := s.availability.DeleteExpired(ctx, timeofday.DateOf(cutoff.In(s.cfg.Location)))
	if err != nil {
		return res, fmt.Errorf("purge availability: %w", err)
	}
	res.Availabilities = n
	res.Coaches = coaches

	moved, err := s.moves.DeleteBefore(ctx, cutoff)
	if err != nil {
		return res, fmt.Errorf("purge moves: %w", err)
	}
	res.Moves = moved

	if moved > 0 {
		s.cache.Purge()
	} else {
		for _, id := range coaches {
			s.cache.Remove(id)
		}
	}
	return res, nil
}

// Persister binds the service to one coach for the editor.
func (s *Service) Persister(coachID int64) editor.Persister {
	return coachPersister{svc: s, coachID: coachID}
}

type coachPersister struct {
	svc     *Service
	coachID int64
}

func (p coachPersister) Save(ctx context.Context, a model.Availability) error {
	if a.Owner() != p.coachID {
		return fmt.Errorf("%w: %s", ErrWrongCoach, a.AvailabilityID())
	}
	return p.svc.Save(ctx, a)
}

func (p coachPersister) Delete(ctx context.Context, id string) error {
	return p.svc.Delete(ctx, p.coachID, id)
}

// MaxEvents is the configured horizon.
func (s *Service) MaxEvents() int {
	return s.cfg.MaxEvents
}

func (s *Service) notify(entity, action string, coachID int64, id string, extra map[string]any) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(websocket.NewMessage(entity, action, coachID, id, extra))
}
