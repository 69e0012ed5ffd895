// Package calendar merges availability-derived events with external events
// and keeps the merged list consistent across record edits and drags.
package calendar

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dukerupert/coachcal/internal/model"
	"github.com/dukerupert/coachcal/internal/recurrence"
	"github.com/dukerupert/coachcal/internal/timeofday"
)

var (
	ErrNotFound           = errors.New("calendar: availability not found")
	ErrDuplicateID        = errors.New("calendar: availability id already exists")
	ErrMissingID          = errors.New("calendar: availability id is empty")
	ErrEventNotFound      = errors.New("calendar: event not found")
	ErrInvalidSpan        = errors.New("calendar: end must be after start")
	ErrNotMoved           = errors.New("calendar: event has not been moved")
	ErrRecurringPromotion = errors.New("calendar: a recurring occurrence cannot be promoted to an edit")
)

// Options control expansion. MaxEvents is the per-rule horizon; Location is
// the zone wall-clock times are anchored in (nil means UTC). CoachID is
// stamped on the moves the container records.
type Options struct {
	MaxEvents int
	Location  *time.Location
	CoachID   int64
}

// DefaultOptions returns the recurrence default cap in UTC.
func DefaultOptions() Options {
	return Options{MaxEvents: recurrence.DefaultMaxEvents, Location: time.UTC}
}

// Build is the pure reconciliation step: records in order, then external
// events in order.
func Build(records []model.Availability, external []model.CalendarEvent, opts Options) []model.CalendarEvent {
	var events []model.CalendarEvent
	for _, a := range records {
		events = append(events, derive(a, opts)...)
	}
	for _, ev := range external {
		events = append(events, normalizeExternal(ev))
	}
	return events
}

func derive(a model.Availability, opts Options) []model.CalendarEvent {
	switch v := a.(type) {
	case model.SingleAvailability:
		return []model.CalendarEvent{recurrence.SingleEvent(v, opts.Location)}
	case model.RecurringAvailability:
		return recurrence.Expand(v, opts.MaxEvents, opts.Location)
	default:
		panic(fmt.Sprintf("calendar: unknown availability variant %T", a))
	}
}

// normalizeExternal keeps an external event's identity and span but clears
// any availability tagging it may carry.
func normalizeExternal(ev model.CalendarEvent) model.CalendarEvent {
	ev.IsAvailability = false
	ev.AvailabilityID = ""
	ev.IsRecurring = false
	ev.ExtendedProps.IsCoachAvailability = false
	return ev
}

// Calendar owns a coach's availability records, the external events shown
// next to them, per-event moves, and the derived event list. It is not safe
// for concurrent use; callers serialize access.
type Calendar struct {
	opts     Options
	records  []model.Availability
	external []model.CalendarEvent
	moves    map[string]model.EventMove
	events   []model.CalendarEvent
}

// New builds a container. Moves that do not match a derived or external
// event are dropped.
func New(records []model.Availability, external []model.CalendarEvent, moves []model.EventMove, opts Options) *Calendar {
	c := &Calendar{
		opts:     opts,
		records:  slices.Clone(records),
		external: slices.Clone(external),
		moves:    make(map[string]model.EventMove, len(moves)),
	}
	for _, m := range moves {
		c.moves[m.EventID] = m
	}
	c.rebuild()
	return c
}

func (c *Calendar) rebuild() {
	events := Build(c.records, c.external, c.opts)
	live := make(map[string]bool, len(events))
	for i := range events {
		live[events[i].ID] = true
		if m, ok := c.moves[events[i].ID]; ok {
			events[i].Start = m.Start
			events[i].End = m.End
		}
	}
	for id := range c.moves {
		if !live[id] {
			delete(c.moves, id)
		}
	}
	c.events = events
}

func (c *Calendar) indexOf(id string) int {
	return slices.IndexFunc(c.records, func(a model.Availability) bool {
		return a.AvailabilityID() == id
	})
}

func (c *Calendar) dropMovesFor(availabilityID string) {
	for id, m := range c.moves {
		if m.AvailabilityID == availabilityID {
			delete(c.moves, id)
		}
	}
}

// Add appends a new record and merges its events.
func (c *Calendar) Add(a model.Availability) error {
	if a.AvailabilityID() == "" {
		return ErrMissingID
	}
	if c.indexOf(a.AvailabilityID()) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, a.AvailabilityID())
	}
	c.records = append(c.records, a)
	c.rebuild()
	return nil
}

// Edit replaces the record with the same id in place and regenerates its
// events. Earlier moves of its occurrences are discarded.
func (c *Calendar) Edit(a model.Availability) error {
	i := c.indexOf(a.AvailabilityID())
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, a.AvailabilityID())
	}
	c.records[i] = a
	c.dropMovesFor(a.AvailabilityID())
	c.rebuild()
	return nil
}

// Delete removes the record and every event derived from it.
func (c *Calendar) Delete(id string) error {
	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c.records = slices.Delete(c.records, i, i+1)
	c.dropMovesFor(id)
	c.rebuild()
	return nil
}

// Move changes the span of one displayed event. The owning record, if any,
// is left untouched, so other occurrences of a series keep their schedule.
func (c *Calendar) Move(eventID string, start, end time.Time) (model.EventMove, error) {
	if !end.After(start) {
		return model.EventMove{}, ErrInvalidSpan
	}
	i := slices.IndexFunc(c.events, func(ev model.CalendarEvent) bool { return ev.ID == eventID })
	if i < 0 {
		return model.EventMove{}, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}

	m := model.EventMove{
		EventID:        eventID,
		CoachID:        c.opts.CoachID,
		AvailabilityID: c.events[i].AvailabilityID,
		Start:          start,
		End:            end,
	}
	c.moves[eventID] = m
	c.events[i].Start = start
	c.events[i].End = end
	return m, nil
}

// Promote turns a moved single-availability event into an edit of its
// record, using the moved span in the calendar's location. It returns the
// updated record.
func (c *Calendar) Promote(eventID string) (model.Availability, error) {
	m, ok := c.moves[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotMoved, eventID)
	}
	if m.AvailabilityID == "" {
		return nil, fmt.Errorf("%w: %s is not an availability event", ErrNotFound, eventID)
	}
	i := c.indexOf(m.AvailabilityID)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, m.AvailabilityID)
	}

	single, ok := c.records[i].(model.SingleAvailability)
	if !ok {
		return nil, ErrRecurringPromotion
	}

	loc := c.opts.Location
	if loc == nil {
		loc = time.UTC
	}
	start := m.Start.In(loc)
	end := m.End.In(loc)
	if timeofday.DateOf(start) != timeofday.DateOf(end) {
		return nil, fmt.Errorf("%w: moved span crosses midnight", ErrInvalidSpan)
	}

	single.Date = timeofday.DateOf(start)
	single.StartTime = timeofday.Clock{Hour: start.Hour(), Minute: start.Minute()}
	single.EndTime = timeofday.Clock{Hour: end.Hour(), Minute: end.Minute()}
	if timeofday.DurationMinutes(single.StartTime, single.EndTime) <= 0 {
		return nil, ErrInvalidSpan
	}
	if err := c.Edit(single); err != nil {
		return nil, err
	}
	return single, nil
}

// SetExternal replaces the pass-through events.
func (c *Calendar) SetExternal(external []model.CalendarEvent) {
	c.external = slices.Clone(external)
	c.rebuild()
}

// SetMaxEvents changes the expansion horizon and rebuilds.
func (c *Calendar) SetMaxEvents(n int) {
	c.opts.MaxEvents = n
	c.rebuild()
}

func (c *Calendar) Options() Options {
	return c.opts
}

// Events returns a copy of the unified list.
func (c *Calendar) Events() []model.CalendarEvent {
	return slices.Clone(c.events)
}

// EventsFor returns the events derived from one record.
func (c *Calendar) EventsFor(availabilityID string) []model.CalendarEvent {
	var out []model.CalendarEvent
	for _, ev := range c.events {
		if ev.AvailabilityID == availabilityID {
			out = append(out, ev)
		}
	}
	return out
}

// Event looks up one displayed event.
func (c *Calendar) Event(eventID string) (model.CalendarEvent, bool) {
	i := slices.IndexFunc(c.events, func(ev model.CalendarEvent) bool { return ev.ID == eventID })
	if i < 0 {
		return model.CalendarEvent{}, false
	}
	return c.events[i], true
}

func (c *Calendar) Records() []model.Availability {
	return slices.Clone(c.records)
}

func (c *Calendar) Record(id string) (model.Availability, bool) {
	i := c.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return c.records[i], true
}

// Moves returns the active moves ordered by event id.
func (c *Calendar) Moves() []model.EventMove {
	out := make([]model.EventMove, 0, len(c.moves))
	for _, m := range c.moves {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b model.EventMove) int {
		return cmp.Compare(a.EventID, b.EventID)
	})
	return out
}
