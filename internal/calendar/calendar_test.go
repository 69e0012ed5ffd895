package calendar

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/dukerupert/coachcal/internal/model"
	"github.com/dukerupert/coachcal/internal/recurrence"
	"github.com/dukerupert/coachcal/internal/timeofday"
)

func single(id, date, start, end string) model.SingleAvailability {
	return model.SingleAvailability{
		ID:        id,
		CoachID:   1,
		Date:      timeofday.MustDate(date),
		StartTime: timeofday.MustClock(start),
		EndTime:   timeofday.MustClock(end),
	}
}

func weekly(id string, days []time.Weekday, start, end, from, until string) model.RecurringAvailability {
	return model.RecurringAvailability{
		ID:             id,
		CoachID:        1,
		Days:           model.NewWeekdaySet(days...),
		StartTime:      timeofday.MustClock(start),
		EndTime:        timeofday.MustClock(end),
		StartDate:      timeofday.MustDate(from),
		ExpirationDate: timeofday.MustDate(until),
	}
}

func meeting(id string, start time.Time) model.CalendarEvent {
	return model.CalendarEvent{
		ID:    id,
		Title: "Session",
		Start: start,
		End:   start.Add(time.Hour),
		ExtendedProps: model.ExtendedProps{
			IsYourMeeting: true,
			Attendee:      "Sam",
		},
	}
}

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func TestBuildSingle(t *testing.T) {
	events := Build([]model.Availability{single("s1", "2025-06-10", "09:00", "10:00")}, nil, DefaultOptions())
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if !ev.Start.Equal(at(2025, 6, 10, 9, 0)) || !ev.End.Equal(at(2025, 6, 10, 10, 0)) {
		t.Errorf("span = %v - %v, want 2025-06-10 09:00-10:00", ev.Start, ev.End)
	}
	if ev.AvailabilityID != "s1" || ev.IsRecurring {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestBuildMergesAndNormalizes(t *testing.T) {
	ext := meeting("m1", at(2025, 6, 3, 13, 0))
	ext.IsAvailability = true
	ext.AvailabilityID = "spoofed"
	ext.IsRecurring = true
	ext.ExtendedProps.IsCoachAvailability = true

	records := []model.Availability{
		single("s1", "2025-06-10", "09:00", "10:00"),
		weekly("r1", []time.Weekday{time.Monday, time.Wednesday}, "09:00", "10:00", "2025-06-02", "2025-06-15"),
	}
	events := Build(records, []model.CalendarEvent{ext}, DefaultOptions())
	if len(events) != 6 {
		t.Fatalf("got %d events, want 6 (1 single + 4 recurring + 1 meeting)", len(events))
	}

	last := events[5]
	if last.ID != "m1" {
		t.Fatalf("external events should follow availability, last = %s", last.ID)
	}
	if last.IsAvailability || last.AvailabilityID != "" || last.IsRecurring || last.ExtendedProps.IsCoachAvailability {
		t.Errorf("external event not normalized: %+v", last)
	}
	if !last.ExtendedProps.IsYourMeeting || last.ExtendedProps.Attendee != "Sam" {
		t.Errorf("external props should pass through: %+v", last.ExtendedProps)
	}
	if !last.Start.Equal(ext.Start) || last.Title != "Session" {
		t.Error("external span and title should pass through")
	}
}

func TestBuildKeepsInputOrder(t *testing.T) {
	records := []model.Availability{
		single("late", "2025-07-01", "09:00", "10:00"),
		single("early", "2025-06-02", "09:00", "10:00"),
	}
	ext := []model.CalendarEvent{
		meeting("m2", at(2025, 8, 1, 9, 0)),
		meeting("m1", at(2025, 5, 1, 9, 0)),
	}
	events := Build(records, ext, DefaultOptions())

	var got []string
	for _, ev := range events {
		if ev.AvailabilityID != "" {
			got = append(got, ev.AvailabilityID)
		} else {
			got = append(got, ev.ID)
		}
	}
	want := []string{"late", "early", "m2", "m1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestBuildDeterministic(t *testing.T) {
	records := []model.Availability{
		weekly("r1", []time.Weekday{time.Tuesday}, "08:00", "09:30", "2025-01-01", "2025-12-31"),
		single("s1", "2025-03-03", "12:00", "12:30"),
	}
	ext := []model.CalendarEvent{meeting("m1", at(2025, 3, 4, 15, 0))}
	a := Build(records, ext, DefaultOptions())
	b := Build(records, ext, DefaultOptions())
	if !reflect.DeepEqual(a, b) {
		t.Error("repeated reconciliation should produce identical lists")
	}

	c1 := New(records, ext, nil, DefaultOptions())
	c2 := New(records, ext, nil, DefaultOptions())
	if !reflect.DeepEqual(c1.Events(), c2.Events()) {
		t.Error("containers built from the same input should agree")
	}
}

func TestAdd(t *testing.T) {
	c := New(nil, []model.CalendarEvent{meeting("m1", at(2025, 6, 3, 13, 0))}, nil, DefaultOptions())

	if err := c.Add(weekly("r1", []time.Weekday{time.Monday}, "09:00", "10:00", "2025-06-02", "2025-06-15")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := len(c.EventsFor("r1")); got != 2 {
		t.Errorf("events for r1 = %d, want 2", got)
	}
	if got := len(c.Events()); got != 3 {
		t.Errorf("total events = %d, want 3", got)
	}

	err := c.Add(single("r1", "2025-06-10", "09:00", "10:00"))
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate add error = %v, want ErrDuplicateID", err)
	}
	if !errors.Is(c.Add(single("", "2025-06-10", "09:00", "10:00")), ErrMissingID) {
		t.Error("empty id should be rejected")
	}
}

func TestEditReplacesDerivedEvents(t *testing.T) {
	original := weekly("r1", []time.Weekday{time.Monday, time.Wednesday}, "09:00", "10:00", "2025-06-02", "2025-06-15")
	c := New([]model.Availability{single("s1", "2025-06-10", "09:00", "10:00"), original}, nil, nil, DefaultOptions())

	before := c.EventsFor("r1")
	if len(before) != 4 {
		t.Fatalf("before edit: %d events, want 4", len(before))
	}

	updated := weekly("r1", []time.Weekday{time.Friday}, "14:00", "15:30", "2025-06-02", "2025-06-30")
	if err := c.Edit(updated); err != nil {
		t.Fatalf("edit: %v", err)
	}

	after := c.EventsFor("r1")
	fresh := recurrence.Expand(updated, recurrence.DefaultMaxEvents, time.UTC)
	if len(after) != len(fresh) {
		t.Fatalf("after edit: %d events, fresh expand gives %d", len(after), len(fresh))
	}
	for _, ev := range after {
		for _, old := range before {
			if ev.Start.Equal(old.Start) && ev.End.Equal(old.End) {
				t.Errorf("event %s kept pre-edit span %v", ev.ID, old.Start)
			}
		}
	}

	recs := c.Records()
	if recs[1].AvailabilityID() != "r1" || recs[1].(model.RecurringAvailability).Days.Has(time.Monday) {
		t.Error("edit should replace the record in place")
	}
	if len(c.EventsFor("s1")) != 1 {
		t.Error("other records should be untouched")
	}

	if err := c.Edit(single("missing", "2025-06-10", "09:00", "10:00")); !errors.Is(err, ErrNotFound) {
		t.Errorf("edit of unknown id error = %v, want ErrNotFound", err)
	}
}

func TestEditCanChangeVariant(t *testing.T) {
	c := New([]model.Availability{single("a1", "2025-06-10", "09:00", "10:00")}, nil, nil, DefaultOptions())
	if err := c.Edit(weekly("a1", []time.Weekday{time.Tuesday}, "09:00", "10:00", "2025-06-01", "2025-06-30")); err != nil {
		t.Fatalf("edit: %v", err)
	}
	evs := c.EventsFor("a1")
	if len(evs) != 4 {
		t.Fatalf("got %d events, want 4 Tuesdays in June 2025", len(evs))
	}
	for _, ev := range evs {
		if !ev.IsRecurring {
			t.Error("events should now be recurring")
		}
	}
}

func TestDelete(t *testing.T) {
	c := New([]model.Availability{
		weekly("r1", []time.Weekday{time.Monday}, "09:00", "10:00", "2025-06-02", "2025-06-30"),
		single("s1", "2025-06-10", "09:00", "10:00"),
	}, []model.CalendarEvent{meeting("m1", at(2025, 6, 3, 13, 0))}, nil, DefaultOptions())

	if err := c.Delete("r1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, ev := range c.Events() {
		if ev.AvailabilityID == "r1" {
			t.Fatalf("event %s still references deleted record", ev.ID)
		}
	}
	if len(c.Events()) != 2 {
		t.Errorf("remaining events = %d, want 2", len(c.Events()))
	}
	if _, ok := c.Record("r1"); ok {
		t.Error("record should be gone")
	}
	if err := c.Delete("r1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestMoveRecurringInstance(t *testing.T) {
	rule := weekly("r1", []time.Weekday{time.Monday, time.Wednesday}, "09:00", "10:00", "2025-06-02", "2025-06-15")
	c := New([]model.Availability{rule}, nil, nil, DefaultOptions())

	target := c.EventsFor("r1")[1] // Wed Jun 4
	newStart := at(2025, 6, 4, 11, 0)
	newEnd := at(2025, 6, 4, 12, 0)
	m, err := c.Move(target.ID, newStart, newEnd)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if m.AvailabilityID != "r1" {
		t.Errorf("move availability id = %q", m.AvailabilityID)
	}
	if m.CoachID != 0 {
		t.Errorf("move coach id = %d, want 0 without a coach option", m.CoachID)
	}

	evs := c.EventsFor("r1")
	if len(evs) != 4 {
		t.Fatalf("move should not change the event count, got %d", len(evs))
	}
	for i, ev := range evs {
		if i == 1 {
			if ev.ID != target.ID || !ev.Start.Equal(newStart) || !ev.End.Equal(newEnd) {
				t.Errorf("moved event = %+v", ev)
			}
			continue
		}
		if ev.Start.Hour() != 9 {
			t.Errorf("event %d should keep 09:00, got %v", i, ev.Start)
		}
	}

	rec, _ := c.Record("r1")
	if !reflect.DeepEqual(rec, model.Availability(rule)) {
		t.Error("move must not modify the underlying record")
	}
	fresh := recurrence.Expand(rule, recurrence.DefaultMaxEvents, time.UTC)
	if !fresh[1].Start.Equal(at(2025, 6, 4, 9, 0)) {
		t.Error("fresh expansion of the record should keep the original schedule")
	}
}

func TestMoveSurvivesUnrelatedRebuild(t *testing.T) {
	c := New([]model.Availability{weekly("r1", []time.Weekday{time.Monday}, "09:00", "10:00", "2025-06-02", "2025-06-15")}, nil, nil, DefaultOptions())
	target := c.EventsFor("r1")[0]
	if _, err := c.Move(target.ID, at(2025, 6, 2, 15, 0), at(2025, 6, 2, 16, 0)); err != nil {
		t.Fatalf("move: %v", err)
	}

	if err := c.Add(single("s1", "2025-06-20", "09:00", "10:00")); err != nil {
		t.Fatalf("add: %v", err)
	}
	ev, ok := c.Event(target.ID)
	if !ok || ev.Start.Hour() != 15 {
		t.Errorf("move should survive adding another record, got %+v", ev)
	}
	if len(c.Moves()) != 1 {
		t.Errorf("moves = %d, want 1", len(c.Moves()))
	}

	if err := c.Edit(weekly("r1", []time.Weekday{time.Monday}, "09:00", "10:00", "2025-06-02", "2025-06-15")); err != nil {
		t.Fatalf("edit: %v", err)
	}
	ev, _ = c.Event(target.ID)
	if ev.Start.Hour() != 9 {
		t.Errorf("edit should discard moves, event at %v", ev.Start)
	}
	if len(c.Moves()) != 0 {
		t.Errorf("moves after edit = %d, want 0", len(c.Moves()))
	}
}

func TestMoveExternalEvent(t *testing.T) {
	c := New(nil, []model.CalendarEvent{meeting("m1", at(2025, 6, 3, 13, 0))}, nil, DefaultOptions())
	if _, err := c.Move("m1", at(2025, 6, 3, 14, 0), at(2025, 6, 3, 15, 0)); err != nil {
		t.Fatalf("move: %v", err)
	}
	ev, _ := c.Event("m1")
	if ev.Start.Hour() != 14 {
		t.Errorf("meeting start = %v, want 14:00", ev.Start)
	}
}

func TestMoveErrors(t *testing.T) {
	c := New([]model.Availability{single("s1", "2025-06-10", "09:00", "10:00")}, nil, nil, DefaultOptions())
	if _, err := c.Move("nope", at(2025, 6, 10, 9, 0), at(2025, 6, 10, 10, 0)); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("unknown event error = %v", err)
	}
	id := c.EventsFor("s1")[0].ID
	if _, err := c.Move(id, at(2025, 6, 10, 10, 0), at(2025, 6, 10, 10, 0)); !errors.Is(err, ErrInvalidSpan) {
		t.Errorf("empty span error = %v", err)
	}
}

func TestNewDropsStaleMoves(t *testing.T) {
	moves := []model.EventMove{{EventID: "gone", AvailabilityID: "x", Start: at(2025, 1, 1, 9, 0), End: at(2025, 1, 1, 10, 0)}}
	c := New([]model.Availability{single("s1", "2025-06-10", "09:00", "10:00")}, nil, moves, DefaultOptions())
	if len(c.Moves()) != 0 {
		t.Error("moves for missing events should be dropped")
	}
}

func TestPromote(t *testing.T) {
	c := New([]model.Availability{single("s1", "2025-06-10", "09:00", "10:00")}, nil, nil, DefaultOptions())
	id := c.EventsFor("s1")[0].ID

	if _, err := c.Promote(id); !errors.Is(err, ErrNotMoved) {
		t.Errorf("promote before move error = %v", err)
	}

	if _, err := c.Move(id, at(2025, 6, 11, 13, 30), at(2025, 6, 11, 14, 45)); err != nil {
		t.Fatalf("move: %v", err)
	}
	a, err := c.Promote(id)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	s := a.(model.SingleAvailability)
	if s.Date.String() != "2025-06-11" || s.StartTime.String() != "13:30" || s.EndTime.String() != "14:45" {
		t.Errorf("promoted record = %+v", s)
	}
	evs := c.EventsFor("s1")
	if len(evs) != 1 || !evs[0].Start.Equal(at(2025, 6, 11, 13, 30)) {
		t.Errorf("events after promote = %+v", evs)
	}
	if len(c.Moves()) != 0 {
		t.Error("promotion should consume the move")
	}
}

func TestPromoteRecurringRejected(t *testing.T) {
	c := New([]model.Availability{weekly("r1", []time.Weekday{time.Monday}, "09:00", "10:00", "2025-06-02", "2025-06-15")}, nil, nil, DefaultOptions())
	id := c.EventsFor("r1")[0].ID
	if _, err := c.Move(id, at(2025, 6, 2, 11, 0), at(2025, 6, 2, 12, 0)); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := c.Promote(id); !errors.Is(err, ErrRecurringPromotion) {
		t.Errorf("promote recurring error = %v, want ErrRecurringPromotion", err)
	}
}

func TestSetMaxEvents(t *testing.T) {
	c := New([]model.Availability{weekly("r1", []time.Weekday{time.Monday}, "09:00", "10:00", "2025-01-01", "2025-12-31")}, nil, nil, DefaultOptions())
	if got := len(c.EventsFor("r1")); got != 52 {
		t.Fatalf("Mondays in 2025 = %d, want 52", got)
	}
	c.SetMaxEvents(5)
	if got := len(c.EventsFor("r1")); got != 5 {
		t.Errorf("after SetMaxEvents(5) = %d, want 5", got)
	}
	c.SetMaxEvents(0)
	if got := len(c.EventsFor("r1")); got != 0 {
		t.Errorf("after SetMaxEvents(0) = %d, want 0", got)
	}
}

func TestEventsReturnsCopy(t *testing.T) {
	c := New([]model.Availability{single("s1", "2025-06-10", "09:00", "10:00")}, nil, nil, DefaultOptions())
	evs := c.Events()
	evs[0].Start = time.Time{}
	if c.Events()[0].Start.IsZero() {
		t.Error("mutating the returned slice must not affect the container")
	}
}

func TestMoveStampsCoach(t *testing.T) {
	opts := DefaultOptions()
	opts.CoachID = 7
	c := New([]model.Availability{weekly("r1", []time.Weekday{time.Monday}, "09:00", "10:00", "2025-06-02", "2025-06-15")}, nil, nil, opts)

	target := c.EventsFor("r1")[0]
	m, err := c.Move(target.ID, at(2025, 6, 2, 11, 0), at(2025, 6, 2, 12, 0))
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if m.CoachID != 7 {
		t.Errorf("move coach id = %d, want 7", m.CoachID)
	}
	if moves := c.Moves(); len(moves) != 1 || moves[0].CoachID != 7 {
		t.Errorf("stored moves = %+v", moves)
	}
}
