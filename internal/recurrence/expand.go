package recurrence

import (
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/coachcal/internal/model"
)

// DefaultMaxEvents bounds expansion of long-lived rules when the caller has
// no configured horizon.
const DefaultMaxEvents = 100

const availabilityTitle = "Available"

// eventNamespace scopes the name-based ids of derived events.
var eventNamespace = uuid.MustParse("6f1d3c2a-8b4e-5a7f-9c0d-2e3f4a5b6c7d")

// EventID derives a stable id from the owning record and the occurrence
// start, so re-expanding an unchanged rule yields the same ids.
func EventID(availabilityID string, start time.Time) string {
	name := availabilityID + "@" + start.UTC().Format(time.RFC3339)
	return uuid.NewSHA1(eventNamespace, []byte(name)).String()
}

// Expand generates the concrete events of a recurring availability, walking
// day by day from StartDate through ExpirationDate inclusive. At most
// maxEvents events are returned; maxEvents <= 0 yields none. A nil loc
// means UTC.
func Expand(r model.RecurringAvailability, maxEvents int, loc *time.Location) []model.CalendarEvent {
	if maxEvents <= 0 || r.Days.Empty() {
		return nil
	}

	var results []model.CalendarEvent
	for day := r.StartDate; ; day = day.AddDays(1) {
		// Stop conditions
		if day.After(r.ExpirationDate) {
			break
		}
		if len(results) >= maxEvents {
			break
		}

		if !r.Days.Has(day.Weekday()) {
			continue
		}

		start := day.At(r.StartTime, loc)
		end := day.At(r.EndTime, loc)
		results = append(results, availabilityEvent(r.ID, start, end, true))
	}

	return results
}

// SingleEvent returns the one event a single availability represents.
func SingleEvent(s model.SingleAvailability, loc *time.Location) model.CalendarEvent {
	return availabilityEvent(s.ID, s.Date.At(s.StartTime, loc), s.Date.At(s.EndTime, loc), false)
}

func availabilityEvent(availabilityID string, start, end time.Time, recurring bool) model.CalendarEvent {
	return model.CalendarEvent{
		ID:             EventID(availabilityID, start),
		Title:          availabilityTitle,
		Start:          start,
		End:            end,
		IsAvailability: true,
		AvailabilityID: availabilityID,
		IsRecurring:    recurring,
		ExtendedProps: model.ExtendedProps{
			IsCoachAvailability: true,
		},
	}
}
