package model

import "time"

// CalendarEvent is a display projection. It is rebuilt from availability
// records and meetings on every reconciliation and never persisted.
type CalendarEvent struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Start          time.Time     `json:"start"`
	End            time.Time     `json:"end"`
	IsAvailability bool          `json:"is_availability"`
	AvailabilityID string        `json:"availability_id,omitempty"`
	IsRecurring    bool          `json:"is_recurring"`
	ExtendedProps  ExtendedProps `json:"extended_props"`
}

type ExtendedProps struct {
	IsCoachAvailability bool   `json:"is_coach_availability"`
	IsYourMeeting       bool   `json:"is_your_meeting"`
	Attendee            string `json:"attendee,omitempty"`
	SessionID           string `json:"session_id,omitempty"`
	Location            string `json:"location,omitempty"`
}

// EventMove is a drag of one displayed event to a new span.
type EventMove struct {
	EventID        string    `json:"event_id"`
	CoachID        int64     `json:"coach_id"`
	AvailabilityID string    `json:"availability_id,omitempty"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	CreatedAt      time.Time `json:"created_at,omitzero"`
}
