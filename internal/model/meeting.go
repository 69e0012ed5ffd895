package model

import "time"

// Meeting is an externally supplied, non-availability calendar entry such as
// a booked session.
type Meeting struct {
	ID            string    `json:"id"`
	CoachID       int64     `json:"coach_id"`
	Title         string    `json:"title"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Attendee      string    `json:"attendee"`
	SessionID     string    `json:"session_id"`
	Location      string    `json:"location"`
	IsYourMeeting bool      `json:"is_your_meeting"`
	CreatedAt     time.Time `json:"created_at"`
}

// Event converts the meeting into its pass-through calendar event.
func (m Meeting) Event() CalendarEvent {
	return CalendarEvent{
		ID:    m.ID,
		Title: m.Title,
		Start: m.Start,
		End:   m.End,
		ExtendedProps: ExtendedProps{
			IsYourMeeting: m.IsYourMeeting,
			Attendee:      m.Attendee,
			SessionID:     m.SessionID,
			Location:      m.Location,
		},
	}
}
