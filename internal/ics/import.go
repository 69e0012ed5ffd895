package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	ical "github.com/arran4/golang-ical"

	"github.com/dukerupert/coachcal/internal/model"
)

// ErrEmpty is returned for an empty payload.
var ErrEmpty = errors.New("ics: empty calendar body")

const sessionProperty = "X-SESSION-ID"

// SkippedEvent names a VEVENT that could not become a meeting.
type SkippedEvent struct {
	UID    string `json:"uid"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Meetings []model.Meeting `json:"meetings"`
	Skipped  []SkippedEvent  `json:"skipped,omitempty"`
}

// ImportMeetings reads VEVENTs as meetings for coachID. The UID becomes the
// meeting id so re-importing the same feed replaces rather than duplicates.
// Recurring events and events without a usable span are skipped.
func ImportMeetings(coachID int64, body []byte, yours bool) (ImportResult, error) {
	var res ImportResult
	if len(bytes.TrimSpace(body)) == 0 {
		return res, ErrEmpty
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return res, fmt.Errorf("parse calendar: %w", err)
	}

	for _, ve := range cal.Events() {
		m, reason := meetingFrom(coachID, ve, yours)
		if reason != "" {
			res.Skipped = append(res.Skipped, SkippedEvent{UID: propValue(ve, ical.ComponentPropertyUniqueId), Reason: reason})
			continue
		}
		res.Meetings = append(res.Meetings, m)
	}
	return res, nil
}

func meetingFrom(coachID int64, ve *ical.VEvent, yours bool) (model.Meeting, string) {
	id := propValue(ve, ical.ComponentPropertyUniqueId)
	if id == "" {
		return model.Meeting{}, "missing UID"
	}
	if ve.GetProperty(ical.ComponentPropertyRrule) != nil {
		return model.Meeting{}, "recurring events are not imported"
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return model.Meeting{}, "invalid DTSTART"
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return model.Meeting{}, "invalid DTEND"
	}
	if !end.After(start) {
		return model.Meeting{}, "DTEND is not after DTSTART"
	}

	title := propValue(ve, ical.ComponentPropertySummary)
	if title == "" {
		title = "Meeting"
	}

	return model.Meeting{
		ID:            id,
		CoachID:       coachID,
		Title:         title,
		Start:         start,
		End:           end,
		Attendee:      attendee(ve),
		SessionID:     propValue(ve, ical.ComponentProperty(sessionProperty)),
		Location:      propValue(ve, ical.ComponentPropertyLocation),
		IsYourMeeting: yours,
	}, ""
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

// attendee prefers the first attendee's CN over the mailto address.
func attendee(ve *ical.VEvent) string {
	for _, a := range ve.Attendees() {
		if cn, ok := a.ICalParameters["CN"]; ok && len(cn) > 0 && cn[0] != "" {
			return cn[0]
		}
		if email := a.Email(); email != "" {
			return email
		}
	}
	return ""
}
