// Package ics renders availability as an iCalendar feed and reads meetings
// from iCalendar payloads.
package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/dukerupert/coachcal/internal/model"
	"github.com/dukerupert/coachcal/internal/recurrence"
)

const (
	productID  = "-//coachcal//availability//EN"
	uidDomain  = "coachcal"
	localStamp = "20060102T150405"
)

// Export builds a feed with one VEVENT per single record and one VEVENT
// with an RRULE per recurring record. Times are written with the coach's
// TZID so weekly rules keep their wall-clock time across DST changes.
func Export(coach model.Coach, records []model.Availability, loc *time.Location, now time.Time) (string, error) {
	if loc == nil {
		loc = time.UTC
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(coach.Name + " availability")
	cal.SetXWRTimezone(loc.String())

	for _, a := range records {
		switch v := a.(type) {
		case model.SingleAvailability:
			ev := recurrence.SingleEvent(v, loc)
			vevent := cal.AddEvent(uid(v.ID))
			vevent.SetDtStampTime(now)
			setTime(vevent, ical.ComponentPropertyDtStart, ev.Start, loc)
			setTime(vevent, ical.ComponentPropertyDtEnd, ev.End, loc)
			vevent.SetSummary(ev.Title)

		case model.RecurringAvailability:
			// DTSTART must be the first real occurrence.
			first := recurrence.Expand(v, 1, loc)
			if len(first) == 0 {
				continue
			}
			rule, err := recurrence.RRuleString(v, loc)
			if err != nil {
				return "", fmt.Errorf("export %s: %w", v.ID, err)
			}
			vevent := cal.AddEvent(uid(v.ID))
			vevent.SetDtStampTime(now)
			setTime(vevent, ical.ComponentPropertyDtStart, first[0].Start, loc)
			setTime(vevent, ical.ComponentPropertyDtEnd, first[0].End, loc)
			vevent.SetSummary(first[0].Title)
			vevent.SetDescription(recurrence.Describe(v))
			vevent.AddProperty(ical.ComponentPropertyRrule, rule)

		default:
			panic(fmt.Sprintf("ics: unknown availability variant %T", a))
		}
	}

	return cal.Serialize(), nil
}

func uid(id string) string {
	return id + "@" + uidDomain
}

func setTime(ev *ical.VEvent, prop ical.ComponentProperty, t time.Time, loc *time.Location) {
	if loc == time.UTC {
		ev.SetProperty(prop, t.UTC().Format(localStamp)+"Z")
		return
	}
	ev.SetProperty(prop, t.In(loc).Format(localStamp), &ical.KeyValues{Key: "TZID", Value: []string{loc.String()}})
}
