package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/dukerupert/coachcal/internal/model"
	"github.com/dukerupert/coachcal/internal/timeofday"
)

var rruleDays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// RRule returns the RFC 5545 weekly rule equivalent to r. The first instant
// is StartDate at StartTime and UNTIL is ExpirationDate at StartTime, so the
// last day is included.
func RRule(r model.RecurringAvailability, loc *time.Location) (*rrule.RRule, error) {
	if r.Days.Empty() {
		return nil, fmt.Errorf("rrule for %s: no days selected", r.ID)
	}

	var byDay []rrule.Weekday
	for _, d := range r.Days.Days() {
		byDay = append(byDay, rruleDays[d])
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Interval:  1,
		Wkst:      rrule.MO,
		Byweekday: byDay,
		Dtstart:   r.StartDate.At(r.StartTime, loc),
		Until:     r.ExpirationDate.At(r.StartTime, loc),
	})
	if err != nil {
		return nil, fmt.Errorf("rrule for %s: %w", r.ID, err)
	}
	return rule, nil
}

// RRuleString returns the RRULE property value (without DTSTART) for r.
func RRuleString(r model.RecurringAvailability, loc *time.Location) (string, error) {
	rule, err := RRule(r, loc)
	if err != nil {
		return "", err
	}
	return rule.OrigOptions.RRuleString(), nil
}

// Describe returns a human-readable description of the rule.
func Describe(r model.RecurringAvailability) string {
	var names []string
	for _, d := range r.Days.Days() {
		names = append(names, timeofday.WeekdayName(d)[:3])
	}
	prefix := "Repeats weekly"
	if len(names) == 7 {
		prefix = "Repeats daily"
	} else if len(names) > 0 {
		prefix += " on " + strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s, %s-%s, %s to %s", prefix, r.StartTime, r.EndTime, r.StartDate, r.ExpirationDate)
}
