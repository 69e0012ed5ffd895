package editor

import (
	"maps"
	"sort"
	"strings"

	"github.com/dukerupert/coachcal/internal/model"
	"github.com/dukerupert/coachcal/internal/timeofday"
)

// Field keys used in FieldErrors.
const (
	FieldDays           = "days"
	FieldStartTime      = "startTime"
	FieldEndTime        = "endTime"
	FieldTimeRange      = "timeRange"
	FieldDate           = "date"
	FieldStartDate      = "startDate"
	FieldExpirationDate = "expirationDate"
)

var tabFields = map[Tab][]string{
	TabSingle:    {FieldDate, FieldStartTime, FieldEndTime, FieldTimeRange},
	TabRecurring: {FieldDays, FieldStartTime, FieldEndTime, FieldTimeRange, FieldStartDate, FieldExpirationDate},
}

// Form holds the raw values a user typed. Single uses Date; recurring uses
// Days, StartDate and ExpirationDate.
type Form struct {
	Date           string   `json:"date,omitempty"`
	StartTime      string   `json:"start_time"`
	EndTime        string   `json:"end_time"`
	Days           []string `json:"days,omitempty"`
	StartDate      string   `json:"start_date,omitempty"`
	ExpirationDate string   `json:"expiration_date,omitempty"`
}

// FormFrom pre-fills a form from an existing record.
func FormFrom(a model.Availability) Form {
	r := model.Record(a)
	return Form{
		Date:           r.Date,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		Days:           r.Days,
		StartDate:      r.StartDate,
		ExpirationDate: r.ExpirationDate,
	}
}

// FieldErrors maps a field key to a user-facing message. Several fields can
// fail at once.
type FieldErrors map[string]string

func (fe FieldErrors) Has(field string) bool {
	_, ok := fe[field]
	return ok
}

// Fields returns the failing keys in sorted order.
func (fe FieldErrors) Fields() []string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (fe FieldErrors) clone() FieldErrors {
	if len(fe) == 0 {
		return nil
	}
	return maps.Clone(fe)
}

// Validate checks a form for the given tab and builds the record only when
// every field passes. The returned FieldErrors is nil on success.
func Validate(tab Tab, id string, coachID int64, f Form) (model.Availability, FieldErrors) {
	errs := FieldErrors{}

	start, startErr := timeofday.ParseClock(strings.TrimSpace(f.StartTime))
	if startErr != nil {
		errs[FieldStartTime] = "Enter a start time as HH:MM"
	}
	end, endErr := timeofday.ParseClock(strings.TrimSpace(f.EndTime))
	if endErr != nil {
		errs[FieldEndTime] = "Enter an end time as HH:MM"
	}
	if startErr == nil && endErr == nil && timeofday.DurationMinutes(start, end) <= 0 {
		errs[FieldTimeRange] = "End time must be after start time"
	}

	switch tab {
	case TabSingle:
		date, ok := validDate(errs, FieldDate, f.Date, "Date")
		if len(errs) > 0 || !ok {
			return nil, errs
		}
		return model.SingleAvailability{
			ID:        id,
			CoachID:   coachID,
			Date:      date,
			StartTime: start,
			EndTime:   end,
		}, nil

	case TabRecurring:
		days, err := model.ParseWeekdaySet(f.Days)
		switch {
		case err != nil:
			errs[FieldDays] = "Unknown day of the week"
		case days.Empty():
			errs[FieldDays] = "Select at least one day"
		}

		startDate, startOK := validDate(errs, FieldStartDate, f.StartDate, "Start date")
		expiration, expOK := validDate(errs, FieldExpirationDate, f.ExpirationDate, "Expiration date")
		if startOK && expOK && !timeofday.IsDateAfter(expiration, startDate) {
			errs[FieldExpirationDate] = "Expiration date must be after the start date"
		}
		if len(errs) > 0 {
			return nil, errs
		}
		return model.RecurringAvailability{
			ID:             id,
			CoachID:        coachID,
			Days:           days,
			StartTime:      start,
			EndTime:        end,
			StartDate:      startDate,
			ExpirationDate: expiration,
		}, nil

	default:
		panic("editor: unknown tab " + string(tab))
	}
}

func validDate(errs FieldErrors, field, value, label string) (timeofday.Date, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		errs[field] = label + " is required"
		return timeofday.Date{}, false
	}
	d, err := timeofday.ParseDate(value)
	if err != nil {
		errs[field] = label + " must be a valid date (YYYY-MM-DD)"
		return timeofday.Date{}, false
	}
	return d, true
}
