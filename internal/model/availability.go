package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/coachcal/internal/timeofday"
)

type AvailabilityKind string

const (
	KindSingle    AvailabilityKind = "single"
	KindRecurring AvailabilityKind = "recurring"
)

// Availability is a closed union: only SingleAvailability and
// RecurringAvailability implement it.
type Availability interface {
	AvailabilityID() string
	Kind() AvailabilityKind
	Owner() int64
	isAvailability()
}

type SingleAvailability struct {
	ID        string          `json:"id"`
	CoachID   int64           `json:"coach_id"`
	Date      timeofday.Date  `json:"date"`
	StartTime timeofday.Clock `json:"start_time"`
	EndTime   timeofday.Clock `json:"end_time"`
}

func (s SingleAvailability) AvailabilityID() string { return s.ID }
func (s SingleAvailability) Kind() AvailabilityKind { return KindSingle }
func (s SingleAvailability) Owner() int64           { return s.CoachID }
func (SingleAvailability) isAvailability()          {}

type RecurringAvailability struct {
	ID             string          `json:"id"`
	CoachID        int64           `json:"coach_id"`
	Days           WeekdaySet      `json:"days"`
	StartTime      timeofday.Clock `json:"start_time"`
	EndTime        timeofday.Clock `json:"end_time"`
	StartDate      timeofday.Date  `json:"start_date"`
	ExpirationDate timeofday.Date  `json:"expiration_date"`
}

func (r RecurringAvailability) AvailabilityID() string { return r.ID }
func (r RecurringAvailability) Kind() AvailabilityKind { return KindRecurring }
func (r RecurringAvailability) Owner() int64           { return r.CoachID }
func (RecurringAvailability) isAvailability()          {}

// SameEntity reports whether a and b describe the same record. Only the id
// is compared; every other field may differ across an edit.
func SameEntity(a, b Availability) bool {
	if a == nil || b == nil {
		return false
	}
	return a.AvailabilityID() == b.AvailabilityID()
}

// AvailabilityRecord is the flat, discriminated wire and storage shape.
type AvailabilityRecord struct {
	ID             string           `json:"id"`
	CoachID        int64            `json:"coach_id"`
	Type           AvailabilityKind `json:"type"`
	Date           string           `json:"date,omitempty"`
	Days           []string         `json:"days,omitempty"`
	StartTime      string           `json:"start_time"`
	EndTime        string           `json:"end_time"`
	StartDate      string           `json:"start_date,omitempty"`
	ExpirationDate string           `json:"expiration_date,omitempty"`
	CreatedAt      time.Time        `json:"created_at,omitzero"`
	UpdatedAt      time.Time        `json:"updated_at,omitzero"`
}

// Record flattens a into its discriminated form.
func Record(a Availability) AvailabilityRecord {
	switch v := a.(type) {
	case SingleAvailability:
		return AvailabilityRecord{
			ID:        v.ID,
			CoachID:   v.CoachID,
			Type:      KindSingle,
			Date:      v.Date.String(),
			StartTime: v.StartTime.String(),
			EndTime:   v.EndTime.String(),
		}
	case RecurringAvailability:
		return AvailabilityRecord{
			ID:             v.ID,
			CoachID:        v.CoachID,
			Type:           KindRecurring,
			Days:           v.Days.Names(),
			StartTime:      v.StartTime.String(),
			EndTime:        v.EndTime.String(),
			StartDate:      v.StartDate.String(),
			ExpirationDate: v.ExpirationDate.String(),
		}
	default:
		panic(fmt.Sprintf("model: unknown availability variant %T", a))
	}
}

// FromRecord rebuilds the typed variant. It checks field formats only; the
// ordering invariants are the editor's job.
func FromRecord(r AvailabilityRecord) (Availability, error) {
	start, err := timeofday.ParseClock(r.StartTime)
	if err != nil {
		return nil, fmt.Errorf("availability %s start_time: %w", r.ID, err)
	}
	end, err := timeofday.ParseClock(r.EndTime)
	if err != nil {
		return nil, fmt.Errorf("availability %s end_time: %w", r.ID, err)
	}

	switch r.Type {
	case KindSingle:
		date, err := timeofday.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("availability %s date: %w", r.ID, err)
		}
		return SingleAvailability{
			ID:        r.ID,
			CoachID:   r.CoachID,
			Date:      date,
			StartTime: start,
			EndTime:   end,
		}, nil
	case KindRecurring:
		days, err := ParseWeekdaySet(r.Days)
		if err != nil {
			return nil, fmt.Errorf("availability %s days: %w", r.ID, err)
		}
		startDate, err := timeofday.ParseDate(r.StartDate)
		if err != nil {
			return nil, fmt.Errorf("availability %s start_date: %w", r.ID, err)
		}
		expiration, err := timeofday.ParseDate(r.ExpirationDate)
		if err != nil {
			return nil, fmt.Errorf("availability %s expiration_date: %w", r.ID, err)
		}
		return RecurringAvailability{
			ID:             r.ID,
			CoachID:        r.CoachID,
			Days:           days,
			StartTime:      start,
			EndTime:        end,
			StartDate:      startDate,
			ExpirationDate: expiration,
		}, nil
	default:
		return nil, fmt.Errorf("availability %s: unknown type %q", r.ID, r.Type)
	}
}

// MarshalAvailability encodes a with its type discriminator.
func MarshalAvailability(a Availability) ([]byte, error) {
	return json.Marshal(Record(a))
}

// UnmarshalAvailability decodes a discriminated availability payload.
func UnmarshalAvailability(data []byte) (Availability, error) {
	var r AvailabilityRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode availability: %w", err)
	}
	return FromRecord(r)
}
