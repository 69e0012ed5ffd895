package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/coachcal/internal/database"
	"github.com/dukerupert/coachcal/internal/model"
	"github.com/dukerupert/coachcal/internal/timeofday"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createCoach(t *testing.T, db *sql.DB, name string) *model.Coach {
	t.Helper()
	c, err := NewCoachStore(db).Create(context.Background(), name, "America/Denver")
	if err != nil {
		t.Fatalf("create coach: %v", err)
	}
	return c
}

func single(id string, coachID int64, date string) model.SingleAvailability {
	return model.SingleAvailability{
		ID:        id,
		CoachID:   coachID,
		Date:      timeofday.MustDate(date),
		StartTime: timeofday.MustClock("09:00"),
		EndTime:   timeofday.MustClock("10:00"),
	}
}

func recurring(id string, coachID int64, from, until string) model.RecurringAvailability {
	return model.RecurringAvailability{
		ID:             id,
		CoachID:        coachID,
		Days:           model.NewWeekdaySet(time.Monday, time.Wednesday),
		StartTime:      timeofday.MustClock("09:00"),
		EndTime:        timeofday.MustClock("10:00"),
		StartDate:      timeofday.MustDate(from),
		ExpirationDate: timeofday.MustDate(until),
	}
}
