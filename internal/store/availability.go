package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/coachcal/internal/model"
	"github.com/dukerupert/coachcal/internal/timeofday"
)

// AvailabilityStore persists availability records in their flat,
// discriminated form. List order is insertion order.
type AvailabilityStore struct {
	db *sql.DB
}

func NewAvailabilityStore(db *sql.DB) *AvailabilityStore {
	return &AvailabilityStore{db: db}
}

const availabilityColumns = "id, coach_id, type, date, days, start_time, end_time, start_date, expiration_date, created_at, updated_at"

func (s *AvailabilityStore) Create(ctx context.Context, a model.Availability) error {
	r := model.Record(a)

	var maxPos int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position), -1) FROM availabilities WHERE coach_id = ?", r.CoachID,
	).Scan(&maxPos)
	if err != nil {
		return fmt.Errorf("query max position: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO availabilities (id, coach_id, type, date, days, start_time, end_time, start_date, expiration_date, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CoachID, string(r.Type), r.Date, strings.Join(r.Days, ","), r.StartTime, r.EndTime, r.StartDate, r.ExpirationDate, maxPos+1,
	)
	if err != nil {
		return fmt.Errorf("insert availability: %w", err)
	}
	return nil
}

// GetByID returns the typed record, or nil when it does not exist.
func (s *AvailabilityStore) GetByID(ctx context.Context, id string) (model.Availability, error) {
	r, err := scanAvailability(s.db.QueryRowContext(ctx,
		"SELECT "+availabilityColumns+" FROM availabilities WHERE id = ?", id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query availability: %w", err)
	}
	return model.FromRecord(r)
}

func (s *AvailabilityStore) ListByCoach(ctx context.Context, coachID int64) ([]model.Availability, error) {
	records, err := s.ListRecords(ctx, coachID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Availability, 0, len(records))
	for _, r := range records {
		a, err := model.FromRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// ListRecords returns the flat rows with timestamps.
func (s *AvailabilityStore) ListRecords(ctx context.Context, coachID int64) ([]model.AvailabilityRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+availabilityColumns+" FROM availabilities WHERE coach_id = ? ORDER BY position, created_at",
		coachID,
	)
	if err != nil {
		return nil, fmt.Errorf("query availabilities: %w", err)
	}
	defer rows.Close()

	var records []model.AvailabilityRecord
	for rows.Next() {
		r, err := scanAvailability(rows)
		if err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Update replaces every field of the stored record; the position is kept.
func (s *AvailabilityStore) Update(ctx context.Context, a model.Availability) error {
	r := model.Record(a)
	result, err := s.db.ExecContext(ctx,
		`UPDATE availabilities
		 SET type = ?, date = ?, days = ?, start_time = ?, end_time = ?, start_date = ?, expiration_date = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND coach_id = ?`,
		string(r.Type), r.Date, strings.Join(r.Days, ","), r.StartTime, r.EndTime, r.StartDate, r.ExpirationDate, r.ID, r.CoachID,
	)
	if err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	if err := expectRow(result); err != nil {
		return fmt.Errorf("update availability %s: %w", r.ID, err)
	}
	return nil
}

func (s *AvailabilityStore) Delete(ctx context.Context, coachID int64, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM availabilities WHERE id = ? AND coach_id = ?", id, coachID)
	if err != nil {
		return fmt.Errorf("delete availability: %w", err)
	}
	if err := expectRow(result); err != nil {
		return fmt.Errorf("delete availability %s: %w", id, err)
	}
	return nil
}

// DeleteExpired removes records whose last day is before cutoff: single
// records by date, recurring records by expiration date. It returns the
// owning coach ids so callers can drop cached calendars.
func (s *AvailabilityStore) DeleteExpired(ctx context.Context, cutoff timeofday.Date) ([]int64, int64, error) {
	c := cutoff.String()
	where := `(type = 'single' AND date < ?) OR (type = 'recurring' AND expiration_date < ?)`

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT coach_id FROM availabilities WHERE "+where+" ORDER BY coach_id", c, c)
	if err != nil {
		return nil, 0, fmt.Errorf("query expired availabilities: %w", err)
	}
	var coaches []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan coach id: %w", err)
		}
		coaches = append(coaches, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM availabilities WHERE "+where, c, c)
	if err != nil {
		return nil, 0, fmt.Errorf("delete expired availabilities: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return nil, 0, fmt.Errorf("rows affected: %w", err)
	}
	return coaches, count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAvailability(row scanner) (model.AvailabilityRecord, error) {
	var r model.AvailabilityRecord
	var kind, days string
	err := row.Scan(&r.ID, &r.CoachID, &kind, &r.Date, &days, &r.StartTime, &r.EndTime, &r.StartDate, &r.ExpirationDate, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	r.Type = model.AvailabilityKind(kind)
	if days != "" {
		r.Days = strings.Split(days, ",")
	}
	return r, nil
}
