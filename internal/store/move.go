package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/coachcal/internal/model"
)

// MoveStore keeps per-event drag overrides. A move never touches the
// availability record it was derived from.
type MoveStore struct {
	db *sql.DB
}

func NewMoveStore(db *sql.DB) *MoveStore {
	return &MoveStore{db: db}
}

func (s *MoveStore) Upsert(ctx context.Context, m model.EventMove) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO event_moves (event_id, coach_id, availability_id, start_time, end_time)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(coach_id, event_id) DO UPDATE SET
		   availability_id = excluded.availability_id,
		   start_time = excluded.start_time,
		   end_time = excluded.end_time,
		   created_at = CURRENT_TIMESTAMP`,
		m.EventID, m.CoachID, m.AvailabilityID, unixSeconds(m.Start), unixSeconds(m.End),
	)
	if err != nil {
		return fmt.Errorf("upsert event move: %w", err)
	}
	return nil
}

func (s *MoveStore) ListByCoach(ctx context.Context, coachID int64) ([]model.EventMove, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, coach_id, availability_id, start_time, end_time, created_at
		 FROM event_moves WHERE coach_id = ? ORDER BY event_id`,
		coachID,
	)
	if err != nil {
		return nil, fmt.Errorf("query event moves: %w", err)
	}
	defer rows.Close()

	var moves []model.EventMove
	for rows.Next() {
		var m model.EventMove
		var start, end int64
		if err := rows.Scan(&m.EventID, &m.CoachID, &m.AvailabilityID, &start, &end, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event move: %w", err)
		}
		m.Start = fromUnix(start)
		m.End = fromUnix(end)
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

func (s *MoveStore) DeleteByAvailability(ctx context.Context, coachID int64, availabilityID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM event_moves WHERE coach_id = ? AND availability_id = ?",
		coachID, availabilityID,
	)
	if err != nil {
		return fmt.Errorf("delete moves for availability: %w", err)
	}
	return nil
}

func (s *MoveStore) DeleteByEvent(ctx context.Context, coachID int64, eventID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM event_moves WHERE coach_id = ? AND event_id = ?",
		coachID, eventID,
	)
	if err != nil {
		return fmt.Errorf("delete event move: %w", err)
	}
	return nil
}

// DeleteBefore removes moves whose new span ended before cutoff.
func (s *MoveStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM event_moves WHERE end_time < ?", unixSeconds(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete old event moves: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
