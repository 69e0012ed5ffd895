package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/coachcal/internal/model"
)

type MeetingStore struct {
	db *sql.DB
}

func NewMeetingStore(db *sql.DB) *MeetingStore {
	return &MeetingStore{db: db}
}

const meetingColumns = "id, coach_id, title, start_time, end_time, attendee, session_id, location, is_your_meeting, created_at"

// Create inserts m, assigning a random id when m.ID is empty.
func (s *MeetingStore) Create(ctx context.Context, m model.Meeting) (*model.Meeting, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meetings (id, coach_id, title, start_time, end_time, attendee, session_id, location, is_your_meeting)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.CoachID, m.Title, unixSeconds(m.Start), unixSeconds(m.End), m.Attendee, m.SessionID, m.Location, boolInt(m.IsYourMeeting),
	)
	if err != nil {
		return nil, fmt.Errorf("insert meeting: %w", err)
	}
	return s.GetByID(ctx, m.CoachID, m.ID)
}

// Upsert inserts or replaces by coach and id. Imports use it so re-importing
// a feed does not duplicate meetings. The same UID imported by two coaches
// yields two independent meetings.
func (s *MeetingStore) Upsert(ctx context.Context, m model.Meeting) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meetings (id, coach_id, title, start_time, end_time, attendee, session_id, location, is_your_meeting)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(coach_id, id) DO UPDATE SET
		   title = excluded.title,
		   start_time = excluded.start_time,
		   end_time = excluded.end_time,
		   attendee = excluded.attendee,
		   session_id = excluded.session_id,
		   location = excluded.location,
		   is_your_meeting = excluded.is_your_meeting`,
		m.ID, m.CoachID, m.Title, unixSeconds(m.Start), unixSeconds(m.End), m.Attendee, m.SessionID, m.Location, boolInt(m.IsYourMeeting),
	)
	if err != nil {
		return fmt.Errorf("upsert meeting: %w", err)
	}
	return nil
}

func (s *MeetingStore) GetByID(ctx context.Context, coachID int64, id string) (*model.Meeting, error) {
	m, err := scanMeeting(s.db.QueryRowContext(ctx,
		"SELECT "+meetingColumns+" FROM meetings WHERE coach_id = ? AND id = ?",
		coachID, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query meeting: %w", err)
	}
	return &m, nil
}

func (s *MeetingStore) ListByCoach(ctx context.Context, coachID int64) ([]model.Meeting, error) {
	return s.list(ctx,
		"SELECT "+meetingColumns+" FROM meetings WHERE coach_id = ? ORDER BY start_time, id",
		coachID,
	)
}

// ListByCoachRange returns meetings overlapping [start, end).
func (s *MeetingStore) ListByCoachRange(ctx context.Context, coachID int64, start, end time.Time) ([]model.Meeting, error) {
	return s.list(ctx,
		`SELECT `+meetingColumns+` FROM meetings
		 WHERE coach_id = ? AND start_time < ? AND end_time > ?
		 ORDER BY start_time, id`,
		coachID, unixSeconds(end), unixSeconds(start),
	)
}

func (s *MeetingStore) list(ctx context.Context, query string, args ...any) ([]model.Meeting, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query meetings: %w", err)
	}
	defer rows.Close()

	var meetings []model.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

func (s *MeetingStore) Delete(ctx context.Context, coachID int64, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM meetings WHERE id = ? AND coach_id = ?", id, coachID)
	if err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	if err := expectRow(result); err != nil {
		return fmt.Errorf("delete meeting %s: %w", id, err)
	}
	return nil
}

func scanMeeting(row scanner) (model.Meeting, error) {
	var m model.Meeting
	var start, end int64
	var yours int
	err := row.Scan(&m.ID, &m.CoachID, &m.Title, &start, &end, &m.Attendee, &m.SessionID, &m.Location, &yours, &m.CreatedAt)
	m.Start = fromUnix(start)
	m.End = fromUnix(end)
	m.IsYourMeeting = yours != 0
	return m, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
