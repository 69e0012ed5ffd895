package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/coachcal/internal/model"
)

type CoachStore struct {
	db *sql.DB
}

func NewCoachStore(db *sql.DB) *CoachStore {
	return &CoachStore{db: db}
}

const coachColumns = "id, name, timezone, pin IS NOT NULL, created_at, updated_at"

func (s *CoachStore) Create(ctx context.Context, name, timezone string) (*model.Coach, error) {
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO coaches (name, timezone) VALUES (?, ?)",
		name, timezone,
	)
	if err != nil {
		return nil, fmt.Errorf("insert coach: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *CoachStore) List(ctx context.Context) ([]model.Coach, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+coachColumns+" FROM coaches ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("query coaches: %w", err)
	}
	defer rows.Close()

	var coaches []model.Coach
	for rows.Next() {
		var c model.Coach
		if err := rows.Scan(&c.ID, &c.Name, &c.Timezone, &c.HasPIN, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan coach: %w", err)
		}
		coaches = append(coaches, c)
	}
	return coaches, rows.Err()
}

func (s *CoachStore) GetByID(ctx context.Context, id int64) (*model.Coach, error) {
	var c model.Coach
	err := s.db.QueryRowContext(ctx,
		"SELECT "+coachColumns+" FROM coaches WHERE id = ?",
		id,
	).Scan(&c.ID, &c.Name, &c.Timezone, &c.HasPIN, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query coach: %w", err)
	}
	return &c, nil
}

func (s *CoachStore) Update(ctx context.Context, id int64, name, timezone string) (*model.Coach, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE coaches SET name = ?, timezone = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		name, timezone, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update coach: %w", err)
	}
	if err := expectRow(result); err != nil {
		return nil, fmt.Errorf("update coach %d: %w", id, err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes the coach and, through foreign keys, everything they own.
func (s *CoachStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM coaches WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete coach: %w", err)
	}
	if err := expectRow(result); err != nil {
		return fmt.Errorf("delete coach %d: %w", id, err)
	}
	return nil
}

func (s *CoachStore) SetPIN(ctx context.Context, id int64, hashedPIN string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE coaches SET pin = ? WHERE id = ?", hashedPIN, id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (s *CoachStore) ClearPIN(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE coaches SET pin = NULL WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("clear pin: %w", err)
	}
	return nil
}

// GetPINHash returns "" when the coach has no PIN.
func (s *CoachStore) GetPINHash(ctx context.Context, id int64) (string, error) {
	var pin sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT pin FROM coaches WHERE id = ?", id).Scan(&pin)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("coach %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("query pin: %w", err)
	}
	return pin.String, nil
}

func expectRow(result sql.Result) error {
	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}
