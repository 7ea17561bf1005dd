// Package timeslots provides the PostgreSQL-backed store for event time slots.
package timeslots

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/eventpass/internal/common"
	"github.com/dmitrijs2005/eventpass/internal/dbx"
	"github.com/dmitrijs2005/eventpass/internal/server/models"
)

const slotColumns = `id, event_id, start_time, end_time, max_capacity, current_capacity, status, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSlot(s scanner, ts *models.EventTimeSlot) error {
	return s.Scan(&ts.ID, &ts.EventID, &ts.StartTime, &ts.EndTime, &ts.MaxCapacity, &ts.CurrentCapacity,
		&ts.Status, &ts.CreatedAt, &ts.UpdatedAt)
}

func (r *PostgresRepository) Create(ctx context.Context, ts *models.EventTimeSlot) error {
	query := `INSERT INTO event_time_slots (` + slotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query, ts.ID, ts.EventID, ts.StartTime, ts.EndTime, ts.MaxCapacity,
		ts.CurrentCapacity, string(ts.Status), ts.CreatedAt, ts.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.EventTimeSlot, error) {
	ts := &models.EventTimeSlot{}
	err := scanSlot(r.db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM event_time_slots WHERE id = $1`, id), ts)
	if err != nil {
		return nil, dbx.LookupError(err)
	}
	return ts, nil
}

func (r *PostgresRepository) ListByEvent(ctx context.Context, eventID string) ([]models.EventTimeSlot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM event_time_slots WHERE event_id = $1 ORDER BY start_time, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.EventTimeSlot
	for rows.Next() {
		var ts models.EventTimeSlot
		if err := scanSlot(rows, &ts); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Reserve takes n places in an open slot and marks it full when the last
// place is taken. A cancelled, full or missing slot matches no row and
// yields common.ErrorConflict.
func (r *PostgresRepository) Reserve(ctx context.Context, id string, n int) error {
	query := `UPDATE event_time_slots
		SET current_capacity = current_capacity + $2,
			status = CASE WHEN current_capacity + $2 >= max_capacity THEN 'full' ELSE status END,
			updated_at = now()
		WHERE id = $1 AND status IN ('available', 'reserved') AND current_capacity + $2 <= max_capacity`

	res, err := r.db.ExecContext(ctx, query, id, n)
	if err != nil {
		return dbx.LookupError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if affected == 0 {
		return common.ErrorConflict
	}
	return nil
}

// Release returns n places; a full slot becomes available again.
func (r *PostgresRepository) Release(ctx context.Context, id string, n int) error {
	query := `UPDATE event_time_slots
		SET current_capacity = GREATEST(current_capacity - $2, 0),
			status = CASE WHEN status = 'full' THEN 'available' ELSE status END,
			updated_at = now()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, n)
	if err != nil {
		return dbx.LookupError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}
