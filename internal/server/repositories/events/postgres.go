// Package events provides the PostgreSQL-backed event store.
package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/eventpass/internal/common"
	"github.com/dmitrijs2005/eventpass/internal/dbx"
	"github.com/dmitrijs2005/eventpass/internal/server/models"
)

const eventColumns = `id, title, description, picture_url, address, latitude, longitude,
		start_time, end_time, status, max_participants, current_participants, created_by,
		created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*models.Event, error) {
	e := &models.Event{}
	err := s.Scan(&e.ID, &e.Title, &e.Description, &e.PictureURL, &e.Address, &e.Latitude, &e.Longitude,
		&e.StartTime, &e.EndTime, &e.Status, &e.MaxParticipants, &e.CurrentParticipants, &e.CreatedBy,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.Event) error {
	query := `INSERT INTO events (id, title, description, picture_url, address, latitude, longitude,
		start_time, end_time, status, max_participants, current_participants, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.Title, e.Description, e.PictureURL, e.Address, e.Latitude, e.Longitude,
		e.StartTime, e.EndTime, string(e.Status), e.MaxParticipants, e.CurrentParticipants, e.CreatedBy,
		e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return nil, dbx.LookupError(err)
	}
	return e, nil
}

// List returns events matching filter ordered by start time.
func (r *PostgresRepository) List(ctx context.Context, filter models.EventFilter) ([]*models.Event, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		where = append(where, fmt.Sprintf("created_by = $%d", len(args)))
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY start_time, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Update writes the descriptive attributes of e. CurrentParticipants is never
// written here. A MaxParticipants below the stored participant count matches
// no row and yields common.ErrorConflict; a missing id yields
// common.ErrorNotFound.
func (r *PostgresRepository) Update(ctx context.Context, e *models.Event) error {
	query := `UPDATE events SET title = $2, description = $3, picture_url = $4, address = $5,
		latitude = $6, longitude = $7, start_time = $8, end_time = $9, status = $10,
		max_participants = $11, updated_at = $12
		WHERE id = $1 AND ($11::integer IS NULL OR current_participants <= $11::integer)`

	res, err := r.db.ExecContext(ctx, query,
		e.ID, e.Title, e.Description, e.PictureURL, e.Address, e.Latitude, e.Longitude,
		e.StartTime, e.EndTime, string(e.Status), e.MaxParticipants, e.UpdatedAt)
	if err != nil {
		return dbx.LookupError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, e.ID); err != nil {
		return err
	}
	return common.ErrorConflict
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return dbx.LookupError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// ReserveSeats admits n participants with a single compare-and-increment.
// When the event has no room (or does not exist) no row matches and
// common.ErrorConflict is returned.
func (r *PostgresRepository) ReserveSeats(ctx context.Context, id string, n int) error {
	query := `UPDATE events
		SET current_participants = current_participants + $2, updated_at = now()
		WHERE id = $1 AND (max_participants IS NULL OR current_participants + $2 <= max_participants)`

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

// ReleaseSeats returns n seats, never dropping below zero.
func (r *PostgresRepository) ReleaseSeats(ctx context.Context, id string, n int) error {
	query := `UPDATE events
		SET current_participants = GREATEST(current_participants - $2, 0), updated_at = now()
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
