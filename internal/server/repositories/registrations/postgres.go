// Package registrations provides the PostgreSQL-backed registration store.
package registrations

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/common"
	"github.com/dmitrijs2005/eventpass/internal/dbx"
	"github.com/dmitrijs2005/eventpass/internal/server/models"
)

const registrationColumns = `id, event_id, user_id, time_slot_id, registration_status, first_name, last_name,
		email, phone_number, number_of_guests, additional_notes, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRegistration(s scanner) (*models.EventRegistration, error) {
	reg := &models.EventRegistration{}
	err := s.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.TimeSlotID, &reg.RegistrationStatus,
		&reg.FirstName, &reg.LastName, &reg.Email, &reg.PhoneNumber, &reg.NumberOfGuests,
		&reg.AdditionalNotes, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *PostgresRepository) Create(ctx context.Context, reg *models.EventRegistration) error {
	query := `INSERT INTO event_registrations (` + registrationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		reg.ID, reg.EventID, reg.UserID, reg.TimeSlotID, string(reg.RegistrationStatus),
		reg.FirstName, reg.LastName, reg.Email, reg.PhoneNumber, reg.NumberOfGuests,
		reg.AdditionalNotes, reg.CreatedAt, reg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.EventRegistration, error) {
	reg, err := scanRegistration(r.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM event_registrations WHERE id = $1`, id))
	if err != nil {
		return nil, dbx.LookupError(err)
	}
	return reg, nil
}

// UpdateStatus moves a registration from one status to another. If the
// stored status is no longer from, nothing changes and common.ErrorConflict
// is returned.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to models.RegistrationStatus, at time.Time) error {
	query := `UPDATE event_registrations SET registration_status = $3, updated_at = $4
		WHERE id = $1 AND registration_status = $2`

	res, err := r.db.ExecContext(ctx, query, id, string(from), string(to), at)
	if err != nil {
		return dbx.LookupError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorConflict
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.EventRegistration, error) {
	return r.list(ctx, `SELECT `+registrationColumns+` FROM event_registrations
		WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
}

func (r *PostgresRepository) ListByEvent(ctx context.Context, eventID string) ([]*models.EventRegistration, error) {
	return r.list(ctx, `SELECT `+registrationColumns+` FROM event_registrations
		WHERE event_id = $1 ORDER BY created_at, id`, eventID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, arg any) ([]*models.EventRegistration, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.EventRegistration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
