// Package users provides the PostgreSQL-backed identity store.
package users

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/common"
	"github.com/dmitrijs2005/eventpass/internal/dbx"
	"github.com/dmitrijs2005/eventpass/internal/server/models"
)

const userColumns = `id, email, password_hash, password_salt, admin_secret_hash, admin_secret_salt,
		role, first_name, last_name, full_name, phone_number, phone_region, profile_picture_url,
		biometric_enabled, session_type, last_login_at, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	u := &models.User{}
	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.PasswordSalt, &u.AdminSecretHash, &u.AdminSecretSalt,
		&u.Role, &u.FirstName, &u.LastName, &u.FullName, &u.PhoneNumber, &u.PhoneRegion, &u.ProfilePictureURL,
		&u.BiometricEnabled, &u.SessionType, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = models.ParseRole(string(u.Role))
	return u, nil
}

// Create inserts user. A duplicate email yields common.ErrorConflict.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `INSERT INTO users (id, email, password_hash, password_salt, admin_secret_hash, admin_secret_salt,
		role, first_name, last_name, full_name, phone_number, phone_region, profile_picture_url,
		biometric_enabled, session_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.PasswordSalt, user.AdminSecretHash, user.AdminSecretSalt,
		string(user.Role), user.FirstName, user.LastName, user.FullName, user.PhoneNumber, user.PhoneRegion,
		user.ProfilePictureURL, user.BiometricEnabled, string(user.SessionType), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, dbx.LookupError(err)
	}
	return u, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// Update writes every mutable attribute of user, including credentials and
// role. Callers own read-modify-write.
func (r *PostgresRepository) Update(ctx context.Context, user *models.User) error {
	query := `UPDATE users SET password_hash = $2, password_salt = $3, admin_secret_hash = $4,
		admin_secret_salt = $5, role = $6, first_name = $7, last_name = $8, full_name = $9,
		phone_number = $10, phone_region = $11, profile_picture_url = $12, biometric_enabled = $13,
		session_type = $14, updated_at = $15
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		user.ID, user.PasswordHash, user.PasswordSalt, user.AdminSecretHash, user.AdminSecretSalt,
		string(user.Role), user.FirstName, user.LastName, user.FullName, user.PhoneNumber, user.PhoneRegion,
		user.ProfilePictureURL, user.BiometricEnabled, string(user.SessionType), user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) CountActiveSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM users WHERE last_login_at >= $1`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// RecentLogins returns up to limit users ordered by last login, newest first.
// Users who never logged in are excluded.
func (r *PostgresRepository) RecentLogins(ctx context.Context, limit int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE last_login_at IS NOT NULL
		ORDER BY last_login_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
