package registrations

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/eventpass/internal/common"
	"github.com/dmitrijs2005/eventpass/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var columns = []string{
	"id", "event_id", "user_id", "time_slot_id", "registration_status", "first_name", "last_name",
	"email", "phone_number", "number_of_guests", "additional_notes", "created_at", "updated_at",
}

func TestCreate_GuestRegistration(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	reg := &models.EventRegistration{
		ID: "r-1", EventID: "e-1", RegistrationStatus: models.RegistrationStatusPending,
		FirstName: "G", LastName: "H", Email: "g@h.com", NumberOfGuests: 2, CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectExec(`INSERT\s+INTO\s+event_registrations`).
		WithArgs("r-1", "e-1", nil, nil, "pending", "G", "H", "g@h.com", nil, 2, nil, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), reg); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`FROM\s+event_registrations\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("r-1", "e-1", "u-1", "s-1", "confirmed", "A", "B", "a@b.com", nil, int64(1), "vegan", now, now))

	reg, err := repo.GetByID(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if reg.UserID == nil || *reg.UserID != "u-1" || reg.TimeSlotID == nil || *reg.TimeSlotID != "s-1" {
		t.Fatalf("unexpected references: %+v", reg)
	}
	if reg.RegistrationStatus != models.RegistrationStatusConfirmed || reg.Seats() != 2 {
		t.Fatalf("unexpected registration: %+v", reg)
	}

	mock.ExpectQuery(`FROM\s+event_registrations\s+WHERE\s+id`).WithArgs("x").WillReturnError(sql.ErrNoRows)
	if _, err := repo.GetByID(context.Background(), "x"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestUpdateStatus_IsConditionalOnPreviousStatus(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	q := `UPDATE\s+event_registrations\s+SET\s+registration_status\s*=\s*\$3.*WHERE\s+id\s*=\s*\$1\s+AND\s+registration_status\s*=\s*\$2`
	mock.ExpectExec(`(?s)`+q).WithArgs("r-1", "pending", "cancelled", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)`+q).WithArgs("r-1", "pending", "cancelled", at).WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	if err := repo.UpdateStatus(ctx, "r-1", models.RegistrationStatusPending, models.RegistrationStatusCancelled, at); err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	err := repo.UpdateStatus(ctx, "r-1", models.RegistrationStatusPending, models.RegistrationStatusCancelled, at)
	if !errors.Is(err, common.ErrorConflict) {
		t.Fatalf("want common.ErrorConflict, got %v", err)
	}
}

func TestListByUserAndEvent(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)WHERE\s+user_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+DESC`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("r-1", "e-1", "u-1", nil, "pending", "A", "B", "a@b.com", nil, int64(0), nil, now, now))
	mock.ExpectQuery(`(?s)WHERE\s+event_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at`).
		WithArgs("e-9").
		WillReturnRows(sqlmock.NewRows(columns))

	mine, err := repo.ListByUser(context.Background(), "u-1")
	if err != nil || len(mine) != 1 || mine[0].TimeSlotID != nil {
		t.Fatalf("ListByUser = %+v, %v", mine, err)
	}
	byEvent, err := repo.ListByEvent(context.Background(), "e-9")
	if err != nil || byEvent == nil || len(byEvent) != 0 {
		t.Fatalf("ListByEvent = %#v, %v", byEvent, err)
	}
}

func TestMalformedIDIsNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	ctx := context.Background()
	badID := &pgconn.PgError{Code: "22P02"}

	mock.ExpectQuery(`FROM\s+event_registrations\s+WHERE\s+id`).WithArgs("abc").WillReturnError(badID)
	if _, err := repo.GetByID(ctx, "abc"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("GetByID: want common.ErrorNotFound, got %v", err)
	}

	mock.ExpectExec(`UPDATE\s+event_registrations`).WillReturnError(badID)
	err := repo.UpdateStatus(ctx, "abc", models.RegistrationStatusPending, models.RegistrationStatusConfirmed, time.Now())
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("UpdateStatus: want common.ErrorNotFound, got %v", err)
	}
}
