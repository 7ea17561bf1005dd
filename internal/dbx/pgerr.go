package dbx

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/eventpass/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the repositories react to.
const (
	CodeUniqueViolation           = "23505"
	CodeInvalidTextRepresentation = "22P02"
)

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// IsUniqueViolation reports whether err is a Postgres unique_violation.
func IsUniqueViolation(err error) bool {
	return hasCode(err, CodeUniqueViolation)
}

// IsInvalidText reports whether err is a Postgres invalid_text_representation,
// raised for example when a malformed id is compared with a uuid column.
func IsInvalidText(err error) bool {
	return hasCode(err, CodeInvalidTextRepresentation)
}

// LookupError maps the error of a statement keyed by id. No rows and an id
// that cannot be a key both yield common.ErrorNotFound; anything else is
// wrapped as a db error.
func LookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) || IsInvalidText(err) {
		return common.ErrorNotFound
	}
	return fmt.Errorf("db error: %w", err)
}
