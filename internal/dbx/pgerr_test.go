package dbx

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/eventpass/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestLookupError(t *testing.T) {
	invalidID := &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}

	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{"no rows", sql.ErrNoRows, true},
		{"malformed uuid", invalidID, true},
		{"wrapped malformed uuid", fmt.Errorf("exec: %w", invalidID), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"connection", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := LookupError(tt.err)
			assert.Equal(t, tt.notFound, errors.Is(err, common.ErrorNotFound))
			if !tt.notFound {
				assert.ErrorIs(t, err, tt.err)
				assert.Contains(t, err.Error(), "db error")
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "22P02"}))
	assert.False(t, IsUniqueViolation(errors.New("x")))
}
