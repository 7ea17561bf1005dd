// Package repomanager provides the RepositoryManager abstraction and its
// PostgreSQL implementation, wiring repository constructors together with
// goose migrations.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/dbx"
	"github.com/dmitrijs2005/eventpass/internal/logging"
	"github.com/dmitrijs2005/eventpass/internal/server/migrations"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/events"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/memory"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/registrations"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/timeslots"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// MemoryDSN selects the in-process store.
const MemoryDSN = "memory://"

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct {
	db *sql.DB
	tx *dbx.SQLTxRunner
}

// NewPostgresRepositoryManager wraps an open connection pool.
func NewPostgresRepositoryManager(db *sql.DB) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{db: db, tx: dbx.NewSQLTxRunner(db, nil)}
}

func (m *PostgresRepositoryManager) DB() dbx.DBTX { return m.db }

func (m *PostgresRepositoryManager) TxRunner() dbx.TxRunner { return m.tx }

func (m *PostgresRepositoryManager) Ping(ctx context.Context) error { return m.db.PingContext(ctx) }

func (m *PostgresRepositoryManager) Close() error { return m.db.Close() }

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// Events returns an events.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Events(db dbx.DBTX) events.Repository {
	return events.NewPostgresRepository(db)
}

// TimeSlots returns a timeslots.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) TimeSlots(db dbx.DBTX) timeslots.Repository {
	return timeslots.NewPostgresRepository(db)
}

// Registrations returns a registrations.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Registrations(db dbx.DBTX) registrations.Repository {
	return registrations.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and applies them.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// Open returns the RepositoryManager selected by dsn. For PostgreSQL it
// pings up to attempts times, waiting delay between tries; this retry only
// happens here, at startup.
func Open(ctx context.Context, dsn string, attempts int, delay time.Duration, logger logging.Logger) (RepositoryManager, error) {
	if strings.HasPrefix(dsn, MemoryDSN) {
		logger.Warn(ctx, "using in-memory store; data is lost on restart")
		return memory.NewManager(), nil
	}

	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if attempts < 1 {
		attempts = 1
	}
	for i := 1; ; i++ {
		err = db.PingContext(ctx)
		if err == nil {
			return NewPostgresRepositoryManager(db), nil
		}
		if i >= attempts {
			break
		}
		logger.Warn(ctx, "database not reachable, retrying", "attempt", i, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			_ = db.Close()
			return nil, ctx.Err()
		}
	}

	_ = db.Close()
	return nil, fmt.Errorf("db ping failed after %d attempts: %w", attempts, err)
}
