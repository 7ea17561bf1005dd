package repomanager

import (
	"context"

	"github.com/dmitrijs2005/eventpass/internal/dbx"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/events"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/registrations"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/timeslots"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX: DB() for standalone
// statements, or the handle passed into TxRunner().RunInTx for a unit of work.
type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	DB() dbx.DBTX
	TxRunner() dbx.TxRunner
	Ping(ctx context.Context) error
	Close() error

	Users(db dbx.DBTX) users.Repository
	Events(db dbx.DBTX) events.Repository
	TimeSlots(db dbx.DBTX) timeslots.Repository
	Registrations(db dbx.DBTX) registrations.Repository
}
