package memory

import (
	"context"

	"github.com/dmitrijs2005/eventpass/internal/dbx"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/events"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/registrations"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/timeslots"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/users"
)

// Manager vends repositories over a single shared in-memory store.
type Manager struct {
	s  *store
	tx *TxRunner
}

func NewManager() *Manager {
	s := newStore()
	return &Manager{s: s, tx: &TxRunner{s: s}}
}

func (m *Manager) RunMigrations(context.Context) error { return nil }

func (m *Manager) DB() dbx.DBTX { return &handle{} }

func (m *Manager) TxRunner() dbx.TxRunner { return m.tx }

func (m *Manager) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Manager) Close() error { return nil }

func (m *Manager) Users(db dbx.DBTX) users.Repository {
	return &userRepo{base{s: m.s, locked: inTx(db)}}
}

func (m *Manager) Events(db dbx.DBTX) events.Repository {
	return &eventRepo{base{s: m.s, locked: inTx(db)}}
}

func (m *Manager) TimeSlots(db dbx.DBTX) timeslots.Repository {
	return &timeSlotRepo{base{s: m.s, locked: inTx(db)}}
}

func (m *Manager) Registrations(db dbx.DBTX) registrations.Repository {
	return &registrationRepo{base{s: m.s, locked: inTx(db)}}
}
