// Package memory is an in-process RepositoryManager for tests and for
// running the server with a memory:// DSN. Transactions are serialised and
// roll back by restoring a snapshot taken when they began.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/dmitrijs2005/eventpass/internal/dbx"
	"github.com/dmitrijs2005/eventpass/internal/server/models"
)

var errNoSQL = errors.New("memory store does not execute SQL")

type store struct {
	mu            sync.RWMutex
	users         map[string]models.User
	events        map[string]models.Event
	timeSlots     map[string]models.EventTimeSlot
	registrations map[string]models.EventRegistration
}

func newStore() *store {
	return &store{
		users:         map[string]models.User{},
		events:        map[string]models.Event{},
		timeSlots:     map[string]models.EventTimeSlot{},
		registrations: map[string]models.EventRegistration{},
	}
}

type snapshot struct {
	users         map[string]models.User
	events        map[string]models.Event
	timeSlots     map[string]models.EventTimeSlot
	registrations map[string]models.EventRegistration
}

func clone[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// snapshot copies the maps. Stored values hold pointer fields that are
// replaced, never mutated in place, so a shallow copy is enough.
func (s *store) snapshot() snapshot {
	return snapshot{
		users:         clone(s.users),
		events:        clone(s.events),
		timeSlots:     clone(s.timeSlots),
		registrations: clone(s.registrations),
	}
}

func (s *store) restore(snap snapshot) {
	s.users = snap.users
	s.events = snap.events
	s.timeSlots = snap.timeSlots
	s.registrations = snap.registrations
}

// handle is the dbx.DBTX given to repositories. inTx marks handles passed
// into RunInTx, whose caller already holds the store's write lock.
type handle struct {
	inTx bool
}

func (h *handle) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNoSQL
}

func (h *handle) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNoSQL
}

// QueryRowContext is never called by the memory repositories.
func (h *handle) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func inTx(db dbx.DBTX) bool {
	h, ok := db.(*handle)
	return ok && h.inTx
}

// base carries the locking policy shared by all memory repositories.
type base struct {
	s      *store
	locked bool
}

func (b base) read() func() {
	if b.locked {
		return func() {}
	}
	b.s.mu.RLock()
	return b.s.mu.RUnlock
}

func (b base) write() func() {
	if b.locked {
		return func() {}
	}
	b.s.mu.Lock()
	return b.s.mu.Unlock
}

// TxRunner serialises units of work against a store.
type TxRunner struct {
	s *store
}

// RunInTx holds the store's write lock while fn runs. If fn fails or
// panics, every change it made is discarded.
func (r *TxRunner) RunInTx(ctx context.Context, fn dbx.TxFunc) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	snap := r.s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			r.s.restore(snap)
			panic(p)
		}
		if err != nil {
			r.s.restore(snap)
		}
	}()

	return fn(ctx, &handle{inTx: true})
}
