package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/common"
	"github.com/dmitrijs2005/eventpass/internal/server/models"
)

type eventRepo struct{ base }

func (r *eventRepo) Create(_ context.Context, e *models.Event) error {
	defer r.write()()
	stored := *e
	stored.TimeSlots = nil
	r.s.events[e.ID] = stored
	return nil
}

func (r *eventRepo) GetByID(_ context.Context, id string) (*models.Event, error) {
	defer r.read()()
	e, ok := r.s.events[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &e, nil
}

func (r *eventRepo) List(_ context.Context, filter models.EventFilter) ([]*models.Event, error) {
	defer r.read()()
	result := []*models.Event{}
	for _, e := range r.s.events {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.CreatedBy != "" && e.CreatedBy != filter.CreatedBy {
			continue
		}
		e := e
		result = append(result, &e)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].StartTime.Before(result[j].StartTime)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *eventRepo) Update(_ context.Context, e *models.Event) error {
	defer r.write()()
	existing, ok := r.s.events[e.ID]
	if !ok {
		return common.ErrorNotFound
	}
	if e.MaxParticipants != nil && existing.CurrentParticipants > *e.MaxParticipants {
		return common.ErrorConflict
	}
	updated := *e
	updated.TimeSlots = nil
	updated.CurrentParticipants = existing.CurrentParticipants
	updated.CreatedBy = existing.CreatedBy
	updated.CreatedAt = existing.CreatedAt
	r.s.events[e.ID] = updated
	return nil
}

// Delete removes the event together with its slots and registrations.
func (r *eventRepo) Delete(_ context.Context, id string) error {
	defer r.write()()
	if _, ok := r.s.events[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.events, id)
	for sid, ts := range r.s.timeSlots {
		if ts.EventID == id {
			delete(r.s.timeSlots, sid)
		}
	}
	for rid, reg := range r.s.registrations {
		if reg.EventID == id {
			delete(r.s.registrations, rid)
		}
	}
	return nil
}

func (r *eventRepo) ReserveSeats(_ context.Context, id string, n int) error {
	defer r.write()()
	e, ok := r.s.events[id]
	if !ok || !e.HasRoomFor(n) {
		return common.ErrorConflict
	}
	e.CurrentParticipants += n
	e.UpdatedAt = time.Now().UTC()
	r.s.events[id] = e
	return nil
}

func (r *eventRepo) ReleaseSeats(_ context.Context, id string, n int) error {
	defer r.write()()
	e, ok := r.s.events[id]
	if !ok {
		return common.ErrorNotFound
	}
	e.CurrentParticipants = max(e.CurrentParticipants-n, 0)
	e.UpdatedAt = time.Now().UTC()
	r.s.events[id] = e
	return nil
}
