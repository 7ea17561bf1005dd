package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/common"
	"github.com/dmitrijs2005/eventpass/internal/server/models"
)

type timeSlotRepo struct{ base }

func (r *timeSlotRepo) Create(_ context.Context, ts *models.EventTimeSlot) error {
	defer r.write()()
	r.s.timeSlots[ts.ID] = *ts
	return nil
}

func (r *timeSlotRepo) GetByID(_ context.Context, id string) (*models.EventTimeSlot, error) {
	defer r.read()()
	ts, ok := r.s.timeSlots[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &ts, nil
}

func (r *timeSlotRepo) ListByEvent(_ context.Context, eventID string) ([]models.EventTimeSlot, error) {
	defer r.read()()
	var result []models.EventTimeSlot
	for _, ts := range r.s.timeSlots {
		if ts.EventID == eventID {
			result = append(result, ts)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].StartTime.Before(result[j].StartTime)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *timeSlotRepo) Reserve(_ context.Context, id string, n int) error {
	defer r.write()()
	ts, ok := r.s.timeSlots[id]
	if !ok {
		return common.ErrorConflict
	}
	if ts.Status != models.TimeSlotStatusAvailable && ts.Status != models.TimeSlotStatusReserved {
		return common.ErrorConflict
	}
	if ts.CurrentCapacity+n > ts.MaxCapacity {
		return common.ErrorConflict
	}
	ts.CurrentCapacity += n
	if ts.IsFull() {
		ts.Status = models.TimeSlotStatusFull
	}
	ts.UpdatedAt = time.Now().UTC()
	r.s.timeSlots[id] = ts
	return nil
}

func (r *timeSlotRepo) Release(_ context.Context, id string, n int) error {
	defer r.write()()
	ts, ok := r.s.timeSlots[id]
	if !ok {
		return common.ErrorNotFound
	}
	ts.CurrentCapacity = max(ts.CurrentCapacity-n, 0)
	if ts.Status == models.TimeSlotStatusFull {
		ts.Status = models.TimeSlotStatusAvailable
	}
	ts.UpdatedAt = time.Now().UTC()
	r.s.timeSlots[id] = ts
	return nil
}
