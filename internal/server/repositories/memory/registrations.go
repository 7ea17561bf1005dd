package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/common"
	"github.com/dmitrijs2005/eventpass/internal/server/models"
)

type registrationRepo struct{ base }

func (r *registrationRepo) Create(_ context.Context, reg *models.EventRegistration) error {
	defer r.write()()
	r.s.registrations[reg.ID] = *reg
	return nil
}

func (r *registrationRepo) GetByID(_ context.Context, id string) (*models.EventRegistration, error) {
	defer r.read()()
	reg, ok := r.s.registrations[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &reg, nil
}

func (r *registrationRepo) UpdateStatus(_ context.Context, id string, from, to models.RegistrationStatus, at time.Time) error {
	defer r.write()()
	reg, ok := r.s.registrations[id]
	if !ok || reg.RegistrationStatus != from {
		return common.ErrorConflict
	}
	reg.RegistrationStatus = to
	reg.UpdatedAt = at
	r.s.registrations[id] = reg
	return nil
}

func (r *registrationRepo) ListByUser(_ context.Context, userID string) ([]*models.EventRegistration, error) {
	defer r.read()()
	result := r.filter(func(reg models.EventRegistration) bool {
		return reg.UserID != nil && *reg.UserID == userID
	})
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *registrationRepo) ListByEvent(_ context.Context, eventID string) ([]*models.EventRegistration, error) {
	defer r.read()()
	result := r.filter(func(reg models.EventRegistration) bool { return reg.EventID == eventID })
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *registrationRepo) filter(keep func(models.EventRegistration) bool) []*models.EventRegistration {
	result := []*models.EventRegistration{}
	for _, reg := range r.s.registrations {
		if keep(reg) {
			reg := reg
			result = append(result, &reg)
		}
	}
	return result
}
