package timeslots

import (
	"context"

	"github.com/dmitrijs2005/eventpass/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, slot *models.EventTimeSlot) error
	GetByID(ctx context.Context, id string) (*models.EventTimeSlot, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.EventTimeSlot, error)
	Reserve(ctx context.Context, id string, n int) error
	Release(ctx context.Context, id string, n int) error
}
