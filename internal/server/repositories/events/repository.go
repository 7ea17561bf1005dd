package events

import (
	"context"

	"github.com/dmitrijs2005/eventpass/internal/server/models"
)

// Repository persists events. ReserveSeats and ReleaseSeats are the only
// writers of CurrentParticipants.
type Repository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]*models.Event, error)
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id string) error
	ReserveSeats(ctx context.Context, id string, n int) error
	ReleaseSeats(ctx context.Context, id string, n int) error
}
