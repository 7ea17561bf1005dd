package registrations

import (
	"context"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/server/models"
)

// Repository persists registrations. Rows are never deleted; cancellation
// is a status transition.
type Repository interface {
	Create(ctx context.Context, reg *models.EventRegistration) error
	GetByID(ctx context.Context, id string) (*models.EventRegistration, error)
	UpdateStatus(ctx context.Context, id string, from, to models.RegistrationStatus, at time.Time) error
	ListByUser(ctx context.Context, userID string) ([]*models.EventRegistration, error)
	ListByEvent(ctx context.Context, eventID string) ([]*models.EventRegistration, error)
}
