package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/server/models"
)

// Repository persists identity records. Email arguments are expected to be
// normalized already.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	Count(ctx context.Context) (int64, error)
	CountActiveSince(ctx context.Context, since time.Time) (int64, error)
	RecentLogins(ctx context.Context, limit int) ([]*models.User, error)
}
