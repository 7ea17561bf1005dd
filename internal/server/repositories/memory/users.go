package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/common"
	"github.com/dmitrijs2005/eventpass/internal/server/models"
)

type userRepo struct{ base }

func (r *userRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	defer r.write()()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return nil, common.ErrorConflict
		}
	}
	r.s.users[u.ID] = *u
	return u, nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	defer r.read()()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	defer r.read()()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *userRepo) Update(_ context.Context, u *models.User) error {
	defer r.write()()
	existing, ok := r.s.users[u.ID]
	if !ok {
		return common.ErrorNotFound
	}
	updated := *u
	updated.Email = existing.Email
	updated.LastLoginAt = existing.LastLoginAt
	updated.CreatedAt = existing.CreatedAt
	r.s.users[u.ID] = updated
	return nil
}

func (r *userRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	defer r.write()()
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.LastLoginAt = &at
	r.s.users[id] = u
	return nil
}

func (r *userRepo) Count(context.Context) (int64, error) {
	defer r.read()()
	return int64(len(r.s.users)), nil
}

func (r *userRepo) CountActiveSince(_ context.Context, since time.Time) (int64, error) {
	defer r.read()()
	var n int64
	for _, u := range r.s.users {
		if u.LastLoginAt != nil && !u.LastLoginAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *userRepo) RecentLogins(_ context.Context, limit int) ([]*models.User, error) {
	defer r.read()()
	var result []*models.User
	for _, u := range r.s.users {
		if u.LastLoginAt != nil {
			u := u
			result = append(result, &u)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastLoginAt.After(*result[j].LastLoginAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
