package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/common"
	"github.com/dmitrijs2005/eventpass/internal/logging"
	"github.com/dmitrijs2005/eventpass/internal/server/auth"
	"github.com/dmitrijs2005/eventpass/internal/server/config"
	"github.com/dmitrijs2005/eventpass/internal/server/models"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/memory"
	"github.com/dmitrijs2005/eventpass/internal/server/storage"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

type fakeLimiter struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int
	err    error
	resets []string
}

func newFakeLimiter(limit int) *fakeLimiter {
	return &fakeLimiter{limit: limit, counts: map[string]int{}}
}

func (f *fakeLimiter) Allow(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.counts[key]++
	return f.counts[key] <= f.limit, nil
}

func (f *fakeLimiter) Reset(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.counts, key)
	f.resets = append(f.resets, key)
	return nil
}

type fakePictures struct {
	prefixes []string
	keys     []string
	err      error
}

func (f *fakePictures) UploadURL(_ context.Context, prefix string) (*storage.Upload, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.prefixes = append(f.prefixes, prefix)
	key := prefix + "/2025/01/01/obj"
	return &storage.Upload{Key: key, URL: "http://s3.local/pictures/" + key + "?X-Amz-Signature=x", ExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (f *fakePictures) DownloadURL(_ context.Context, key string) (*storage.Download, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, key)
	return &storage.Download{URL: "http://s3.local/pictures/" + key + "?X-Amz-Signature=y", ExpiresAt: time.Now().Add(time.Minute)}, nil
}

var _ PictureStore = (*storage.Presigner)(nil)

// adminViewer sees every event regardless of status.
var adminViewer = Caller{Role: models.RoleAdmin}

// pingFailing makes the store probe fail while every repository works.
type pingFailing struct {
	*memory.Manager
}

func (pingFailing) Ping(context.Context) error { return errors.New("probe failed") }

type fixture struct {
	repos    *memory.Manager
	auth     *AuthService
	events   *EventService
	limiter  *fakeLimiter
	pictures *fakePictures
	tokens   *auth.TokenIssuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		AccessTokenValidityDuration: time.Hour,
		AdminTokenValidityDuration:  30 * time.Minute,
	}
	m := memory.NewManager()
	tokens := auth.NewTokenIssuer(testSecret)
	limiter := newFakeLimiter(100)
	pics := &fakePictures{}
	logger := logging.NewNop()

	return &fixture{
		repos:    m,
		auth:     NewAuthService(m, tokens, auth.NewPasswordHasher(bcrypt.MinCost), limiter, pics, cfg, logger),
		events:   NewEventService(m, pics, logger),
		limiter:  limiter,
		pictures: pics,
		tokens:   tokens,
	}
}

func (f *fixture) register(t *testing.T, email string) *AuthResult {
	t.Helper()
	res, err := f.auth.Register(context.Background(), RegisterInput{
		Email: email, Password: "Secr3t!", FirstName: "A", LastName: "B",
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) provisionAdmin(t *testing.T, email string) {
	t.Helper()
	_, err := f.auth.ProvisionAdmin(context.Background(), AdminInput{
		Email: email, Password: "AdminPass1", AdminSecret: "s3cret-admin", FirstName: "Ada", LastName: "Admin",
	})
	require.NoError(t, err)
}

func requireKind(t *testing.T, err error, kind common.Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, common.KindOf(err), "error: %v", err)
	if msg != "" {
		require.Equal(t, msg, err.Error())
	}
}
