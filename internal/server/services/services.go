// Package services contains server-side business logic: AuthService for
// identity and admin access, EventService for events, time slots and
// registrations. Both talk to storage only through repomanager.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/common"
	"github.com/dmitrijs2005/eventpass/internal/server/models"
	"github.com/dmitrijs2005/eventpass/internal/server/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/dmitrijs2005/eventpass/internal/server/services")

// TokenIssuer signs access tokens for a user.
type TokenIssuer interface {
	Issue(u *models.User, ttl time.Duration, extended bool) (string, error)
}

// PasswordHasher derives and verifies salted secret hashes.
type PasswordHasher interface {
	Hash(plain string) (hash, salt string, err error)
	Check(hash, plain string) error
	CheckDummy(plain string)
}

// PictureStore issues presigned upload and download targets.
type PictureStore interface {
	UploadURL(ctx context.Context, prefix string) (*storage.Upload, error)
	DownloadURL(ctx context.Context, key string) (*storage.Download, error)
}

const msgPictureNotFound = "Picture not found"

var errPicturesDisabled = errors.New("picture storage is not configured")

// pictureDownload resolves a stored picture reference. Absolute http(s) URLs
// are returned as they are; object keys are presigned only when they live
// under prefix, the namespace uploads for this owner were issued in.
func pictureDownload(ctx context.Context, store PictureStore, ref *string, prefix string) (*storage.Download, error) {
	if ref == nil || *ref == "" {
		return nil, common.NewError(common.KindNotFound, msgPictureNotFound)
	}
	if u, err := url.Parse(*ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return &storage.Download{URL: *ref}, nil
	}
	if !strings.HasPrefix(*ref, prefix+"/") {
		return nil, common.NewError(common.KindNotFound, msgPictureNotFound)
	}
	if store == nil {
		return nil, errPicturesDisabled
	}
	d, err := store.DownloadURL(ctx, *ref)
	if err != nil {
		return nil, fmt.Errorf("presign download: %w", err)
	}
	return d, nil
}

// Caller is the authenticated principal of a request.
type Caller struct {
	UserID string
	Role   models.Role
}

func (c Caller) IsAdmin() bool { return c.Role == models.RoleAdmin }

// CanSee reports whether e is visible to c. Drafts are private to their
// owner and to admins.
func (c Caller) CanSee(e *models.Event) bool {
	if e.Status != models.EventStatusDraft || c.IsAdmin() {
		return true
	}
	return c.UserID != "" && e.CreatedBy == c.UserID
}

// startSpan opens a span named after the service method. Pair it with
// endSpan in a deferred call so failures are recorded on the span.
func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if common.KindOf(err) == common.KindInternal {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

func badRequest(msg string) error {
	return common.NewError(common.KindBadRequest, msg)
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrorNotFound)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
