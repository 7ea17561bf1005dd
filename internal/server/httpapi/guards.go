package httpapi

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/dmitrijs2005/eventpass/internal/common"
	"github.com/dmitrijs2005/eventpass/internal/server/auth"
	"github.com/dmitrijs2005/eventpass/internal/server/models"
	"github.com/dmitrijs2005/eventpass/internal/server/services"
)

type claimsKey struct{}

func withClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the principal attached by the token guard, or nil.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return c
}

func callerFrom(ctx context.Context) services.Caller {
	c := ClaimsFromContext(ctx)
	if c == nil {
		return services.Caller{Role: models.RoleGuest}
	}
	return services.Caller{UserID: c.UserID(), Role: c.Role}
}

func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, common.BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, common.BearerPrefix))
	return token, token != ""
}

func (s *Server) verify(w http.ResponseWriter, token string) (*auth.Claims, bool) {
	claims, err := s.tokens.Verify(token)
	switch {
	case err == nil:
		return claims, true
	case errors.Is(err, common.ErrTokenExpired):
		writeMessage(w, http.StatusUnauthorized, "Token expired")
	default:
		writeMessage(w, http.StatusUnauthorized, "Invalid token")
	}
	return nil, false
}

// Authenticate is the token guard: it requires a valid bearer token and
// attaches its claims to the request context.
func (s *Server) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get(common.AuthorizationHeaderName))
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}
		claims, ok := s.verify(w, token)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// OptionalAuthenticate attaches claims when a bearer token is sent and lets
// anonymous requests through. A token that fails verification is rejected.
func (s *Server) OptionalAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := bearerToken(header)
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		claims, ok := s.verify(w, token)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// RequireRoles is the role guard. It must run after Authenticate. An empty
// role set admits every authenticated principal.
func RequireRoles(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeMessage(w, http.StatusUnauthorized, "Missing bearer token")
				return
			}
			if len(roles) > 0 && !slices.Contains(roles, claims.Role) {
				writeMessage(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
