// Package auth issues and verifies access tokens and hashes credentials.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/common"
	"github.com/dmitrijs2005/eventpass/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the signed claim set. Subject carries the user id; FirstName and
// LastName are present only in admin tokens.
type Claims struct {
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	FirstName string      `json:"firstName,omitempty"`
	LastName  string      `json:"lastName,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenIssuer signs HS256 access tokens with a single configured secret.
// User and admin tokens share the signer and differ only in claims and TTL.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewTokenIssuer(secretKey string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secretKey), now: time.Now}
}

// Issue signs a token for u valid for ttl. extended adds the name claims.
func (i *TokenIssuer) Issue(u *models.User, ttl time.Duration, extended bool) (string, error) {
	now := i.now()
	claims := Claims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if extended {
		claims.FirstName = u.FirstName
		claims.LastName = u.LastName
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
// Expired tokens yield common.ErrTokenExpired; anything else that fails
// yields an error wrapping common.ErrInvalidToken.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}
	claims.Role = models.ParseRole(string(claims.Role))

	return claims, nil
}
