package models

import "strings"

// Role is the single authorization enumeration used in storage, token
// claims, and route guards.
type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps a stored or claimed role string to a Role. Unknown values
// map to RoleGuest so they never grant more than anonymous access.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleUser:
		return RoleUser
	default:
		return RoleGuest
	}
}

func (r Role) String() string { return string(r) }

// SessionType records how long the client intends to keep its token.
type SessionType string

const (
	SessionTypeSession    SessionType = "session"
	SessionTypePersistent SessionType = "persistent"
)

// Valid reports whether t is a known session type.
func (t SessionType) Valid() bool {
	return t == SessionTypeSession || t == SessionTypePersistent
}

// NormalizeEmail case-folds and trims an address. Every store write and
// lookup goes through it, so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
