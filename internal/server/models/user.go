// Package models defines server-side data models persisted in the database.
package models

import (
	"strings"
	"time"
)

// User is an identity record. Hash and salt fields never leave the server;
// use Public to build the projection returned to clients.
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	PasswordSalt      string
	AdminSecretHash   *string
	AdminSecretSalt   *string
	Role              Role
	FirstName         string
	LastName          string
	FullName          string
	PhoneNumber       *string
	PhoneRegion       *string
	ProfilePictureURL *string
	BiometricEnabled  bool
	SessionType       SessionType
	LastLoginAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FullNameOf is the denormalized display name stored alongside the parts.
func FullNameOf(firstName, lastName string) string {
	return strings.TrimSpace(strings.TrimSpace(firstName) + " " + strings.TrimSpace(lastName))
}

// PublicUser is the sanitized user projection.
type PublicUser struct {
	ID                string      `json:"id"`
	Email             string      `json:"email"`
	Role              Role        `json:"role"`
	FirstName         string      `json:"firstName"`
	LastName          string      `json:"lastName"`
	FullName          string      `json:"fullName"`
	PhoneNumber       *string     `json:"phoneNumber,omitempty"`
	PhoneRegion       *string     `json:"phoneRegion,omitempty"`
	ProfilePictureURL *string     `json:"profilePictureUrl,omitempty"`
	BiometricEnabled  bool        `json:"biometricEnabled"`
	SessionType       SessionType `json:"sessionType"`
	LastLoginAt       *time.Time  `json:"lastLoginAt,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// Public returns the sanitized projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:                u.ID,
		Email:             u.Email,
		Role:              u.Role,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		FullName:          u.FullName,
		PhoneNumber:       u.PhoneNumber,
		PhoneRegion:       u.PhoneRegion,
		ProfilePictureURL: u.ProfilePictureURL,
		BiometricEnabled:  u.BiometricEnabled,
		SessionType:       u.SessionType,
		LastLoginAt:       u.LastLoginAt,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

// ProfileUpdate carries the owner-mutable profile attributes. Nil fields are
// left unchanged. Role is deliberately absent.
type ProfileUpdate struct {
	FirstName        *string
	LastName         *string
	PhoneNumber      *string
	PhoneRegion      *string
	SessionType      *SessionType
	BiometricEnabled *bool
}

// Dashboard is the admin overview aggregated at request time.
type Dashboard struct {
	TotalUsers     int64     `json:"totalUsers"`
	ActiveUsers    int64     `json:"activeUsers"`
	RecentActivity []string  `json:"recentActivity"`
	SystemStatus   string    `json:"systemStatus"`
	LastUpdated    time.Time `json:"lastUpdated"`
}
