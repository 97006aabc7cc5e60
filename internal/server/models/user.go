// Package models defines the server-side data models persisted in the database.
package models

import "time"

// Roles assignable to a user account.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an identity record. TOTPSecret is non-empty only while a
// two-factor setup is in progress or two-factor auth is enabled; the
// failed-login counter resets to zero whenever a lockout is triggered or a
// login succeeds.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string
	Status       string

	FailedLoginAttempts int
	LockoutUntil        *time.Time

	TOTPEnabled bool
	TOTPSecret  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
