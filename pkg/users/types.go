// Package users manages user and admin accounts: lookup by scope, creation
// during signup finalization, and audited profile updates.
package users

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no account matches the reference.
	ErrNotFound = errors.New("account not found")

	// ErrCreationFailed is returned when account creation hits the email
	// uniqueness constraint.
	ErrCreationFailed = errors.New("account creation failed")
)

// ValidationError rejects malformed input before any mutation happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// User is a user-scope account.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	CreatedAt      time.Time `json:"created"`
	UpdatedAt      time.Time `json:"updated"`
}

// Admin is an admin-scope account. Admins are provisioned out of band and
// never created through the signup flow.
type Admin struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"updated"`
}

// UserLogFields is the audit whitelist for user updates.
var UserLogFields = []string{"name", "email", "profile_picture"}

// Record returns the audit record reference for the user.
func (u *User) Record() string {
	return "user:" + u.ID
}

// Snapshot returns the loggable view of the user for diffing.
func (u *User) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"name":            u.Name,
		"email":           u.Email,
		"profile_picture": u.ProfilePicture,
	}
}

// UpdateUserRequest carries a partial profile update; nil fields are left
// untouched.
type UpdateUserRequest struct {
	Name           *string `json:"name,omitempty"`
	Email          *string `json:"email,omitempty"`
	ProfilePicture *string `json:"profile_picture,omitempty"`
}

// ValidateFullName requires at least two words, mirroring the signup form.
func ValidateFullName(name string) error {
	if len(strings.Fields(name)) < 2 {
		return &ValidationError{Field: "name", Reason: "must contain at least two words"}
	}
	return nil
}

// ValidateEmail requires a plain address without display-name decoration.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Reason: "must be a valid email address"}
	}
	return nil
}

// IsEmailShaped reports whether a token subject refers to an address rather
// than an account ID. Pre-account magic-link tokens carry the raw email.
func IsEmailShaped(subject string) bool {
	return ValidateEmail(subject) == nil
}
