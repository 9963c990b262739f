package model

import (
	"errors"
	"time"
)

// Roles. Admin and superadmin hold moderation capability over comments.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

// User represents an account in the system.
type User struct {
	ID             int64     `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	PasswordHashed string    `db:"password_hashed" json:"-"` // "-" hides from JSON output
	DisplayName    string    `db:"display_name" json:"display_name"`
	AvatarURL      *string   `db:"avatar_url" json:"avatar_url"`
	AvatarKey      *string   `db:"avatar_key" json:"-"`
	Gender         *string   `db:"gender" json:"gender,omitempty"` // placeholder-icon hint only
	Role           string    `db:"role" json:"role"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Moderator reports whether the user may pin, approve, or delete any comment.
func (u *User) Moderator() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperadmin
}

// UserSummary is the author projection joined onto comments.
type UserSummary struct {
	ID          int64   `db:"id" json:"id"`
	DisplayName string  `db:"display_name" json:"display_name"`
	AvatarURL   *string `db:"avatar_url" json:"avatar_url"`
	Gender      *string `db:"gender" json:"gender,omitempty"`
}

// RegisterRequest represents the data needed to register a new account.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest represents the data needed to log in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailExists is returned when registering with a taken email
	ErrEmailExists = errors.New("email already registered")

	// ErrInvalidCredentials is returned when login credentials are incorrect
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidEmail is returned when registering with a malformed email
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrWeakPassword is returned when the password fails the minimum length
	ErrWeakPassword = errors.New("password too weak")
)
