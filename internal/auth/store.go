package auth

import (
	"context"
	"errors"
	"time"
)

// User is a user account as exposed over the API. The password hash
// never leaves this package.
type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// Credentials is a user record including the bcrypt password hash.
type Credentials struct {
	User
	PasswordHash string
}

// Store errors.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
)

// UserStore persists user accounts.
type UserStore interface {
	// GetCredentials looks a user up by username for login.
	GetCredentials(ctx context.Context, username string) (*Credentials, error)

	// Create inserts a new user. The password arrives pre-hashed.
	Create(ctx context.Context, username, passwordHash string, isAdmin bool) (*User, error)

	// List returns all users ordered by ID.
	List(ctx context.Context) ([]User, error)

	// Delete removes a user by ID.
	Delete(ctx context.Context, id int) error

	// SetPassword replaces a user's password hash.
	SetPassword(ctx context.Context, id int, passwordHash string) error

	// Count returns the total number of users.
	Count(ctx context.Context) (int64, error)
}
