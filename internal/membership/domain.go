package membership

import (
	"errors"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

var (
	// ErrNotFound means no member carries the requested username.
	ErrNotFound = errors.New("member not found")

	// ErrDuplicateUsername rejects registering an existing username.
	ErrDuplicateUsername = errors.New("username already registered")

	// ErrInvalidCredentials covers bad passwords and unknown or
	// deactivated accounts during login.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidRole rejects roles other than admin and user.
	ErrInvalidRole = errors.New("role must be admin or user")

	// ErrRateLimited throttles register and login attempts.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Member is a library user. Username is the primary key; loans reference
// members by username.
type Member struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// FullName is the display name used in reports and audit details.
func (m Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

// Record is the persisted form of a Member; credentials are serialized
// here but never in API responses.
type Record struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Salt         string    `json:"salt"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

func toRecord(m Member) Record {
	return Record(m)
}

func fromRecord(r Record) Member {
	return Member(r)
}
