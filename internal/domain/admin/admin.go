// Package admin holds the panel administrator aggregate.
package admin

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Admin represents a panel administrator. Usernames are unique
// case-insensitively; sudo grants fleet-wide access.
type Admin struct {
	id              uint
	username        string
	passwordHash    string
	isSudo          bool
	passwordResetAt *time.Time
	createdAt       time.Time
}

// NewAdmin creates an admin with a bcrypt-hashed password.
func NewAdmin(username, password string, isSudo bool, bcryptCost int) (*Admin, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return &Admin{
		username:     username,
		passwordHash: string(hash),
		isSudo:       isSudo,
		createdAt:    time.Now().UTC(),
	}, nil
}

// ReconstructAdmin reconstructs an admin from persistence.
func ReconstructAdmin(id uint, username, passwordHash string, isSudo bool, passwordResetAt *time.Time, createdAt time.Time) (*Admin, error) {
	if id == 0 {
		return nil, fmt.Errorf("admin ID cannot be zero")
	}
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	return &Admin{
		id:              id,
		username:        username,
		passwordHash:    passwordHash,
		isSudo:          isSudo,
		passwordResetAt: passwordResetAt,
		createdAt:       createdAt,
	}, nil
}

func (a *Admin) ID() uint                    { return a.id }
func (a *Admin) Username() string            { return a.username }
func (a *Admin) PasswordHash() string        { return a.passwordHash }
func (a *Admin) IsSudo() bool                { return a.isSudo }
func (a *Admin) PasswordResetAt() *time.Time { return a.passwordResetAt }
func (a *Admin) CreatedAt() time.Time        { return a.createdAt }

// SetID sets the admin ID (persistence layer use only).
func (a *Admin) SetID(id uint) error {
	if a.id != 0 {
		return fmt.Errorf("admin ID is already set")
	}
	a.id = id
	return nil
}

// VerifyPassword checks a plaintext password against the stored hash.
func (a *Admin) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)) == nil
}

// SetPassword replaces the password hash and stamps the reset time, which
// invalidates previously issued admin tokens.
func (a *Admin) SetPassword(password string, bcryptCost int) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	a.passwordHash = string(hash)
	now := time.Now().UTC()
	a.passwordResetAt = &now
	return nil
}

// SetSudo toggles the sudo flag.
func (a *Admin) SetSudo(isSudo bool) {
	a.isSudo = isSudo
}
