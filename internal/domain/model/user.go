package model

import (
	"strings"
	"time"

	"ai-image-billing/internal/domain"

	"github.com/google/uuid"
)

// User owns orders and credit transactions. Credits is a materialised
// balance; the ledger is the source of truth.
type User struct {
	ID                       string
	Email                    string
	Credits                  int64
	PreferredPaymentProvider Provider
	PreferredCurrency        string
	Location                 string // ISO country code, routing hint
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

func NewUser(id, email string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:        id,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// SessionUser is the authenticated principal extracted from a session token.
type SessionUser struct {
	ID    string
	Email string
}
