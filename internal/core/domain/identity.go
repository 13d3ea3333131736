// Package domain contains the core entities and access-control rules for sandboxAuth.
package domain

import (
	"time"
)

// User is the identity anchor. Everything else (accounts, sessions,
// authenticators, API keys, memberships) hangs off a user row.
type User struct {
	ID            string     `json:"id"`
	Name          *string    `json:"name,omitempty"`
	Email         string     `json:"email"`
	EmailVerified *time.Time `json:"email_verified,omitempty"`
	Image         *string    `json:"image,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Account links a user to an external identity provider.
// Identified by (Provider, ProviderAccountID).
type Account struct {
	Provider          string    `json:"provider"`
	ProviderAccountID string    `json:"provider_account_id"`
	UserID            string    `json:"user_id"`
	Type              string    `json:"type"` // e.g. "oauth", "oidc"
	RefreshToken      *string   `json:"-"`
	AccessToken       *string   `json:"-"`
	ExpiresAt         *int64    `json:"expires_at,omitempty"`
	TokenType         *string   `json:"token_type,omitempty"`
	Scope             *string   `json:"scope,omitempty"`
	IDToken           *string   `json:"-"`
	SessionState      *string   `json:"session_state,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Session is a bearer token proving an authenticated user until Expires.
// An expired session is equivalent to a missing one everywhere in the system.
type Session struct {
	SessionToken string    `json:"-"`
	UserID       string    `json:"user_id"`
	Expires      time.Time `json:"expires"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the session is past its validity window.
func (s *Session) Expired(now time.Time) bool {
	return !s.Expires.After(now)
}

// Authenticator is a WebAuthn credential. Counter must strictly increase on
// every successful assertion; a regression signals a cloned credential.
type Authenticator struct {
	UserID               string  `json:"user_id"`
	CredentialID         string  `json:"credential_id"`
	ProviderAccountID    string  `json:"provider_account_id"`
	CredentialPublicKey  string  `json:"credential_public_key"`
	Counter              int64   `json:"counter"`
	CredentialDeviceType string  `json:"credential_device_type"`
	CredentialBackedUp   bool    `json:"credential_backed_up"`
	Transports           *string `json:"transports,omitempty"`
}

// VerificationToken is a one-shot token bound to an identifier (usually an
// email). No user foreign key: verification can precede the user row.
type VerificationToken struct {
	Identifier string    `json:"identifier"`
	Token      string    `json:"-"`
	Expires    time.Time `json:"expires"`
}
