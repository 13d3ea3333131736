package domain

import (
	"time"
)

// KeyPrefix is the fixed discriminator every plaintext API key starts with.
// It is also how the access layer tells keys apart from session tokens.
const KeyPrefix = "sk-"

// Scope is a single granular permission attached to an API key.
type Scope string

const (
	ScopeWriteSandbox     Scope = "write:sandbox"
	ScopeDeleteSandbox    Scope = "delete:sandbox"
	ScopeWriteSnapshots   Scope = "write:snapshots"
	ScopeDeleteSnapshots  Scope = "delete:snapshots"
	ScopeWriteRegistries  Scope = "write:registries"
	ScopeDeleteRegistries Scope = "delete:registries"
	ScopeReadVolumes      Scope = "read:volumes"
	ScopeWriteVolumes     Scope = "write:volumes"
	ScopeDeleteVolumes    Scope = "delete:volumes"
)

// AllScopes lists every scope in the permission vocabulary.
var AllScopes = []Scope{
	ScopeWriteSandbox, ScopeDeleteSandbox,
	ScopeWriteSnapshots, ScopeDeleteSnapshots,
	ScopeWriteRegistries, ScopeDeleteRegistries,
	ScopeReadVolumes, ScopeWriteVolumes, ScopeDeleteVolumes,
}

// Valid reports whether s belongs to the scope vocabulary.
func (s Scope) Valid() bool {
	for _, known := range AllScopes {
		if s == known {
			return true
		}
	}
	return false
}

// minRoleForScope maps each scope to the lowest role that grants it for
// session principals. Read scopes need viewer, write scopes need member,
// delete scopes need admin.
var minRoleForScope = map[Scope]Role{
	ScopeWriteSandbox:     RoleMember,
	ScopeDeleteSandbox:    RoleAdmin,
	ScopeWriteSnapshots:   RoleMember,
	ScopeDeleteSnapshots:  RoleAdmin,
	ScopeWriteRegistries:  RoleMember,
	ScopeDeleteRegistries: RoleAdmin,
	ScopeReadVolumes:      RoleViewer,
	ScopeWriteVolumes:     RoleMember,
	ScopeDeleteVolumes:    RoleAdmin,
}

// MinRoleFor returns the lowest role granting scope to a session principal.
func MinRoleFor(scope Scope) Role {
	if r, ok := minRoleForScope[scope]; ok {
		return r
	}
	return RoleOwner
}

// APIKey is a long-lived machine credential. Only the SHA-256 hash of the
// plaintext is stored; the plaintext is returned once at issue time and is
// unrecoverable afterwards.
type APIKey struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	OrganizationID *string    `json:"organization_id,omitempty"` // nil = personal key
	Name           string     `json:"name"`
	KeyHash        string     `json:"-"`          // lowercase hex SHA-256 of the plaintext
	KeyPrefix      string     `json:"key_prefix"` // display fragment, e.g. "sk-Ab1Cd...xyz"
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	IsActive       bool       `json:"is_active"`
	Scopes         []Scope    `json:"scopes"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Expired reports whether the key has an expiry in the past.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}

// HasScope reports whether the key's literal scope set contains scope.
// An empty scope set grants nothing.
func (k *APIKey) HasScope(scope Scope) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
