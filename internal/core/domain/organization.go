package domain

import (
	"time"
)

// Role is the coarse-grained permission level of an organization member.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// roleRank defines the strict total order OWNER > ADMIN > MEMBER > VIEWER.
var roleRank = map[Role]int{
	RoleOwner:  4,
	RoleAdmin:  3,
	RoleMember: 2,
	RoleViewer: 1,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r grants every capability of other.
// Higher roles are strict supersets of lower ones.
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other]
}

// Organization is a tenant. Memberships, invitations and org-scoped API keys
// are deleted with it.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Image     *string   `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Member joins a user to an organization with exactly one role.
// At most one membership may exist per (organization, user) pair.
type Member struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Invitation is a pending, single-use offer binding an email to an
// organization and a proposed role. Redemption deletes the row, so a
// surviving row is by definition unredeemed.
type Invitation struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	Token          string    `json:"-"`
	InvitedBy      *string   `json:"invited_by,omitempty"` // nulled if the inviter is deleted
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Expired reports whether the invitation is past its validity window.
func (i *Invitation) Expired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}

// AuditLog records administrative actions performed against an organization.
type AuditLog struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Action         string    `json:"action"`        // e.g. "ISSUE_API_KEY", "ADD_MEMBER"
	ResourceType   string    `json:"resource_type"` // e.g. "API_KEY", "MEMBER", "INVITATION"
	ResourceID     string    `json:"resource_id"`
	Details        string    `json:"details"`
	CreatedAt      time.Time `json:"created_at"`
}
