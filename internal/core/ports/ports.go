package ports

import (
	"context"
	"time"

	"github.com/poyrazK/sandboxAuth/internal/core/domain"
)

// Repository is the persistent store. Implementations translate storage-level
// failures into the domain error taxonomy at this boundary: missing rows
// become domain.ErrNotFound, unique-constraint violations become the matching
// conflict error. Raw driver errors never escape.
type Repository interface {
	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	// DeleteUser cascades to accounts, sessions, authenticators, API keys and
	// memberships; invitations sent by the user survive with InvitedBy nulled.
	DeleteUser(ctx context.Context, id string) error

	// Accounts
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, provider, providerAccountID string) (*domain.Account, error)
	ListAccountsForUser(ctx context.Context, userID string) ([]domain.Account, error)
	DeleteAccount(ctx context.Context, provider, providerAccountID string) error

	// Sessions
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, token string) (*domain.Session, error)
	ListSessionsForUser(ctx context.Context, userID string) ([]domain.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteSessionsForUser(ctx context.Context, userID string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Authenticators
	CreateAuthenticator(ctx context.Context, auth *domain.Authenticator) error
	GetAuthenticator(ctx context.Context, credentialID string) (*domain.Authenticator, error)
	ListAuthenticatorsForUser(ctx context.Context, userID string) ([]domain.Authenticator, error)
	UpdateAuthenticatorCounter(ctx context.Context, credentialID string, counter int64) error

	// Verification tokens
	CreateVerificationToken(ctx context.Context, vt *domain.VerificationToken) error
	// ConsumeVerificationToken deletes and returns the token in one statement;
	// a second call for the same pair reports domain.ErrNotFound.
	ConsumeVerificationToken(ctx context.Context, identifier, token string) (*domain.VerificationToken, error)

	// Organizations
	CreateOrganization(ctx context.Context, org *domain.Organization) error
	// CreateOrganizationWithOwner creates the organization and its founding
	// owner membership in one transaction.
	CreateOrganizationWithOwner(ctx context.Context, org *domain.Organization, owner *domain.Member) error
	GetOrganization(ctx context.Context, id string) (*domain.Organization, error)
	UpdateOrganization(ctx context.Context, org *domain.Organization) error
	DeleteOrganization(ctx context.Context, id string) error
	ListOrganizationsForUser(ctx context.Context, userID string) ([]domain.Organization, error)

	// Memberships
	CreateMember(ctx context.Context, member *domain.Member) error
	GetMember(ctx context.Context, orgID, userID string) (*domain.Member, error)
	ListMembers(ctx context.Context, orgID string) ([]domain.Member, error)
	UpdateMemberRole(ctx context.Context, orgID, userID string, role domain.Role) error
	DeleteMember(ctx context.Context, orgID, userID string) error
	CountOwners(ctx context.Context, orgID string) (int, error)

	// Invitations
	CreateInvitation(ctx context.Context, inv *domain.Invitation) error
	GetInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error)
	GetPendingInvitation(ctx context.Context, orgID, email string, now time.Time) (*domain.Invitation, error)
	ListInvitations(ctx context.Context, orgID string) ([]domain.Invitation, error)
	DeleteInvitation(ctx context.Context, id string) error
	// RedeemInvitation atomically consumes the invitation row and creates the
	// membership within one transaction. Concurrent redemptions of the same
	// token: exactly one succeeds, the rest see domain.ErrNotFound.
	RedeemInvitation(ctx context.Context, token, userID string, now time.Time) (*domain.Member, error)

	// API keys
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	GetAPIKey(ctx context.Context, id string) (*domain.APIKey, error)
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListAPIKeysForUser(ctx context.Context, userID string) ([]domain.APIKey, error)
	ListAPIKeysForOrganization(ctx context.Context, orgID string) ([]domain.APIKey, error)
	TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error
	DeactivateAPIKey(ctx context.Context, id string) error

	// Audit
	SaveAuditLog(ctx context.Context, entry *domain.AuditLog) error
	GetAuditLogs(ctx context.Context, orgID string) ([]domain.AuditLog, error)

	Ping(ctx context.Context) error
}

// SessionCache is the ephemeral read-through cache in front of session
// lookups. Never authoritative: entries may be dropped at any time and the
// repository remains the source of truth.
type SessionCache interface {
	Get(ctx context.Context, token string) (*domain.Session, bool)
	Set(ctx context.Context, session *domain.Session)
	Delete(ctx context.Context, token string)
	Ping(ctx context.Context) error
}

// IdentityService manages users, linked accounts, sessions, verification
// tokens and WebAuthn authenticators.
type IdentityService interface {
	CreateUser(ctx context.Context, email string, name, image *string) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) error

	LinkAccount(ctx context.Context, account *domain.Account) error
	ListAccounts(ctx context.Context, userID string) ([]domain.Account, error)
	UnlinkAccount(ctx context.Context, provider, providerAccountID string) error

	IssueSession(ctx context.Context, userID string) (*domain.Session, error)
	GetSession(ctx context.Context, token string) (*domain.Session, error)
	InvalidateSession(ctx context.Context, token string) error
	InvalidateUserSessions(ctx context.Context, userID string) error

	CreateVerificationToken(ctx context.Context, identifier string) (*domain.VerificationToken, error)
	RedeemVerificationToken(ctx context.Context, identifier, token string) error

	RegisterAuthenticator(ctx context.Context, auth *domain.Authenticator) error
	ListAuthenticators(ctx context.Context, userID string) ([]domain.Authenticator, error)
	// VerifyAssertion enforces the strictly-increasing counter rule and
	// reports domain.ErrCloneDetected on regression.
	VerifyAssertion(ctx context.Context, credentialID string, counter int64) error
}

// OrgService is the organization directory plus the invitation workflow.
type OrgService interface {
	CreateOrganization(ctx context.Context, name string, image *string, ownerUserID string) (*domain.Organization, error)
	GetOrganization(ctx context.Context, id string) (*domain.Organization, error)
	DeleteOrganization(ctx context.Context, id string) error
	ListOrganizationsForUser(ctx context.Context, userID string) ([]domain.Organization, error)

	AddMember(ctx context.Context, orgID, userID string, role domain.Role) (*domain.Member, error)
	ChangeRole(ctx context.Context, orgID, userID string, role domain.Role) error
	RemoveMember(ctx context.Context, orgID, userID string) error
	ListMembers(ctx context.Context, orgID string) ([]domain.Member, error)

	Invite(ctx context.Context, orgID, email string, role domain.Role, invitedBy string) (*domain.Invitation, error)
	Redeem(ctx context.Context, token, userID string) (*domain.Member, error)
	ListInvitations(ctx context.Context, orgID string) ([]domain.Invitation, error)
	RevokeInvitation(ctx context.Context, orgID, invitationID string) error

	ListAuditLogs(ctx context.Context, orgID string) ([]domain.AuditLog, error)
}

// IssueKeyRequest carries everything needed to mint a new API key.
type IssueKeyRequest struct {
	UserID         string
	OrganizationID *string
	Name           string
	Scopes         []domain.Scope
	ExpiresAt      *time.Time
}

// APIKeyService is the credential store for machine keys.
type APIKeyService interface {
	// Issue returns the plaintext exactly once; only its hash is persisted.
	Issue(ctx context.Context, req IssueKeyRequest) (string, *domain.APIKey, error)
	// Verify resolves a presented plaintext to its record, failing with
	// domain.ErrNotFound, domain.ErrRevoked or domain.ErrExpired.
	Verify(ctx context.Context, presented string) (*domain.APIKey, error)
	Revoke(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*domain.APIKey, error)
	ListForUser(ctx context.Context, userID string) ([]domain.APIKey, error)
	ListForOrganization(ctx context.Context, orgID string) ([]domain.APIKey, error)
}

// AccessService resolves bearer credentials to principals and authorizes
// requested actions. It reports outcomes via the domain error taxonomy and
// never produces HTTP status codes itself.
type AccessService interface {
	// Resolve maps a raw bearer value (session token or sk- key) to a
	// principal, or domain.ErrUnauthenticated.
	Resolve(ctx context.Context, bearer string) (*domain.Principal, error)
	// Authorize checks the principal against a required (organization, scope)
	// pair, returning domain.ErrForbidden on any mismatch.
	Authorize(ctx context.Context, principal *domain.Principal, orgID string, scope domain.Scope) error
	HealthCheck(ctx context.Context) map[string]error
}
