package testutil

import (
	"context"
	"time"

	"github.com/poyrazK/sandboxAuth/internal/core/domain"
	"github.com/stretchr/testify/mock"
)

// MockRepo implements ports.Repository for testing.
type MockRepo struct {
	mock.Mock
}

// --- Users ---

func (m *MockRepo) CreateUser(ctx context.Context, user *domain.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockRepo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(id)
	if v := args.Get(0); v != nil {
		return v.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(email)
	if v := args.Get(0); v != nil {
		return v.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) UpdateUser(ctx context.Context, user *domain.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockRepo) DeleteUser(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

// --- Accounts ---

func (m *MockRepo) CreateAccount(ctx context.Context, account *domain.Account) error {
	args := m.Called(account)
	return args.Error(0)
}

func (m *MockRepo) GetAccount(ctx context.Context, provider, providerAccountID string) (*domain.Account, error) {
	args := m.Called(provider, providerAccountID)
	if v := args.Get(0); v != nil {
		return v.(*domain.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) ListAccountsForUser(ctx context.Context, userID string) ([]domain.Account, error) {
	args := m.Called(userID)
	if v := args.Get(0); v != nil {
		return v.([]domain.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) DeleteAccount(ctx context.Context, provider, providerAccountID string) error {
	args := m.Called(provider, providerAccountID)
	return args.Error(0)
}

// --- Sessions ---

func (m *MockRepo) CreateSession(ctx context.Context, session *domain.Session) error {
	args := m.Called(session)
	return args.Error(0)
}

func (m *MockRepo) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	args := m.Called(token)
	if v := args.Get(0); v != nil {
		return v.(*domain.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) ListSessionsForUser(ctx context.Context, userID string) ([]domain.Session, error) {
	args := m.Called(userID)
	if v := args.Get(0); v != nil {
		return v.([]domain.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) DeleteSession(ctx context.Context, token string) error {
	args := m.Called(token)
	return args.Error(0)
}

func (m *MockRepo) DeleteSessionsForUser(ctx context.Context, userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(now)
	return args.Get(0).(int64), args.Error(1)
}

// --- Authenticators ---

func (m *MockRepo) CreateAuthenticator(ctx context.Context, auth *domain.Authenticator) error {
	args := m.Called(auth)
	return args.Error(0)
}

func (m *MockRepo) GetAuthenticator(ctx context.Context, credentialID string) (*domain.Authenticator, error) {
	args := m.Called(credentialID)
	if v := args.Get(0); v != nil {
		return v.(*domain.Authenticator), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) ListAuthenticatorsForUser(ctx context.Context, userID string) ([]domain.Authenticator, error) {
	args := m.Called(userID)
	if v := args.Get(0); v != nil {
		return v.([]domain.Authenticator), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) UpdateAuthenticatorCounter(ctx context.Context, credentialID string, counter int64) error {
	args := m.Called(credentialID, counter)
	return args.Error(0)
}

// --- Verification tokens ---

func (m *MockRepo) CreateVerificationToken(ctx context.Context, vt *domain.VerificationToken) error {
	args := m.Called(vt)
	return args.Error(0)
}

func (m *MockRepo) ConsumeVerificationToken(ctx context.Context, identifier, token string) (*domain.VerificationToken, error) {
	args := m.Called(identifier, token)
	if v := args.Get(0); v != nil {
		return v.(*domain.VerificationToken), args.Error(1)
	}
	return nil, args.Error(1)
}

// --- Organizations ---

func (m *MockRepo) CreateOrganization(ctx context.Context, org *domain.Organization) error {
	args := m.Called(org)
	return args.Error(0)
}

func (m *MockRepo) CreateOrganizationWithOwner(ctx context.Context, org *domain.Organization, owner *domain.Member) error {
	args := m.Called(org, owner)
	return args.Error(0)
}

func (m *MockRepo) GetOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	args := m.Called(id)
	if v := args.Get(0); v != nil {
		return v.(*domain.Organization), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) UpdateOrganization(ctx context.Context, org *domain.Organization) error {
	args := m.Called(org)
	return args.Error(0)
}

func (m *MockRepo) DeleteOrganization(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockRepo) ListOrganizationsForUser(ctx context.Context, userID string) ([]domain.Organization, error) {
	args := m.Called(userID)
	if v := args.Get(0); v != nil {
		return v.([]domain.Organization), args.Error(1)
	}
	return nil, args.Error(1)
}

// --- Memberships ---

func (m *MockRepo) CreateMember(ctx context.Context, member *domain.Member) error {
	args := m.Called(member)
	return args.Error(0)
}

func (m *MockRepo) GetMember(ctx context.Context, orgID, userID string) (*domain.Member, error) {
	args := m.Called(orgID, userID)
	if v := args.Get(0); v != nil {
		return v.(*domain.Member), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) ListMembers(ctx context.Context, orgID string) ([]domain.Member, error) {
	args := m.Called(orgID)
	if v := args.Get(0); v != nil {
		return v.([]domain.Member), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) UpdateMemberRole(ctx context.Context, orgID, userID string, role domain.Role) error {
	args := m.Called(orgID, userID, role)
	return args.Error(0)
}

func (m *MockRepo) DeleteMember(ctx context.Context, orgID, userID string) error {
	args := m.Called(orgID, userID)
	return args.Error(0)
}

func (m *MockRepo) CountOwners(ctx context.Context, orgID string) (int, error) {
	args := m.Called(orgID)
	return args.Int(0), args.Error(1)
}

// --- Invitations ---

func (m *MockRepo) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	args := m.Called(inv)
	return args.Error(0)
}

func (m *MockRepo) GetInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	args := m.Called(token)
	if v := args.Get(0); v != nil {
		return v.(*domain.Invitation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) GetPendingInvitation(ctx context.Context, orgID, email string, now time.Time) (*domain.Invitation, error) {
	args := m.Called(orgID, email, now)
	if v := args.Get(0); v != nil {
		return v.(*domain.Invitation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) ListInvitations(ctx context.Context, orgID string) ([]domain.Invitation, error) {
	args := m.Called(orgID)
	if v := args.Get(0); v != nil {
		return v.([]domain.Invitation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) DeleteInvitation(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockRepo) RedeemInvitation(ctx context.Context, token, userID string, now time.Time) (*domain.Member, error) {
	args := m.Called(token, userID, now)
	if v := args.Get(0); v != nil {
		return v.(*domain.Member), args.Error(1)
	}
	return nil, args.Error(1)
}

// --- API keys ---

func (m *MockRepo) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockRepo) GetAPIKey(ctx context.Context, id string) (*domain.APIKey, error) {
	args := m.Called(id)
	if v := args.Get(0); v != nil {
		return v.(*domain.APIKey), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	args := m.Called(keyHash)
	if v := args.Get(0); v != nil {
		return v.(*domain.APIKey), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) ListAPIKeysForUser(ctx context.Context, userID string) ([]domain.APIKey, error) {
	args := m.Called(userID)
	if v := args.Get(0); v != nil {
		return v.([]domain.APIKey), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) ListAPIKeysForOrganization(ctx context.Context, orgID string) ([]domain.APIKey, error) {
	args := m.Called(orgID)
	if v := args.Get(0); v != nil {
		return v.([]domain.APIKey), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error {
	args := m.Called(id, usedAt)
	return args.Error(0)
}

func (m *MockRepo) DeactivateAPIKey(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

// --- Audit ---

func (m *MockRepo) SaveAuditLog(ctx context.Context, entry *domain.AuditLog) error {
	args := m.Called(entry)
	return args.Error(0)
}

func (m *MockRepo) GetAuditLogs(ctx context.Context, orgID string) ([]domain.AuditLog, error) {
	args := m.Called(orgID)
	if v := args.Get(0); v != nil {
		return v.([]domain.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
