package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/poyrazK/sandboxAuth/internal/core/domain"
)

// fakeRepo is an in-memory ports.Repository for service tests. It enforces
// the same uniqueness rules the real schema does, so services see the same
// conflict errors they would get from postgres.
type fakeRepo struct {
	mu             sync.Mutex
	users          map[string]domain.User
	accounts       map[string]domain.Account // provider|pid
	sessions       map[string]domain.Session
	authenticators map[string]domain.Authenticator // credential_id
	verifTokens    map[string]domain.VerificationToken
	orgs           map[string]domain.Organization
	members        map[string]domain.Member // org|user
	invitations    map[string]domain.Invitation
	apiKeys        map[string]domain.APIKey
	auditLogs      []domain.AuditLog
	pingErr        error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:          make(map[string]domain.User),
		accounts:       make(map[string]domain.Account),
		sessions:       make(map[string]domain.Session),
		authenticators: make(map[string]domain.Authenticator),
		verifTokens:    make(map[string]domain.VerificationToken),
		orgs:           make(map[string]domain.Organization),
		members:        make(map[string]domain.Member),
		invitations:    make(map[string]domain.Invitation),
		apiKeys:        make(map[string]domain.APIKey),
	}
}

func pairKey(a, b string) string { return a + "|" + b }

func (f *fakeRepo) CreateUser(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return fmt.Errorf("users_email_key: %w", domain.ErrConflict)
		}
	}
	f.users[u.ID] = *u
	return nil
}

func (f *fakeRepo) GetUser(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	return &u, nil
}

func (f *fakeRepo) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
}

func (f *fakeRepo) UpdateUser(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	f.users[u.ID] = *u
	return nil
}

func (f *fakeRepo) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	delete(f.users, id)
	for k, a := range f.accounts {
		if a.UserID == id {
			delete(f.accounts, k)
		}
	}
	for k, s := range f.sessions {
		if s.UserID == id {
			delete(f.sessions, k)
		}
	}
	for k, a := range f.authenticators {
		if a.UserID == id {
			delete(f.authenticators, k)
		}
	}
	for k, key := range f.apiKeys {
		if key.UserID == id {
			delete(f.apiKeys, k)
		}
	}
	for k, m := range f.members {
		if m.UserID == id {
			delete(f.members, k)
		}
	}
	for k, inv := range f.invitations {
		if inv.InvitedBy != nil && *inv.InvitedBy == id {
			inv.InvitedBy = nil
			f.invitations[k] = inv
		}
	}
	return nil
}

func (f *fakeRepo) CreateAccount(_ context.Context, a *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pairKey(a.Provider, a.ProviderAccountID)
	if _, ok := f.accounts[k]; ok {
		return fmt.Errorf("accounts_pkey: %w", domain.ErrConflict)
	}
	f.accounts[k] = *a
	return nil
}

func (f *fakeRepo) GetAccount(_ context.Context, provider, pid string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[pairKey(provider, pid)]
	if !ok {
		return nil, fmt.Errorf("account: %w", domain.ErrNotFound)
	}
	return &a, nil
}

func (f *fakeRepo) ListAccountsForUser(_ context.Context, userID string) ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Account
	for _, a := range f.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteAccount(_ context.Context, provider, pid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pairKey(provider, pid)
	if _, ok := f.accounts[k]; !ok {
		return fmt.Errorf("account: %w", domain.ErrNotFound)
	}
	delete(f.accounts, k)
	return nil
}

func (f *fakeRepo) CreateSession(_ context.Context, s *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[s.SessionToken]; ok {
		return fmt.Errorf("sessions_pkey: %w", domain.ErrConflict)
	}
	f.sessions[s.SessionToken] = *s
	return nil
}

func (f *fakeRepo) GetSession(_ context.Context, token string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok {
		return nil, fmt.Errorf("session: %w", domain.ErrNotFound)
	}
	return &s, nil
}

func (f *fakeRepo) ListSessionsForUser(_ context.Context, userID string) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Session
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteSession(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, token)
	return nil
}

func (f *fakeRepo) DeleteSessionsForUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, k)
		}
	}
	return nil
}

func (f *fakeRepo) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, s := range f.sessions {
		if !s.Expires.After(now) {
			delete(f.sessions, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CreateAuthenticator(_ context.Context, a *domain.Authenticator) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.authenticators[a.CredentialID]; ok {
		return fmt.Errorf("authenticators_credential_id_key: %w", domain.ErrConflict)
	}
	f.authenticators[a.CredentialID] = *a
	return nil
}

func (f *fakeRepo) GetAuthenticator(_ context.Context, credentialID string) (*domain.Authenticator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.authenticators[credentialID]
	if !ok {
		return nil, fmt.Errorf("authenticator: %w", domain.ErrNotFound)
	}
	return &a, nil
}

func (f *fakeRepo) ListAuthenticatorsForUser(_ context.Context, userID string) ([]domain.Authenticator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Authenticator
	for _, a := range f.authenticators {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateAuthenticatorCounter(_ context.Context, credentialID string, counter int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.authenticators[credentialID]
	if !ok {
		return fmt.Errorf("authenticator: %w", domain.ErrNotFound)
	}
	a.Counter = counter
	f.authenticators[credentialID] = a
	return nil
}

func (f *fakeRepo) CreateVerificationToken(_ context.Context, vt *domain.VerificationToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pairKey(vt.Identifier, vt.Token)
	if _, ok := f.verifTokens[k]; ok {
		return fmt.Errorf("verification_tokens_pkey: %w", domain.ErrConflict)
	}
	f.verifTokens[k] = *vt
	return nil
}

func (f *fakeRepo) ConsumeVerificationToken(_ context.Context, identifier, token string) (*domain.VerificationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pairKey(identifier, token)
	vt, ok := f.verifTokens[k]
	if !ok {
		return nil, fmt.Errorf("verification token: %w", domain.ErrNotFound)
	}
	delete(f.verifTokens, k)
	return &vt, nil
}

func (f *fakeRepo) CreateOrganization(_ context.Context, org *domain.Organization) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orgs[org.ID] = *org
	return nil
}

func (f *fakeRepo) CreateOrganizationWithOwner(_ context.Context, org *domain.Organization, owner *domain.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orgs[org.ID] = *org
	f.members[pairKey(owner.OrganizationID, owner.UserID)] = *owner
	return nil
}

func (f *fakeRepo) GetOrganization(_ context.Context, id string) (*domain.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	org, ok := f.orgs[id]
	if !ok {
		return nil, fmt.Errorf("organization: %w", domain.ErrNotFound)
	}
	return &org, nil
}

func (f *fakeRepo) UpdateOrganization(_ context.Context, org *domain.Organization) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orgs[org.ID]; !ok {
		return fmt.Errorf("organization: %w", domain.ErrNotFound)
	}
	f.orgs[org.ID] = *org
	return nil
}

func (f *fakeRepo) DeleteOrganization(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orgs[id]; !ok {
		return fmt.Errorf("organization: %w", domain.ErrNotFound)
	}
	delete(f.orgs, id)
	for k, m := range f.members {
		if m.OrganizationID == id {
			delete(f.members, k)
		}
	}
	for k, inv := range f.invitations {
		if inv.OrganizationID == id {
			delete(f.invitations, k)
		}
	}
	for k, key := range f.apiKeys {
		if key.OrganizationID != nil && *key.OrganizationID == id {
			delete(f.apiKeys, k)
		}
	}
	return nil
}

func (f *fakeRepo) ListOrganizationsForUser(_ context.Context, userID string) ([]domain.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Organization
	for _, m := range f.members {
		if m.UserID == userID {
			if org, ok := f.orgs[m.OrganizationID]; ok {
				out = append(out, org)
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateMember(_ context.Context, m *domain.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pairKey(m.OrganizationID, m.UserID)
	if _, ok := f.members[k]; ok {
		return fmt.Errorf("organization_members_org_user_key: %w", domain.ErrAlreadyMember)
	}
	f.members[k] = *m
	return nil
}

func (f *fakeRepo) GetMember(_ context.Context, orgID, userID string) (*domain.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[pairKey(orgID, userID)]
	if !ok {
		return nil, fmt.Errorf("member: %w", domain.ErrNotFound)
	}
	return &m, nil
}

func (f *fakeRepo) ListMembers(_ context.Context, orgID string) ([]domain.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Member
	for _, m := range f.members {
		if m.OrganizationID == orgID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateMemberRole(_ context.Context, orgID, userID string, role domain.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pairKey(orgID, userID)
	m, ok := f.members[k]
	if !ok {
		return fmt.Errorf("member: %w", domain.ErrNotFound)
	}
	m.Role = role
	f.members[k] = m
	return nil
}

func (f *fakeRepo) DeleteMember(_ context.Context, orgID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pairKey(orgID, userID)
	if _, ok := f.members[k]; !ok {
		return fmt.Errorf("member: %w", domain.ErrNotFound)
	}
	delete(f.members, k)
	return nil
}

func (f *fakeRepo) CountOwners(_ context.Context, orgID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.members {
		if m.OrganizationID == orgID && m.Role == domain.RoleOwner {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CreateInvitation(_ context.Context, inv *domain.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.invitations {
		if existing.Token == inv.Token {
			return fmt.Errorf("organization_invitations_token_key: %w", domain.ErrConflict)
		}
	}
	f.invitations[inv.ID] = *inv
	return nil
}

func (f *fakeRepo) GetInvitationByToken(_ context.Context, token string) (*domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invitations {
		if inv.Token == token {
			out := inv
			return &out, nil
		}
	}
	return nil, fmt.Errorf("invitation: %w", domain.ErrNotFound)
}

func (f *fakeRepo) GetPendingInvitation(_ context.Context, orgID, email string, now time.Time) (*domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invitations {
		if inv.OrganizationID == orgID && inv.Email == email && inv.ExpiresAt.After(now) {
			out := inv
			return &out, nil
		}
	}
	return nil, fmt.Errorf("invitation: %w", domain.ErrNotFound)
}

func (f *fakeRepo) ListInvitations(_ context.Context, orgID string) ([]domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Invitation
	for _, inv := range f.invitations {
		if inv.OrganizationID == orgID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteInvitation(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.invitations[id]; !ok {
		return fmt.Errorf("invitation: %w", domain.ErrNotFound)
	}
	delete(f.invitations, id)
	return nil
}

func (f *fakeRepo) RedeemInvitation(_ context.Context, token, userID string, now time.Time) (*domain.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found *domain.Invitation
	for _, inv := range f.invitations {
		if inv.Token == token {
			candidate := inv
			found = &candidate
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("invitation: %w", domain.ErrNotFound)
	}
	if !found.ExpiresAt.After(now) {
		return nil, fmt.Errorf("invitation: %w", domain.ErrExpired)
	}
	memberKey := pairKey(found.OrganizationID, userID)
	if _, ok := f.members[memberKey]; ok {
		return nil, fmt.Errorf("organization_members_org_user_key: %w", domain.ErrAlreadyMember)
	}
	member := domain.Member{
		ID:             "member-" + found.ID,
		OrganizationID: found.OrganizationID,
		UserID:         userID,
		Role:           found.Role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.members[memberKey] = member
	delete(f.invitations, found.ID)
	return &member, nil
}

func (f *fakeRepo) CreateAPIKey(_ context.Context, key *domain.APIKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.apiKeys {
		if existing.KeyHash == key.KeyHash {
			return fmt.Errorf("api_keys_key_hash_key: %w", domain.ErrConflict)
		}
	}
	f.apiKeys[key.ID] = *key
	return nil
}

func (f *fakeRepo) GetAPIKey(_ context.Context, id string) (*domain.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.apiKeys[id]
	if !ok {
		return nil, fmt.Errorf("api key: %w", domain.ErrNotFound)
	}
	return &key, nil
}

func (f *fakeRepo) GetAPIKeyByHash(_ context.Context, keyHash string) (*domain.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range f.apiKeys {
		if key.KeyHash == keyHash {
			out := key
			return &out, nil
		}
	}
	return nil, fmt.Errorf("api key: %w", domain.ErrNotFound)
}

func (f *fakeRepo) ListAPIKeysForUser(_ context.Context, userID string) ([]domain.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.APIKey
	for _, key := range f.apiKeys {
		if key.UserID == userID {
			out = append(out, key)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListAPIKeysForOrganization(_ context.Context, orgID string) ([]domain.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.APIKey
	for _, key := range f.apiKeys {
		if key.OrganizationID != nil && *key.OrganizationID == orgID {
			out = append(out, key)
		}
	}
	return out, nil
}

func (f *fakeRepo) TouchAPIKey(_ context.Context, id string, usedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.apiKeys[id]
	if !ok {
		return fmt.Errorf("api key: %w", domain.ErrNotFound)
	}
	key.LastUsedAt = &usedAt
	key.UpdatedAt = usedAt
	f.apiKeys[id] = key
	return nil
}

func (f *fakeRepo) DeactivateAPIKey(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.apiKeys[id]
	if !ok {
		return fmt.Errorf("api key: %w", domain.ErrNotFound)
	}
	key.IsActive = false
	f.apiKeys[id] = key
	return nil
}

func (f *fakeRepo) SaveAuditLog(_ context.Context, entry *domain.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auditLogs = append(f.auditLogs, *entry)
	return nil
}

func (f *fakeRepo) GetAuditLogs(_ context.Context, orgID string) ([]domain.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AuditLog
	for _, entry := range f.auditLogs {
		if entry.OrganizationID == orgID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeRepo) Ping(_ context.Context) error { return f.pingErr }
