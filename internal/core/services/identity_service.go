package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/poyrazK/sandboxAuth/internal/core/domain"
	"github.com/poyrazK/sandboxAuth/internal/core/ports"
)

const (
	// SessionTTL is how long an issued session stays valid.
	SessionTTL = 30 * 24 * time.Hour
	// VerificationTokenTTL bounds email verification tokens.
	VerificationTokenTTL = 24 * time.Hour
)

type identityService struct {
	repo  ports.Repository
	cache ports.SessionCache
	newID func() string
	now   func() time.Time
}

// NewIdentityService creates the identity store. The cache may be nil; the
// repository is always authoritative.
func NewIdentityService(repo ports.Repository, cache ports.SessionCache) ports.IdentityService {
	return &identityService{repo: repo, cache: cache, newID: uuid.NewString, now: time.Now}
}

// generateSessionToken returns 32 random bytes hex-encoded. Hex keeps session
// tokens visually distinct from sk- API keys, which the access layer
// dispatches on by prefix.
func generateSessionToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

func (s *identityService) CreateUser(ctx context.Context, email string, name, image *string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if err := domain.ValidateEmail(email); err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:        s.newID(),
		Name:      name,
		Email:     email,
		Image:     image,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *identityService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetUser(ctx, id)
}

// UpdateUser merges the supplied fields into the stored row. Zero-valued
// fields mean "leave unchanged": a partial update must never wipe the email
// or null out attributes the caller did not send.
func (s *identityService) UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	existing, err := s.repo.GetUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if user.Email != "" {
		email := domain.NormalizeEmail(user.Email)
		if err := domain.ValidateEmail(email); err != nil {
			return nil, err
		}
		existing.Email = email
	}
	if user.Name != nil {
		existing.Name = user.Name
	}
	if user.Image != nil {
		existing.Image = user.Image
	}
	if user.EmailVerified != nil {
		existing.EmailVerified = user.EmailVerified
	}

	existing.UpdatedAt = s.now()
	if err := s.repo.UpdateUser(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *identityService) DeleteUser(ctx context.Context, id string) error {
	// Sessions go with the user; drop what the cache may still hold first.
	if s.cache != nil {
		sessions, err := s.repo.ListSessionsForUser(ctx, id)
		if err == nil {
			for i := range sessions {
				s.cache.Delete(ctx, sessions[i].SessionToken)
			}
		}
	}
	return s.repo.DeleteUser(ctx, id)
}

func (s *identityService) LinkAccount(ctx context.Context, account *domain.Account) error {
	if account.Provider == "" || account.ProviderAccountID == "" {
		return fmt.Errorf("provider and provider account id are required")
	}
	if account.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	now := s.now()
	account.CreatedAt = now
	account.UpdatedAt = now
	return s.repo.CreateAccount(ctx, account)
}

func (s *identityService) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	return s.repo.ListAccountsForUser(ctx, userID)
}

func (s *identityService) UnlinkAccount(ctx context.Context, provider, providerAccountID string) error {
	return s.repo.DeleteAccount(ctx, provider, providerAccountID)
}

func (s *identityService) IssueSession(ctx context.Context, userID string) (*domain.Session, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &domain.Session{
		SessionToken: token,
		UserID:       userID,
		Expires:      now.Add(SessionTTL),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, session)
	}
	return session, nil
}

// GetSession treats an expired session exactly like a missing one: both
// report domain.ErrNotFound through the same path.
func (s *identityService) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	if s.cache != nil {
		if session, ok := s.cache.Get(ctx, token); ok {
			if session.Expired(s.now()) {
				s.cache.Delete(ctx, token)
				return nil, fmt.Errorf("session: %w", domain.ErrNotFound)
			}
			return session, nil
		}
	}

	session, err := s.repo.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Expired(s.now()) {
		return nil, fmt.Errorf("session: %w", domain.ErrNotFound)
	}
	if s.cache != nil {
		s.cache.Set(ctx, session)
	}
	return session, nil
}

func (s *identityService) InvalidateSession(ctx context.Context, token string) error {
	if s.cache != nil {
		s.cache.Delete(ctx, token)
	}
	return s.repo.DeleteSession(ctx, token)
}

func (s *identityService) InvalidateUserSessions(ctx context.Context, userID string) error {
	if s.cache != nil {
		sessions, err := s.repo.ListSessionsForUser(ctx, userID)
		if err == nil {
			for i := range sessions {
				s.cache.Delete(ctx, sessions[i].SessionToken)
			}
		}
	}
	return s.repo.DeleteSessionsForUser(ctx, userID)
}

func (s *identityService) CreateVerificationToken(ctx context.Context, identifier string) (*domain.VerificationToken, error) {
	identifier = domain.NormalizeEmail(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	vt := &domain.VerificationToken{
		Identifier: identifier,
		Token:      token,
		Expires:    s.now().Add(VerificationTokenTTL),
	}
	if err := s.repo.CreateVerificationToken(ctx, vt); err != nil {
		return nil, err
	}
	return vt, nil
}

func (s *identityService) RedeemVerificationToken(ctx context.Context, identifier, token string) error {
	vt, err := s.repo.ConsumeVerificationToken(ctx, domain.NormalizeEmail(identifier), token)
	if err != nil {
		return err
	}
	if !vt.Expires.After(s.now()) {
		return fmt.Errorf("verification token: %w", domain.ErrExpired)
	}
	return nil
}

func (s *identityService) RegisterAuthenticator(ctx context.Context, auth *domain.Authenticator) error {
	if auth.UserID == "" || auth.CredentialID == "" {
		return fmt.Errorf("user id and credential id are required")
	}
	if auth.CredentialPublicKey == "" {
		return fmt.Errorf("credential public key is required")
	}
	return s.repo.CreateAuthenticator(ctx, auth)
}

func (s *identityService) ListAuthenticators(ctx context.Context, userID string) ([]domain.Authenticator, error) {
	return s.repo.ListAuthenticatorsForUser(ctx, userID)
}

// VerifyAssertion accepts only a strictly increasing counter. A stale or
// repeated value means the credential may have been cloned; the stored
// counter is left untouched.
func (s *identityService) VerifyAssertion(ctx context.Context, credentialID string, counter int64) error {
	auth, err := s.repo.GetAuthenticator(ctx, credentialID)
	if err != nil {
		return err
	}
	if counter <= auth.Counter {
		return fmt.Errorf("credential %s: counter %d <= stored %d: %w",
			credentialID, counter, auth.Counter, domain.ErrCloneDetected)
	}
	return s.repo.UpdateAuthenticatorCounter(ctx, credentialID, counter)
}
