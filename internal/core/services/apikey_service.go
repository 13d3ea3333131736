package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/poyrazK/sandboxAuth/internal/core/domain"
	"github.com/poyrazK/sandboxAuth/internal/core/ports"
	"github.com/poyrazK/sandboxAuth/internal/infrastructure/metrics"
)

type apiKeyService struct {
	repo  ports.Repository
	newID func() string
	now   func() time.Time
}

// NewAPIKeyService creates the credential store for machine keys.
func NewAPIKeyService(repo ports.Repository) ports.APIKeyService {
	return &apiKeyService{repo: repo, newID: uuid.NewString, now: time.Now}
}

// GenerateKey mints a fresh plaintext API key: the fixed "sk-" discriminator
// followed by 32 random bytes, URL-safe base64 without padding.
func GenerateKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return domain.KeyPrefix + base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(raw), nil
}

// HashKey computes the lowercase hex SHA-256 of the full plaintext key.
// Lookup happens by exact hash match on a unique index, never by comparing
// the secret itself.
func HashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// DisplayPrefix builds the human-readable fragment stored for listings,
// e.g. "sk-Ab1Cd...xyz". It reveals nothing useful about the secret.
func DisplayPrefix(plaintext string) string {
	if len(plaintext) < 11 {
		return plaintext
	}
	return plaintext[:8] + "..." + plaintext[len(plaintext)-3:]
}

func (s *apiKeyService) Issue(ctx context.Context, req ports.IssueKeyRequest) (string, *domain.APIKey, error) {
	if req.UserID == "" {
		return "", nil, fmt.Errorf("user id is required")
	}
	if req.Name == "" {
		return "", nil, fmt.Errorf("key name is required")
	}
	for _, scope := range req.Scopes {
		if !scope.Valid() {
			return "", nil, fmt.Errorf("unknown scope: %s", scope)
		}
	}

	plaintext, err := GenerateKey()
	if err != nil {
		return "", nil, err
	}

	now := s.now()
	key := &domain.APIKey{
		ID:             s.newID(),
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		KeyHash:        HashKey(plaintext),
		KeyPrefix:      DisplayPrefix(plaintext),
		ExpiresAt:      req.ExpiresAt,
		IsActive:       true,
		Scopes:         req.Scopes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if key.Scopes == nil {
		key.Scopes = []domain.Scope{}
	}

	if err := s.repo.CreateAPIKey(ctx, key); err != nil {
		return "", nil, err
	}

	if key.OrganizationID != nil {
		s.audit(ctx, *key.OrganizationID, "ISSUE_API_KEY", "API_KEY", key.ID, key.Name)
	}

	// The plaintext leaves the process exactly here. Only the hash survives.
	return plaintext, key, nil
}

func (s *apiKeyService) Verify(ctx context.Context, presented string) (*domain.APIKey, error) {
	key, err := s.repo.GetAPIKeyByHash(ctx, HashKey(presented))
	if err != nil {
		// A transient storage failure is not an unknown key.
		if errors.Is(err, domain.ErrNotFound) {
			metrics.KeyVerifications.WithLabelValues("not_found").Inc()
		} else {
			metrics.KeyVerifications.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	if !key.IsActive {
		metrics.KeyVerifications.WithLabelValues("revoked").Inc()
		return nil, fmt.Errorf("api key %s: %w", key.ID, domain.ErrRevoked)
	}
	if key.Expired(s.now()) {
		metrics.KeyVerifications.WithLabelValues("expired").Inc()
		return nil, fmt.Errorf("api key %s: %w", key.ID, domain.ErrExpired)
	}

	usedAt := s.now()
	if err := s.repo.TouchAPIKey(ctx, key.ID, usedAt); err != nil {
		// Losing a last_used_at update must not fail an otherwise valid request.
		log.Printf("failed to update last_used_at for key %s: %v", key.ID, err)
	} else {
		key.LastUsedAt = &usedAt
	}

	metrics.KeyVerifications.WithLabelValues("ok").Inc()
	return key, nil
}

func (s *apiKeyService) Revoke(ctx context.Context, id string) error {
	key, err := s.repo.GetAPIKey(ctx, id)
	if err != nil {
		return err
	}
	// Deactivate, never delete: the row stays behind as an audit trail.
	if err := s.repo.DeactivateAPIKey(ctx, id); err != nil {
		return err
	}
	if key.OrganizationID != nil {
		s.audit(ctx, *key.OrganizationID, "REVOKE_API_KEY", "API_KEY", key.ID, key.Name)
	}
	return nil
}

func (s *apiKeyService) Get(ctx context.Context, id string) (*domain.APIKey, error) {
	return s.repo.GetAPIKey(ctx, id)
}

func (s *apiKeyService) ListForUser(ctx context.Context, userID string) ([]domain.APIKey, error) {
	return s.repo.ListAPIKeysForUser(ctx, userID)
}

func (s *apiKeyService) ListForOrganization(ctx context.Context, orgID string) ([]domain.APIKey, error) {
	return s.repo.ListAPIKeysForOrganization(ctx, orgID)
}

func (s *apiKeyService) audit(ctx context.Context, orgID, action, resourceType, resourceID, details string) {
	entry := &domain.AuditLog{
		ID:             s.newID(),
		OrganizationID: orgID,
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Details:        details,
		CreatedAt:      s.now(),
	}
	if err := s.repo.SaveAuditLog(ctx, entry); err != nil {
		log.Printf("failed to save audit log (%s %s): %v", action, resourceID, err)
	}
}
