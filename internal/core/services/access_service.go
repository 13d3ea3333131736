package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/poyrazK/sandboxAuth/internal/core/domain"
	"github.com/poyrazK/sandboxAuth/internal/core/ports"
	"github.com/poyrazK/sandboxAuth/internal/infrastructure/metrics"
)

type accessService struct {
	repo     ports.Repository
	identity ports.IdentityService
	keys     ports.APIKeyService
	cache    ports.SessionCache
}

// NewAccessService creates the access control evaluator.
func NewAccessService(repo ports.Repository, identity ports.IdentityService, keys ports.APIKeyService, cache ports.SessionCache) ports.AccessService {
	return &accessService{repo: repo, identity: identity, keys: keys, cache: cache}
}

// Resolve maps a raw bearer value to a principal. Every credential failure —
// unknown, revoked, expired — collapses into ErrUnauthenticated toward the
// caller; the specific reason is logged here and nowhere else.
func (s *accessService) Resolve(ctx context.Context, bearer string) (*domain.Principal, error) {
	if bearer == "" {
		metrics.AuthDecisions.WithLabelValues("none", "unauthenticated").Inc()
		return nil, domain.ErrUnauthenticated
	}

	if strings.HasPrefix(bearer, domain.KeyPrefix) {
		key, err := s.keys.Verify(ctx, bearer)
		if err != nil {
			log.Printf("api key verification failed: %v", err)
			metrics.AuthDecisions.WithLabelValues("api_key", "unauthenticated").Inc()
			return nil, fmt.Errorf("%w: invalid api key", domain.ErrUnauthenticated)
		}
		metrics.AuthDecisions.WithLabelValues("api_key", "authenticated").Inc()
		return &domain.Principal{
			Kind:           domain.PrincipalAPIKey,
			UserID:         key.UserID,
			OrganizationID: key.OrganizationID,
			Scopes:         key.Scopes,
		}, nil
	}

	session, err := s.identity.GetSession(ctx, bearer)
	if err != nil {
		log.Printf("session resolution failed: %v", err)
		metrics.AuthDecisions.WithLabelValues("session", "unauthenticated").Inc()
		return nil, fmt.Errorf("%w: invalid session", domain.ErrUnauthenticated)
	}
	metrics.AuthDecisions.WithLabelValues("session", "authenticated").Inc()
	return &domain.Principal{
		Kind:   domain.PrincipalSession,
		UserID: session.UserID,
	}, nil
}

// Authorize checks a resolved principal against a required (org, scope) pair.
// Key principals are held to their literal scope set and pinned organization;
// session principals are checked against their membership role.
func (s *accessService) Authorize(ctx context.Context, principal *domain.Principal, orgID string, scope domain.Scope) error {
	if principal == nil {
		return domain.ErrUnauthenticated
	}
	if orgID == "" {
		return fmt.Errorf("%w: no organization context", domain.ErrForbidden)
	}

	switch principal.Kind {
	case domain.PrincipalAPIKey:
		if principal.OrganizationID == nil || *principal.OrganizationID != orgID {
			metrics.AuthDecisions.WithLabelValues("api_key", "forbidden").Inc()
			return fmt.Errorf("%w: key not scoped to organization %s", domain.ErrForbidden, orgID)
		}
		for _, granted := range principal.Scopes {
			if granted == scope {
				metrics.AuthDecisions.WithLabelValues("api_key", "authorized").Inc()
				return nil
			}
		}
		metrics.AuthDecisions.WithLabelValues("api_key", "forbidden").Inc()
		return fmt.Errorf("%w: key lacks scope %s", domain.ErrForbidden, scope)

	case domain.PrincipalSession:
		member, err := s.repo.GetMember(ctx, orgID, principal.UserID)
		if err != nil {
			metrics.AuthDecisions.WithLabelValues("session", "forbidden").Inc()
			return fmt.Errorf("%w: no membership in organization %s", domain.ErrForbidden, orgID)
		}
		if !member.Role.AtLeast(domain.MinRoleFor(scope)) {
			metrics.AuthDecisions.WithLabelValues("session", "forbidden").Inc()
			return fmt.Errorf("%w: role %s lacks scope %s", domain.ErrForbidden, member.Role, scope)
		}
		metrics.AuthDecisions.WithLabelValues("session", "authorized").Inc()
		return nil

	default:
		return domain.ErrUnauthenticated
	}
}

func (s *accessService) HealthCheck(ctx context.Context) map[string]error {
	checks := map[string]error{
		"database": s.repo.Ping(ctx),
	}
	if s.cache != nil {
		checks["cache"] = s.cache.Ping(ctx)
	}
	return checks
}
