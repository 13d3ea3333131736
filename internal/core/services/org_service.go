package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/poyrazK/sandboxAuth/internal/core/domain"
	"github.com/poyrazK/sandboxAuth/internal/core/ports"
)

// InvitationTTL is the fixed validity window of a pending invitation.
const InvitationTTL = 7 * 24 * time.Hour

type orgService struct {
	repo  ports.Repository
	newID func() string
	now   func() time.Time
}

// NewOrgService creates the organization directory and invitation workflow.
func NewOrgService(repo ports.Repository) ports.OrgService {
	return &orgService{repo: repo, newID: uuid.NewString, now: time.Now}
}

// generateToken mints a high-entropy single-use invitation token.
func generateToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(raw), nil
}

func (s *orgService) CreateOrganization(ctx context.Context, name string, image *string, ownerUserID string) (*domain.Organization, error) {
	if name == "" {
		return nil, fmt.Errorf("organization name is required")
	}
	if ownerUserID == "" {
		return nil, fmt.Errorf("owner user id is required")
	}

	now := s.now()
	org := &domain.Organization{
		ID:        s.newID(),
		Name:      name,
		Image:     image,
		CreatedAt: now,
		UpdatedAt: now,
	}
	owner := &domain.Member{
		ID:             s.newID(),
		OrganizationID: org.ID,
		UserID:         ownerUserID,
		Role:           domain.RoleOwner,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Organization and founding owner land in one transaction, so the org is
	// never observable without an owner.
	if err := s.repo.CreateOrganizationWithOwner(ctx, org, owner); err != nil {
		return nil, err
	}

	s.audit(ctx, org.ID, "CREATE_ORGANIZATION", "ORGANIZATION", org.ID, name)
	return org, nil
}

func (s *orgService) GetOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	return s.repo.GetOrganization(ctx, id)
}

func (s *orgService) DeleteOrganization(ctx context.Context, id string) error {
	return s.repo.DeleteOrganization(ctx, id)
}

func (s *orgService) ListOrganizationsForUser(ctx context.Context, userID string) ([]domain.Organization, error) {
	return s.repo.ListOrganizationsForUser(ctx, userID)
}

func (s *orgService) AddMember(ctx context.Context, orgID, userID string, role domain.Role) (*domain.Member, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role: %s", role)
	}

	now := s.now()
	member := &domain.Member{
		ID:             s.newID(),
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// The unique constraint on (organization_id, user_id) backs this up; the
	// repository reports a duplicate as domain.ErrAlreadyMember.
	if err := s.repo.CreateMember(ctx, member); err != nil {
		return nil, err
	}

	s.audit(ctx, orgID, "ADD_MEMBER", "MEMBER", member.ID, fmt.Sprintf("user=%s role=%s", userID, role))
	return member, nil
}

func (s *orgService) ChangeRole(ctx context.Context, orgID, userID string, role domain.Role) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role: %s", role)
	}

	member, err := s.repo.GetMember(ctx, orgID, userID)
	if err != nil {
		return fmt.Errorf("%w: %s in %s", domain.ErrNotAMember, userID, orgID)
	}
	if member.Role == role {
		return nil
	}

	if member.Role == domain.RoleOwner && role != domain.RoleOwner {
		if err := s.ensureNotLastOwner(ctx, orgID); err != nil {
			return err
		}
	}

	if err := s.repo.UpdateMemberRole(ctx, orgID, userID, role); err != nil {
		return err
	}

	s.audit(ctx, orgID, "CHANGE_ROLE", "MEMBER", member.ID, fmt.Sprintf("user=%s role=%s", userID, role))
	return nil
}

func (s *orgService) RemoveMember(ctx context.Context, orgID, userID string) error {
	member, err := s.repo.GetMember(ctx, orgID, userID)
	if err != nil {
		return fmt.Errorf("%w: %s in %s", domain.ErrNotAMember, userID, orgID)
	}

	if member.Role == domain.RoleOwner {
		if err := s.ensureNotLastOwner(ctx, orgID); err != nil {
			return err
		}
	}

	if err := s.repo.DeleteMember(ctx, orgID, userID); err != nil {
		return err
	}

	s.audit(ctx, orgID, "REMOVE_MEMBER", "MEMBER", member.ID, "user="+userID)
	return nil
}

// ensureNotLastOwner rejects any change that would leave the organization
// without an owner.
func (s *orgService) ensureNotLastOwner(ctx context.Context, orgID string) error {
	owners, err := s.repo.CountOwners(ctx, orgID)
	if err != nil {
		return err
	}
	if owners <= 1 {
		return domain.ErrLastOwner
	}
	return nil
}

func (s *orgService) ListMembers(ctx context.Context, orgID string) ([]domain.Member, error) {
	return s.repo.ListMembers(ctx, orgID)
}

func (s *orgService) Invite(ctx context.Context, orgID, email string, role domain.Role, invitedBy string) (*domain.Invitation, error) {
	email = domain.NormalizeEmail(email)
	if err := domain.ValidateEmail(email); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role: %s", role)
	}

	now := s.now()
	if existing, err := s.repo.GetPendingInvitation(ctx, orgID, email, now); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: %s already invited to %s", domain.ErrIdempotentConflict, email, orgID)
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	inv := &domain.Invitation{
		ID:             s.newID(),
		OrganizationID: orgID,
		Email:          email,
		Role:           role,
		Token:          token,
		ExpiresAt:      now.Add(InvitationTTL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if invitedBy != "" {
		inv.InvitedBy = &invitedBy
	}

	if err := s.repo.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}

	s.audit(ctx, orgID, "CREATE_INVITATION", "INVITATION", inv.ID, fmt.Sprintf("email=%s role=%s", email, role))
	return inv, nil
}

func (s *orgService) Redeem(ctx context.Context, token, userID string) (*domain.Member, error) {
	if token == "" || userID == "" {
		return nil, domain.ErrNotFound
	}

	// Consume-and-create runs inside one repository transaction so a redeemed
	// invitation can never exist without its membership, and the same token
	// can never produce two memberships.
	member, err := s.repo.RedeemInvitation(ctx, token, userID, s.now())
	if err != nil {
		return nil, err
	}

	s.audit(ctx, member.OrganizationID, "REDEEM_INVITATION", "MEMBER", member.ID, "user="+userID)
	return member, nil
}

func (s *orgService) ListInvitations(ctx context.Context, orgID string) ([]domain.Invitation, error) {
	return s.repo.ListInvitations(ctx, orgID)
}

func (s *orgService) RevokeInvitation(ctx context.Context, orgID, invitationID string) error {
	if err := s.repo.DeleteInvitation(ctx, invitationID); err != nil {
		return err
	}
	s.audit(ctx, orgID, "REVOKE_INVITATION", "INVITATION", invitationID, "")
	return nil
}

func (s *orgService) ListAuditLogs(ctx context.Context, orgID string) ([]domain.AuditLog, error) {
	return s.repo.GetAuditLogs(ctx, orgID)
}

func (s *orgService) audit(ctx context.Context, orgID, action, resourceType, resourceID, details string) {
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
