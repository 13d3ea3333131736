package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/poyrazK/sandboxAuth/internal/core/domain"
)

// PostgresRepository implements ports.Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates and returns a new PostgresRepository instance.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const pgUniqueViolation = "23505"

// translate converts storage-level failures into the domain taxonomy.
// Constraint names decide which conflict variant a unique violation becomes.
func translate(entity string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", entity, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch {
		case strings.Contains(pgErr.ConstraintName, "organization_members"):
			return fmt.Errorf("%s: %w", entity, domain.ErrAlreadyMember)
		case strings.Contains(pgErr.ConstraintName, "organization_invitations_org_email"):
			return fmt.Errorf("%s: %w", entity, domain.ErrIdempotentConflict)
		default:
			return fmt.Errorf("%s (%s): %w", entity, pgErr.ConstraintName, domain.ErrConflict)
		}
	}
	return fmt.Errorf("%s: %w", entity, err)
}

// joinScopes flattens a scope set for storage via string_to_array.
func joinScopes(scopes []domain.Scope) string {
	tags := make([]string, len(scopes))
	for i, s := range scopes {
		tags[i] = string(s)
	}
	return strings.Join(tags, ",")
}

// splitScopes parses the array_to_string projection of the scopes column.
func splitScopes(joined string) []domain.Scope {
	if joined == "" {
		return []domain.Scope{}
	}
	parts := strings.Split(joined, ",")
	scopes := make([]domain.Scope, len(parts))
	for i, p := range parts {
		scopes[i] = domain.Scope(p)
	}
	return scopes
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		log.Printf("failed to close rows: %v", err)
	}
}

// --- Users ---

func (r *PostgresRepository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `INSERT INTO users (id, name, email, email_verified, image, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.EmailVerified, user.Image, user.CreatedAt, user.UpdatedAt)
	return translate("user", err)
}

func (r *PostgresRepository) scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.EmailVerified, &u.Image, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translate("user", err)
	}
	return &u, nil
}

func (r *PostgresRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT id, name, email, email_verified, image, created_at, updated_at FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT id, name, email, email_verified, image, created_at, updated_at FROM users WHERE email = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) UpdateUser(ctx context.Context, user *domain.User) error {
	query := `UPDATE users SET name = $2, email = $3, email_verified = $4, image = $5, updated_at = $6 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.EmailVerified, user.Image, user.UpdatedAt)
	if err != nil {
		return translate("user", err)
	}
	return requireRow("user", res)
}

// DeleteUser removes the user row. Dependent accounts, sessions,
// authenticators, API keys and memberships go via ON DELETE CASCADE;
// invitations the user sent keep their row with invited_by set to NULL.
func (r *PostgresRepository) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translate("user", err)
	}
	return requireRow("user", res)
}

func requireRow(entity string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return translate(entity, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", entity, domain.ErrNotFound)
	}
	return nil
}

// --- Accounts ---

func (r *PostgresRepository) CreateAccount(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (provider, provider_account_id, user_id, type, refresh_token, access_token,
	                                expires_at, token_type, scope, id_token, session_state, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.ExecContext(ctx, query,
		a.Provider, a.ProviderAccountID, a.UserID, a.Type, a.RefreshToken, a.AccessToken,
		a.ExpiresAt, a.TokenType, a.Scope, a.IDToken, a.SessionState, a.CreatedAt, a.UpdatedAt)
	return translate("account", err)
}

const accountColumns = `provider, provider_account_id, user_id, type, refresh_token, access_token,
	expires_at, token_type, scope, id_token, session_state, created_at, updated_at`

func scanAccount(scan func(dest ...any) error) (*domain.Account, error) {
	var a domain.Account
	err := scan(&a.Provider, &a.ProviderAccountID, &a.UserID, &a.Type, &a.RefreshToken, &a.AccessToken,
		&a.ExpiresAt, &a.TokenType, &a.Scope, &a.IDToken, &a.SessionState, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, translate("account", err)
	}
	return &a, nil
}

func (r *PostgresRepository) GetAccount(ctx context.Context, provider, providerAccountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE provider = $1 AND provider_account_id = $2`
	return scanAccount(r.db.QueryRowContext(ctx, query, provider, providerAccountID).Scan)
}

func (r *PostgresRepository) ListAccountsForUser(ctx context.Context, userID string) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY provider`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, translate("accounts", err)
	}
	defer closeRows(rows)

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (r *PostgresRepository) DeleteAccount(ctx context.Context, provider, providerAccountID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM accounts WHERE provider = $1 AND provider_account_id = $2`, provider, providerAccountID)
	if err != nil {
		return translate("account", err)
	}
	return requireRow("account", res)
}

// --- Sessions ---

func (r *PostgresRepository) CreateSession(ctx context.Context, s *domain.Session) error {
	query := `INSERT INTO sessions (session_token, user_id, expires, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, s.SessionToken, s.UserID, s.Expires, s.CreatedAt, s.UpdatedAt)
	return translate("session", err)
}

func (r *PostgresRepository) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	query := `SELECT session_token, user_id, expires, created_at, updated_at FROM sessions WHERE session_token = $1`
	var s domain.Session
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&s.SessionToken, &s.UserID, &s.Expires, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, translate("session", err)
	}
	return &s, nil
}

func (r *PostgresRepository) ListSessionsForUser(ctx context.Context, userID string) ([]domain.Session, error) {
	query := `SELECT session_token, user_id, expires, created_at, updated_at FROM sessions WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, translate("sessions", err)
	}
	defer closeRows(rows)

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.SessionToken, &s.UserID, &s.Expires, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, translate("session", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *PostgresRepository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_token = $1`, token)
	return translate("session", err)
}

func (r *PostgresRepository) DeleteSessionsForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return translate("sessions", err)
}

func (r *PostgresRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires <= $1`, now)
	if err != nil {
		return 0, translate("sessions", err)
	}
	return res.RowsAffected()
}

// --- Authenticators ---

func (r *PostgresRepository) CreateAuthenticator(ctx context.Context, a *domain.Authenticator) error {
	query := `INSERT INTO authenticators (user_id, credential_id, provider_account_id, credential_public_key,
	                                      counter, credential_device_type, credential_backed_up, transports)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		a.UserID, a.CredentialID, a.ProviderAccountID, a.CredentialPublicKey,
		a.Counter, a.CredentialDeviceType, a.CredentialBackedUp, a.Transports)
	return translate("authenticator", err)
}

const authenticatorColumns = `user_id, credential_id, provider_account_id, credential_public_key,
	counter, credential_device_type, credential_backed_up, transports`

func scanAuthenticator(scan func(dest ...any) error) (*domain.Authenticator, error) {
	var a domain.Authenticator
	err := scan(&a.UserID, &a.CredentialID, &a.ProviderAccountID, &a.CredentialPublicKey,
		&a.Counter, &a.CredentialDeviceType, &a.CredentialBackedUp, &a.Transports)
	if err != nil {
		return nil, translate("authenticator", err)
	}
	return &a, nil
}

func (r *PostgresRepository) GetAuthenticator(ctx context.Context, credentialID string) (*domain.Authenticator, error) {
	query := `SELECT ` + authenticatorColumns + ` FROM authenticators WHERE credential_id = $1`
	return scanAuthenticator(r.db.QueryRowContext(ctx, query, credentialID).Scan)
}

func (r *PostgresRepository) ListAuthenticatorsForUser(ctx context.Context, userID string) ([]domain.Authenticator, error) {
	query := `SELECT ` + authenticatorColumns + ` FROM authenticators WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, translate("authenticators", err)
	}
	defer closeRows(rows)

	var auths []domain.Authenticator
	for rows.Next() {
		a, err := scanAuthenticator(rows.Scan)
		if err != nil {
			return nil, err
		}
		auths = append(auths, *a)
	}
	return auths, rows.Err()
}

func (r *PostgresRepository) UpdateAuthenticatorCounter(ctx context.Context, credentialID string, counter int64) error {
	// The WHERE guard makes the update a no-op if a concurrent assertion
	// already advanced the counter past this value.
	res, err := r.db.ExecContext(ctx,
		`UPDATE authenticators SET counter = $2 WHERE credential_id = $1 AND counter < $2`, credentialID, counter)
	if err != nil {
		return translate("authenticator", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate("authenticator", err)
	}
	if n == 0 {
		return fmt.Errorf("authenticator %s: %w", credentialID, domain.ErrCloneDetected)
	}
	return nil
}

// --- Verification tokens ---

func (r *PostgresRepository) CreateVerificationToken(ctx context.Context, vt *domain.VerificationToken) error {
	query := `INSERT INTO verification_tokens (identifier, token, expires) VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, vt.Identifier, vt.Token, vt.Expires)
	return translate("verification token", err)
}

// ConsumeVerificationToken deletes and returns the token atomically, so two
// concurrent redemptions cannot both succeed.
func (r *PostgresRepository) ConsumeVerificationToken(ctx context.Context, identifier, token string) (*domain.VerificationToken, error) {
	query := `DELETE FROM verification_tokens WHERE identifier = $1 AND token = $2
	          RETURNING identifier, token, expires`
	var vt domain.VerificationToken
	err := r.db.QueryRowContext(ctx, query, identifier, token).Scan(&vt.Identifier, &vt.Token, &vt.Expires)
	if err != nil {
		return nil, translate("verification token", err)
	}
	return &vt, nil
}

// --- Organizations ---

func (r *PostgresRepository) CreateOrganization(ctx context.Context, org *domain.Organization) error {
	query := `INSERT INTO organizations (id, name, image, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, org.ID, org.Name, org.Image, org.CreatedAt, org.UpdatedAt)
	return translate("organization", err)
}

func (r *PostgresRepository) CreateOrganizationWithOwner(ctx context.Context, org *domain.Organization, owner *domain.Member) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translate("organization", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO organizations (id, name, image, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		org.ID, org.Name, org.Image, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return translate("organization", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO organization_members (id, organization_id, user_id, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		owner.ID, owner.OrganizationID, owner.UserID, owner.Role, owner.CreatedAt, owner.UpdatedAt)
	if err != nil {
		return translate("member", err)
	}

	return translate("organization", tx.Commit())
}

func (r *PostgresRepository) GetOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	query := `SELECT id, name, image, created_at, updated_at FROM organizations WHERE id = $1`
	var org domain.Organization
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&org.ID, &org.Name, &org.Image, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, translate("organization", err)
	}
	return &org, nil
}

func (r *PostgresRepository) UpdateOrganization(ctx context.Context, org *domain.Organization) error {
	query := `UPDATE organizations SET name = $2, image = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, org.ID, org.Name, org.Image, org.UpdatedAt)
	if err != nil {
		return translate("organization", err)
	}
	return requireRow("organization", res)
}

func (r *PostgresRepository) DeleteOrganization(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return translate("organization", err)
	}
	return requireRow("organization", res)
}

func (r *PostgresRepository) ListOrganizationsForUser(ctx context.Context, userID string) ([]domain.Organization, error) {
	query := `SELECT o.id, o.name, o.image, o.created_at, o.updated_at
	          FROM organizations o
	          JOIN organization_members m ON m.organization_id = o.id
	          WHERE m.user_id = $1
	          ORDER BY o.created_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, translate("organizations", err)
	}
	defer closeRows(rows)

	var orgs []domain.Organization
	for rows.Next() {
		var org domain.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Image, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, translate("organization", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// --- Memberships ---

func (r *PostgresRepository) CreateMember(ctx context.Context, m *domain.Member) error {
	query := `INSERT INTO organization_members (id, organization_id, user_id, role, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query, m.ID, m.OrganizationID, m.UserID, m.Role, m.CreatedAt, m.UpdatedAt)
	return translate("member", err)
}

func (r *PostgresRepository) GetMember(ctx context.Context, orgID, userID string) (*domain.Member, error) {
	query := `SELECT id, organization_id, user_id, role, created_at, updated_at
	          FROM organization_members WHERE organization_id = $1 AND user_id = $2`
	var m domain.Member
	err := r.db.QueryRowContext(ctx, query, orgID, userID).
		Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, translate("member", err)
	}
	return &m, nil
}

func (r *PostgresRepository) ListMembers(ctx context.Context, orgID string) ([]domain.Member, error) {
	query := `SELECT id, organization_id, user_id, role, created_at, updated_at
	          FROM organization_members WHERE organization_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, translate("members", err)
	}
	defer closeRows(rows)

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, translate("member", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *PostgresRepository) UpdateMemberRole(ctx context.Context, orgID, userID string, role domain.Role) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translate("member", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current domain.Role
	err = tx.QueryRowContext(ctx,
		`SELECT role FROM organization_members WHERE organization_id = $1 AND user_id = $2 FOR UPDATE`,
		orgID, userID).Scan(&current)
	if err != nil {
		return translate("member", err)
	}
	if current == domain.RoleOwner && role != domain.RoleOwner {
		if err := guardLastOwner(ctx, tx, orgID); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE organization_members SET role = $3, updated_at = NOW()
		 WHERE organization_id = $1 AND user_id = $2`, orgID, userID, role)
	if err != nil {
		return translate("member", err)
	}
	return tx.Commit()
}

func (r *PostgresRepository) DeleteMember(ctx context.Context, orgID, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translate("member", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current domain.Role
	err = tx.QueryRowContext(ctx,
		`SELECT role FROM organization_members WHERE organization_id = $1 AND user_id = $2 FOR UPDATE`,
		orgID, userID).Scan(&current)
	if err != nil {
		return translate("member", err)
	}
	if current == domain.RoleOwner {
		if err := guardLastOwner(ctx, tx, orgID); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM organization_members WHERE organization_id = $1 AND user_id = $2`, orgID, userID)
	if err != nil {
		return translate("member", err)
	}
	return tx.Commit()
}

// guardLastOwner locks the organization's owner rows and refuses the change
// when only one remains. Locking serializes two racing demotions: the second
// recounts after the first commits and sees a single owner, so an
// organization can never end up ownerless.
func guardLastOwner(ctx context.Context, tx *sql.Tx, orgID string) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT user_id FROM organization_members
		 WHERE organization_id = $1 AND role = 'owner' FOR UPDATE`, orgID)
	if err != nil {
		return translate("members", err)
	}
	defer closeRows(rows)

	owners := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return translate("member", err)
		}
		owners++
	}
	if err := rows.Err(); err != nil {
		return translate("members", err)
	}
	if owners <= 1 {
		return fmt.Errorf("member: %w", domain.ErrLastOwner)
	}
	return nil
}

func (r *PostgresRepository) CountOwners(ctx context.Context, orgID string) (int, error) {
	query := `SELECT COUNT(*) FROM organization_members WHERE organization_id = $1 AND role = 'owner'`
	var n int
	if err := r.db.QueryRowContext(ctx, query, orgID).Scan(&n); err != nil {
		return 0, translate("members", err)
	}
	return n, nil
}

// --- Invitations ---

const invitationColumns = `id, organization_id, email, role, token, invited_by, expires_at, created_at, updated_at`

func scanInvitation(scan func(dest ...any) error) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := scan(&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.Token,
		&inv.InvitedBy, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, translate("invitation", err)
	}
	return &inv, nil
}

// CreateInvitation supersedes any expired invitation for the same pair before
// inserting. A live pending invitation trips the unique index instead.
func (r *PostgresRepository) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translate("invitation", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM organization_invitations WHERE organization_id = $1 AND email = $2 AND expires_at <= $3`,
		inv.OrganizationID, inv.Email, inv.CreatedAt)
	if err != nil {
		return translate("invitation", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO organization_invitations (`+invitationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inv.ID, inv.OrganizationID, inv.Email, inv.Role, inv.Token,
		inv.InvitedBy, inv.ExpiresAt, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return translate("invitation", err)
	}

	return translate("invitation", tx.Commit())
}

func (r *PostgresRepository) GetInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM organization_invitations WHERE token = $1`
	return scanInvitation(r.db.QueryRowContext(ctx, query, token).Scan)
}

func (r *PostgresRepository) GetPendingInvitation(ctx context.Context, orgID, email string, now time.Time) (*domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM organization_invitations
	          WHERE organization_id = $1 AND email = $2 AND expires_at > $3`
	return scanInvitation(r.db.QueryRowContext(ctx, query, orgID, email, now).Scan)
}

func (r *PostgresRepository) ListInvitations(ctx context.Context, orgID string) ([]domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM organization_invitations
	          WHERE organization_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, translate("invitations", err)
	}
	defer closeRows(rows)

	var invitations []domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows.Scan)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, *inv)
	}
	return invitations, rows.Err()
}

func (r *PostgresRepository) DeleteInvitation(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM organization_invitations WHERE id = $1`, id)
	if err != nil {
		return translate("invitation", err)
	}
	return requireRow("invitation", res)
}

// RedeemInvitation consumes the invitation and creates the membership in one
// transaction. The row lock on the invitation serializes concurrent
// redemptions of the same token: the loser of the race finds the row gone and
// reports NotFound. A failed membership insert rolls the delete back, so an
// invitation is never consumed without its membership.
func (r *PostgresRepository) RedeemInvitation(ctx context.Context, token, userID string, now time.Time) (*domain.Member, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, translate("invitation", err)
	}
	defer func() { _ = tx.Rollback() }()

	inv, err := scanInvitation(tx.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM organization_invitations WHERE token = $1 FOR UPDATE`, token).Scan)
	if err != nil {
		return nil, err
	}
	if !inv.ExpiresAt.After(now) {
		return nil, fmt.Errorf("invitation: %w", domain.ErrExpired)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM organization_invitations WHERE id = $1`, inv.ID); err != nil {
		return nil, translate("invitation", err)
	}

	member := &domain.Member{
		ID:             uuid.NewString(),
		OrganizationID: inv.OrganizationID,
		UserID:         userID,
		Role:           inv.Role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO organization_members (id, organization_id, user_id, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		member.ID, member.OrganizationID, member.UserID, member.Role, member.CreatedAt, member.UpdatedAt)
	if err != nil {
		return nil, translate("member", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, translate("invitation", err)
	}
	return member, nil
}

// --- API keys ---

func (r *PostgresRepository) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	query := `INSERT INTO api_keys (id, user_id, organization_id, name, key_hash, key_prefix,
	                                last_used_at, expires_at, is_active, scopes, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, string_to_array($10, ','), $11, $12)`
	_, err := r.db.ExecContext(ctx, query,
		key.ID, key.UserID, key.OrganizationID, key.Name, key.KeyHash, key.KeyPrefix,
		key.LastUsedAt, key.ExpiresAt, key.IsActive, joinScopes(key.Scopes), key.CreatedAt, key.UpdatedAt)
	return translate("api key", err)
}

const apiKeyColumns = `id, user_id, organization_id, name, key_hash, key_prefix,
	last_used_at, expires_at, is_active, array_to_string(scopes, ','), created_at, updated_at`

func scanAPIKey(scan func(dest ...any) error) (*domain.APIKey, error) {
	var k domain.APIKey
	var joined string
	err := scan(&k.ID, &k.UserID, &k.OrganizationID, &k.Name, &k.KeyHash, &k.KeyPrefix,
		&k.LastUsedAt, &k.ExpiresAt, &k.IsActive, &joined, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return nil, translate("api key", err)
	}
	k.Scopes = splitScopes(joined)
	return &k, nil
}

func (r *PostgresRepository) GetAPIKey(ctx context.Context, id string) (*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = $1`
	return scanAPIKey(r.db.QueryRowContext(ctx, query, id).Scan)
}

// GetAPIKeyByHash resolves a key by exact hash match against the unique
// index. No prefix or substring comparison happens anywhere.
func (r *PostgresRepository) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = $1`
	return scanAPIKey(r.db.QueryRowContext(ctx, query, keyHash).Scan)
}

func (r *PostgresRepository) listAPIKeys(ctx context.Context, query string, arg any) ([]domain.APIKey, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, translate("api keys", err)
	}
	defer closeRows(rows)

	var keys []domain.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows.Scan)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *k)
	}
	return keys, rows.Err()
}

func (r *PostgresRepository) ListAPIKeysForUser(ctx context.Context, userID string) ([]domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`
	return r.listAPIKeys(ctx, query, userID)
}

func (r *PostgresRepository) ListAPIKeysForOrganization(ctx context.Context, orgID string) ([]domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE organization_id = $1 ORDER BY created_at DESC`
	return r.listAPIKeys(ctx, query, orgID)
}

func (r *PostgresRepository) TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = $2, updated_at = $2 WHERE id = $1`, id, usedAt)
	if err != nil {
		return translate("api key", err)
	}
	return requireRow("api key", res)
}

func (r *PostgresRepository) DeactivateAPIKey(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return translate("api key", err)
	}
	return requireRow("api key", res)
}

// --- Audit ---

func (r *PostgresRepository) SaveAuditLog(ctx context.Context, entry *domain.AuditLog) error {
	query := `INSERT INTO audit_logs (id, organization_id, action, resource_type, resource_id, details, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.OrganizationID, entry.Action, entry.ResourceType, entry.ResourceID, entry.Details, entry.CreatedAt)
	return translate("audit log", err)
}

func (r *PostgresRepository) GetAuditLogs(ctx context.Context, orgID string) ([]domain.AuditLog, error) {
	query := `SELECT id, organization_id, action, resource_type, resource_id, details, created_at
	          FROM audit_logs WHERE organization_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, translate("audit logs", err)
	}
	defer closeRows(rows)

	var logs []domain.AuditLog
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.OrganizationID, &entry.Action,
			&entry.ResourceType, &entry.ResourceID, &entry.Details, &entry.CreatedAt); err != nil {
			return nil, translate("audit log", err)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
