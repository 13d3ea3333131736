package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/poyrazK/sandboxAuth/internal/core/domain"
	"github.com/poyrazK/sandboxAuth/internal/core/ports"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIHandler handles HTTP requests for identity, organization and API key
// management.
type APIHandler struct {
	identity ports.IdentityService
	orgs     ports.OrgService
	keys     ports.APIKeyService
	access   ports.AccessService
	repo     ports.Repository
}

// NewAPIHandler creates and returns a new APIHandler instance.
func NewAPIHandler(identity ports.IdentityService, orgs ports.OrgService, keys ports.APIKeyService, access ports.AccessService, repo ports.Repository) *APIHandler {
	return &APIHandler{identity: identity, orgs: orgs, keys: keys, access: access, repo: repo}
}

// RegisterRoutes registers the API routes with the provided ServeMux.
// v1 and v2 serve the same surface; v2 exists so clients can pin a version
// before the surfaces diverge.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	// Public Routes
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /metrics", h.Metrics)

	for _, prefix := range []string{"/api/v1", "/api/v2"} {
		h.registerVersion(mux, prefix)
	}
}

func (h *APIHandler) registerVersion(mux *http.ServeMux, p string) {
	auth := AuthMiddleware(h.access)

	// Public: sign-up, login, email verification.
	mux.HandleFunc("POST "+p+"/users", h.CreateUser)
	mux.HandleFunc("POST "+p+"/sessions", h.IssueSession)
	mux.HandleFunc("POST "+p+"/verification-tokens/redeem", h.RedeemVerificationToken)

	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, auth(fn))
	}

	// Session introspection and logout.
	handle("GET "+p+"/session", h.CurrentSession)
	handle("DELETE "+p+"/session", h.Logout)
	handle("DELETE "+p+"/sessions", h.LogoutEverywhere)

	// Users and linked accounts.
	handle("GET "+p+"/users/{id}", h.GetUser)
	handle("PATCH "+p+"/users/{id}", h.UpdateUser)
	handle("DELETE "+p+"/users/{id}", h.DeleteUser)
	handle("POST "+p+"/users/{id}/accounts", h.LinkAccount)
	handle("GET "+p+"/users/{id}/accounts", h.ListAccounts)
	handle("DELETE "+p+"/accounts/{provider}/{account_id}", h.UnlinkAccount)

	// WebAuthn authenticators.
	handle("POST "+p+"/users/{id}/authenticators", h.RegisterAuthenticator)
	handle("GET "+p+"/users/{id}/authenticators", h.ListAuthenticators)
	handle("POST "+p+"/authenticators/{credential_id}/assertions", h.VerifyAssertion)

	// Verification tokens.
	handle("POST "+p+"/verification-tokens", h.CreateVerificationToken)

	// Organizations.
	handle("POST "+p+"/organizations", h.CreateOrganization)
	handle("GET "+p+"/organizations", h.ListOrganizations)
	handle("GET "+p+"/organizations/{org_id}", h.GetOrganization)
	handle("DELETE "+p+"/organizations/{org_id}", h.DeleteOrganization)

	// Memberships.
	handle("POST "+p+"/organizations/{org_id}/members", h.AddMember)
	handle("GET "+p+"/organizations/{org_id}/members", h.ListMembers)
	handle("PATCH "+p+"/organizations/{org_id}/members/{user_id}", h.ChangeRole)
	handle("DELETE "+p+"/organizations/{org_id}/members/{user_id}", h.RemoveMember)

	// Invitations.
	handle("POST "+p+"/organizations/{org_id}/invitations", h.Invite)
	handle("GET "+p+"/organizations/{org_id}/invitations", h.ListInvitations)
	handle("DELETE "+p+"/organizations/{org_id}/invitations/{id}", h.RevokeInvitation)
	handle("POST "+p+"/invitations/redeem", h.RedeemInvitation)

	// API keys.
	handle("POST "+p+"/api-keys", h.IssueAPIKey)
	handle("GET "+p+"/api-keys", h.ListAPIKeys)
	handle("DELETE "+p+"/api-keys/{id}", h.RevokeAPIKey)
	handle("GET "+p+"/organizations/{org_id}/api-keys", h.ListOrgAPIKeys)

	// Authorization check for downstream services.
	handle("POST "+p+"/authorize", h.Authorize)

	// Audit trail.
	handle("GET "+p+"/organizations/{org_id}/audit-logs", h.ListAuditLogs)
}

// Metrics handles Prometheus metrics scraping requests.
func (h *APIHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// HealthCheck handles health check requests.
func (h *APIHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "UP"
	details := make(map[string]string)
	checks := h.access.HealthCheck(r.Context())

	for name, checkErr := range checks {
		if checkErr != nil {
			status = "DEGRADED"
			details[name] = checkErr.Error()
		} else {
			details[name] = "OK"
		}
	}

	resp := map[string]interface{}{
		"status":  status,
		"details": details,
	}

	w.Header().Set("Content-Type", "application/json")
	if status == "DEGRADED" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("failed to encode health check response: %v", err)
	}
}

// writeError maps the domain error taxonomy to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case domain.IsConflict(err), errors.Is(err, domain.ErrLastOwner):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrUnauthenticated):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotAMember), errors.Is(err, domain.ErrCloneDetected):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrExpired), errors.Is(err, domain.ErrRevoked):
		http.Error(w, err.Error(), http.StatusGone)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// principal returns the authenticated principal or writes a 401.
func principal(w http.ResponseWriter, r *http.Request) (*domain.Principal, bool) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing principal", http.StatusUnauthorized)
		return nil, false
	}
	return p, true
}

// requireSession rejects API key principals. Organization and account
// management happens through sessions only; machine keys carry product
// scopes, not management rights.
func requireSession(w http.ResponseWriter, r *http.Request) (*domain.Principal, bool) {
	p, ok := principal(w, r)
	if !ok {
		return nil, false
	}
	if p.Kind != domain.PrincipalSession {
		http.Error(w, "Forbidden: management requires a session", http.StatusForbidden)
		return nil, false
	}
	return p, true
}

// requireRole checks the caller's membership role in the organization.
func (h *APIHandler) requireRole(w http.ResponseWriter, r *http.Request, orgID string, min domain.Role) (*domain.Principal, bool) {
	p, ok := requireSession(w, r)
	if !ok {
		return nil, false
	}
	member, err := h.repo.GetMember(r.Context(), orgID, p.UserID)
	if err != nil {
		http.Error(w, "Forbidden: not a member", http.StatusForbidden)
		return nil, false
	}
	if !member.Role.AtLeast(min) {
		http.Error(w, "Forbidden: insufficient role", http.StatusForbidden)
		return nil, false
	}
	return p, true
}

// --- Users ---

func (h *APIHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string  `json:"email"`
		Name  *string `json:"name"`
		Image *string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.identity.CreateUser(r.Context(), req.Email, req.Name, req.Image)
	if err != nil {
		if domain.IsConflict(err) {
			writeError(w, err)
		} else {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *APIHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := principal(w, r); !ok {
		return
	}
	user, err := h.identity.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *APIHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := requireSession(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if p.UserID != id {
		http.Error(w, "Forbidden: users manage only themselves", http.StatusForbidden)
		return
	}

	var user domain.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	user.ID = id

	updated, err := h.identity.UpdateUser(r.Context(), &user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *APIHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	p, ok := requireSession(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if p.UserID != id {
		http.Error(w, "Forbidden: users manage only themselves", http.StatusForbidden)
		return
	}
	if err := h.identity.DeleteUser(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Sessions ---

func (h *APIHandler) IssueSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := h.identity.IssueSession(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	// The one response that carries the token in the clear.
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session_token": session.SessionToken,
		"user_id":       session.UserID,
		"expires":       session.Expires,
	})
}

func (h *APIHandler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *APIHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSession(w, r); !ok {
		return
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if err := h.identity.InvalidateSession(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) LogoutEverywhere(w http.ResponseWriter, r *http.Request) {
	p, ok := requireSession(w, r)
	if !ok {
		return
	}
	if err := h.identity.InvalidateUserSessions(r.Context(), p.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Accounts ---

func (h *APIHandler) LinkAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := requireSession(w, r)
	if !ok {
		return
	}
	userID := r.PathValue("id")
	if p.UserID != userID {
		http.Error(w, "Forbidden: users manage only themselves", http.StatusForbidden)
		return
	}

	var account domain.Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	account.UserID = userID

	if err := h.identity.LinkAccount(r.Context(), &account); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (h *APIHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	p, ok := requireSession(w, r)
	if !ok {
		return
	}
	userID := r.PathValue("id")
	if p.UserID != userID {
		http.Error(w, "Forbidden: users manage only themselves", http.StatusForbidden)
		return
	}
	accounts, err := h.identity.ListAccounts(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *APIHandler) UnlinkAccount(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSession(w, r); !ok {
		return
	}
	provider := r.PathValue("provider")
	accountID := r.PathValue("account_id")
	if err := h.identity.UnlinkAccount(r.Context(), provider, accountID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Authenticators ---

func (h *APIHandler) RegisterAuthenticator(w http.ResponseWriter, r *http.Request) {
	p, ok := requireSession(w, r)
	if !ok {
		return
	}
	userID := r.PathValue("id")
	if p.UserID != userID {
		http.Error(w, "Forbidden: users manage only themselves", http.StatusForbidden)
		return
	}

	var auth domain.Authenticator
	if err := json.NewDecoder(r.Body).Decode(&auth); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	auth.UserID = userID

	if err := h.identity.RegisterAuthenticator(r.Context(), &auth); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, auth)
}

func (h *APIHandler) ListAuthenticators(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSession(w, r); !ok {
		return
	}
	auths, err := h.identity.ListAuthenticators(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auths)
}

func (h *APIHandler) VerifyAssertion(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSession(w, r); !ok {
		return
	}
	var req struct {
		Counter int64 `json:"counter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.identity.VerifyAssertion(r.Context(), r.PathValue("credential_id"), req.Counter); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Verification tokens ---

func (h *APIHandler) CreateVerificationToken(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSession(w, r); !ok {
		return
	}
	var req struct {
		Identifier string `json:"identifier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	vt, err := h.identity.CreateVerificationToken(r.Context(), req.Identifier)
	if err != nil {
		writeError(w, err)
		return
	}
	// The token is delivered out of band in production; returning it here is
	// what lets the caller send the email.
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"identifier": vt.Identifier,
		"token":      vt.Token,
		"expires":    vt.Expires,
	})
}

func (h *APIHandler) RedeemVerificationToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Token      string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.identity.RedeemVerificationToken(r.Context(), req.Identifier, req.Token); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Organizations ---

func (h *APIHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	p, ok := requireSession(w, r)
	if !ok {
		return
	}
	var req struct {
		Name  string  `json:"name"`
		Image *string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "organization name is required", http.StatusBadRequest)
		return
	}

	org, err := h.orgs.CreateOrganization(r.Context(), req.Name, req.Image, p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

func (h *APIHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	p, ok := requireSession(w, r)
	if !ok {
		return
	}
	orgs, err := h.orgs.ListOrganizationsForUser(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orgs)
}

func (h *APIHandler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org_id")
	if _, ok := h.requireRole(w, r, orgID, domain.RoleViewer); !ok {
		return
	}
	org, err := h.orgs.GetOrganization(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (h *APIHandler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org_id")
	if _, ok := h.requireRole(w, r, orgID, domain.RoleOwner); !ok {
		return
	}
	if err := h.orgs.DeleteOrganization(r.Context(), orgID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Memberships ---

func (h *APIHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org_id")
	if _, ok := h.requireRole(w, r, orgID, domain.RoleAdmin); !ok {
		return
	}
	var req struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	member, err := h.orgs.AddMember(r.Context(), orgID, req.UserID, role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (h *APIHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org_id")
	if _, ok := h.requireRole(w, r, orgID, domain.RoleViewer); !ok {
		return
	}
	members, err := h.orgs.ListMembers(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *APIHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org_id")
	if _, ok := h.requireRole(w, r, orgID, domain.RoleAdmin); !ok {
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.orgs.ChangeRole(r.Context(), orgID, r.PathValue("user_id"), role); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org_id")
	if _, ok := h.requireRole(w, r, orgID, domain.RoleAdmin); !ok {
		return
	}
	if err := h.orgs.RemoveMember(r.Context(), orgID, r.PathValue("user_id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Invitations ---

func (h *APIHandler) Invite(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org_id")
	p, ok := h.requireRole(w, r, orgID, domain.RoleAdmin)
	if !ok {
		return
	}
	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	inv, err := h.orgs.Invite(r.Context(), orgID, req.Email, role, p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	// Token included so the caller can build the invitation email.
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"invitation": inv,
		"token":      inv.Token,
	})
}

func (h *APIHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org_id")
	if _, ok := h.requireRole(w, r, orgID, domain.RoleAdmin); !ok {
		return
	}
	invitations, err := h.orgs.ListInvitations(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invitations)
}

func (h *APIHandler) RevokeInvitation(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org_id")
	if _, ok := h.requireRole(w, r, orgID, domain.RoleAdmin); !ok {
		return
	}
	if err := h.orgs.RevokeInvitation(r.Context(), orgID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) RedeemInvitation(w http.ResponseWriter, r *http.Request) {
	p, ok := requireSession(w, r)
	if !ok {
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	member, err := h.orgs.Redeem(r.Context(), req.Token, p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// --- API keys ---

func (h *APIHandler) IssueAPIKey(w http.ResponseWriter, r *http.Request) {
	p, ok := requireSession(w, r)
	if !ok {
		return
	}
	var req struct {
		Name           string     `json:"name"`
		OrganizationID *string    `json:"organization_id"`
		Scopes         []string   `json:"scopes"`
		ExpiresAt      *time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Org-scoped keys need admin rights in that organization.
	if req.OrganizationID != nil {
		member, err := h.repo.GetMember(r.Context(), *req.OrganizationID, p.UserID)
		if err != nil || !member.Role.AtLeast(domain.RoleAdmin) {
			http.Error(w, "Forbidden: org-scoped keys require admin", http.StatusForbidden)
			return
		}
	}

	scopes, err := domain.ParseScopes(req.Scopes)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	plaintext, key, err := h.keys.Issue(r.Context(), ports.IssueKeyRequest{
		UserID:         p.UserID,
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Scopes:         scopes,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	// The plaintext appears in this response and nowhere else, ever.
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"key":       key,
		"plaintext": plaintext,
	})
}

func (h *APIHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	p, ok := requireSession(w, r)
	if !ok {
		return
	}
	keys, err := h.keys.ListForUser(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h *APIHandler) ListOrgAPIKeys(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org_id")
	if _, ok := h.requireRole(w, r, orgID, domain.RoleAdmin); !ok {
		return
	}
	keys, err := h.keys.ListForOrganization(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h *APIHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	p, ok := requireSession(w, r)
	if !ok {
		return
	}
	key, err := h.keys.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	allowed := key.UserID == p.UserID
	if !allowed && key.OrganizationID != nil {
		member, err := h.repo.GetMember(r.Context(), *key.OrganizationID, p.UserID)
		allowed = err == nil && member.Role.AtLeast(domain.RoleAdmin)
	}
	if !allowed {
		http.Error(w, "Forbidden: not your key", http.StatusForbidden)
		return
	}

	if err := h.keys.Revoke(r.Context(), key.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Authorization check ---

// Authorize lets downstream services ask whether the presented credential may
// perform a scoped action in an organization. 204 on success, 403 otherwise.
func (h *APIHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req struct {
		OrganizationID string `json:"organization_id"`
		Scope          string `json:"scope"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	scope := domain.Scope(req.Scope)
	if !scope.Valid() {
		http.Error(w, "unknown scope: "+req.Scope, http.StatusBadRequest)
		return
	}

	if err := h.access.Authorize(r.Context(), p, req.OrganizationID, scope); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Audit trail ---

// ListAuditLogs retrieves audit entries for an organization.
func (h *APIHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org_id")
	if _, ok := h.requireRole(w, r, orgID, domain.RoleAdmin); !ok {
		return
	}
	logs, err := h.orgs.ListAuditLogs(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
