package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/poyrazK/sandboxAuth/internal/core/domain"
	"github.com/poyrazK/sandboxAuth/internal/core/services"
	"github.com/poyrazK/sandboxAuth/internal/testutil"
	"github.com/stretchr/testify/mock"
)

// newTestServer wires real services over a MockRepo so handler tests exercise
// the full request path, including principal resolution.
func newTestServer() (*testutil.MockRepo, *http.ServeMux) {
	repo := &testutil.MockRepo{}
	identity := services.NewIdentityService(repo, nil)
	orgs := services.NewOrgService(repo)
	keys := services.NewAPIKeyService(repo)
	access := services.NewAccessService(repo, identity, keys, nil)

	handler := NewAPIHandler(identity, orgs, keys, access, repo)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return repo, mux
}

func doJSON(mux *http.ServeMux, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func activeSession(userID string) *domain.Session {
	return &domain.Session{
		SessionToken: "sess-tok",
		UserID:       userID,
		Expires:      time.Now().Add(time.Hour),
	}
}

func TestHealthEndpoint(t *testing.T) {
	repo, mux := newTestServer()
	repo.On("Ping").Return(nil)

	rr := doJSON(mux, "GET", "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}

	var resp struct {
		Status string `json:"status"`
	}
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Status != "UP" {
		t.Errorf("status = %s", resp.Status)
	}
}

func TestCreateUserEndpoint(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		repo, mux := newTestServer()
		repo.On("CreateUser", mock.Anything).Return(nil)

		rr := doJSON(mux, "POST", "/api/v1/users", "", map[string]string{"email": "Alice@Example.COM"})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
		}
		var user domain.User
		_ = json.NewDecoder(rr.Body).Decode(&user)
		if user.Email != "alice@example.com" {
			t.Errorf("email not normalized: %s", user.Email)
		}
	})

	t.Run("Invalid Email", func(t *testing.T) {
		_, mux := newTestServer()
		rr := doJSON(mux, "POST", "/api/v1/users", "", map[string]string{"email": "not-an-email"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("Duplicate Email", func(t *testing.T) {
		repo, mux := newTestServer()
		repo.On("CreateUser", mock.Anything).Return(domain.ErrConflict)

		rr := doJSON(mux, "POST", "/api/v1/users", "", map[string]string{"email": "alice@example.com"})
		if rr.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rr.Code)
		}
	})
}

func TestLoginAndIntrospect(t *testing.T) {
	repo, mux := newTestServer()
	repo.On("GetUser", "u1").Return(&domain.User{ID: "u1", Email: "alice@example.com"}, nil)
	repo.On("CreateSession", mock.Anything).Return(nil)

	rr := doJSON(mux, "POST", "/api/v1/sessions", "", map[string]string{"user_id": "u1"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var login struct {
		SessionToken string `json:"session_token"`
	}
	_ = json.NewDecoder(rr.Body).Decode(&login)
	if len(login.SessionToken) != 64 {
		t.Fatalf("token length = %d, want 64", len(login.SessionToken))
	}

	repo.On("GetSession", login.SessionToken).Return(&domain.Session{
		SessionToken: login.SessionToken,
		UserID:       "u1",
		Expires:      time.Now().Add(time.Hour),
	}, nil)

	rr = doJSON(mux, "GET", "/api/v1/session", login.SessionToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var p domain.Principal
	_ = json.NewDecoder(rr.Body).Decode(&p)
	if p.Kind != domain.PrincipalSession || p.UserID != "u1" {
		t.Errorf("unexpected principal: %+v", p)
	}
}

func TestAuthRequired(t *testing.T) {
	repo, mux := newTestServer()

	if rr := doJSON(mux, "GET", "/api/v1/session", "", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("no header: expected 401, got %d", rr.Code)
	}

	repo.On("GetSession", "bad-token").Return(nil, domain.ErrNotFound)
	if rr := doJSON(mux, "GET", "/api/v1/session", "bad-token", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", rr.Code)
	}
}

func TestMemberEndpointRoleEnforcement(t *testing.T) {
	t.Run("Viewer Cannot Add Members", func(t *testing.T) {
		repo, mux := newTestServer()
		repo.On("GetSession", "sess-tok").Return(activeSession("u-viewer"), nil)
		repo.On("GetMember", "org1", "u-viewer").Return(&domain.Member{Role: domain.RoleViewer}, nil)

		rr := doJSON(mux, "POST", "/api/v1/organizations/org1/members", "sess-tok",
			map[string]string{"user_id": "u2", "role": "member"})
		if rr.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rr.Code)
		}
	})

	t.Run("Admin Adds Member", func(t *testing.T) {
		repo, mux := newTestServer()
		repo.On("GetSession", "sess-tok").Return(activeSession("u-admin"), nil)
		repo.On("GetMember", "org1", "u-admin").Return(&domain.Member{Role: domain.RoleAdmin}, nil)
		repo.On("CreateMember", mock.Anything).Return(nil)
		repo.On("SaveAuditLog", mock.Anything).Return(nil)

		rr := doJSON(mux, "POST", "/api/v1/organizations/org1/members", "sess-tok",
			map[string]string{"user_id": "u2", "role": "member"})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
		}
		var member domain.Member
		_ = json.NewDecoder(rr.Body).Decode(&member)
		if member.UserID != "u2" || member.Role != domain.RoleMember {
			t.Errorf("unexpected member: %+v", member)
		}
	})

	t.Run("Duplicate Member Is Conflict", func(t *testing.T) {
		repo, mux := newTestServer()
		repo.On("GetSession", "sess-tok").Return(activeSession("u-admin"), nil)
		repo.On("GetMember", "org1", "u-admin").Return(&domain.Member{Role: domain.RoleAdmin}, nil)
		repo.On("CreateMember", mock.Anything).Return(domain.ErrAlreadyMember)

		rr := doJSON(mux, "POST", "/api/v1/organizations/org1/members", "sess-tok",
			map[string]string{"user_id": "u2", "role": "member"})
		if rr.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rr.Code)
		}
	})

	t.Run("Last Owner Demotion Is Conflict", func(t *testing.T) {
		repo, mux := newTestServer()
		repo.On("GetSession", "sess-tok").Return(activeSession("u-owner"), nil)
		repo.On("GetMember", "org1", "u-owner").Return(&domain.Member{UserID: "u-owner", Role: domain.RoleOwner}, nil)
		repo.On("CountOwners", "org1").Return(1, nil)

		rr := doJSON(mux, "PATCH", "/api/v1/organizations/org1/members/u-owner", "sess-tok",
			map[string]string{"role": "member"})
		if rr.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d: %s", rr.Code, rr.Body.String())
		}
	})
}

func TestAuthorizeEndpointWithAPIKey(t *testing.T) {
	repo, mux := newTestServer()

	orgID := "org1"
	plaintext := "sk-testkey123456"
	key := &domain.APIKey{
		ID:             "k1",
		UserID:         "u1",
		OrganizationID: &orgID,
		KeyHash:        services.HashKey(plaintext),
		IsActive:       true,
		Scopes:         []domain.Scope{domain.ScopeWriteSandbox},
	}
	repo.On("GetAPIKeyByHash", key.KeyHash).Return(key, nil)
	repo.On("TouchAPIKey", "k1", mock.Anything).Return(nil)

	t.Run("Granted Scope", func(t *testing.T) {
		rr := doJSON(mux, "POST", "/api/v1/authorize", plaintext,
			map[string]string{"organization_id": "org1", "scope": "write:sandbox"})
		if rr.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("Ungranted Scope", func(t *testing.T) {
		rr := doJSON(mux, "POST", "/api/v1/authorize", plaintext,
			map[string]string{"organization_id": "org1", "scope": "delete:sandbox"})
		if rr.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rr.Code)
		}
	})

	t.Run("Cross Organization", func(t *testing.T) {
		rr := doJSON(mux, "POST", "/api/v1/authorize", plaintext,
			map[string]string{"organization_id": "org2", "scope": "write:sandbox"})
		if rr.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rr.Code)
		}
	})

	t.Run("Unknown Scope", func(t *testing.T) {
		rr := doJSON(mux, "POST", "/api/v1/authorize", plaintext,
			map[string]string{"organization_id": "org1", "scope": "launch:rockets"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})
}

func TestManagementIsSessionOnly(t *testing.T) {
	repo, mux := newTestServer()

	plaintext := "sk-machinekey42"
	key := &domain.APIKey{
		ID:       "k1",
		UserID:   "u1",
		KeyHash:  services.HashKey(plaintext),
		IsActive: true,
		Scopes:   []domain.Scope{domain.ScopeWriteSandbox},
	}
	repo.On("GetAPIKeyByHash", key.KeyHash).Return(key, nil)
	repo.On("TouchAPIKey", "k1", mock.Anything).Return(nil)

	// A machine key cannot list or mint keys, manage orgs, or log out.
	for _, probe := range []struct{ method, path string }{
		{"GET", "/api/v1/api-keys"},
		{"POST", "/api/v1/organizations"},
		{"DELETE", "/api/v1/session"},
	} {
		rr := doJSON(mux, probe.method, probe.path, plaintext, map[string]string{})
		if rr.Code != http.StatusForbidden {
			t.Errorf("%s %s: expected 403, got %d", probe.method, probe.path, rr.Code)
		}
	}
}

func TestIssueAPIKeyEndpoint(t *testing.T) {
	repo, mux := newTestServer()
	repo.On("GetSession", "sess-tok").Return(activeSession("u1"), nil)
	repo.On("CreateAPIKey", mock.Anything).Return(nil)

	rr := doJSON(mux, "POST", "/api/v1/api-keys", "sess-tok", map[string]interface{}{
		"name":   "ci",
		"scopes": []string{"write:sandbox"},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Plaintext string        `json:"plaintext"`
		Key       domain.APIKey `json:"key"`
	}
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Plaintext == "" || resp.Plaintext[:3] != "sk-" {
		t.Errorf("plaintext missing or malformed: %q", resp.Plaintext)
	}
	if resp.Key.KeyHash != "" {
		t.Error("key hash must never serialize")
	}
}

func TestVersionedSurface(t *testing.T) {
	repo, mux := newTestServer()
	repo.On("CreateUser", mock.Anything).Return(nil)

	for _, path := range []string{"/api/v1/users", "/api/v2/users"} {
		rr := doJSON(mux, "POST", path, "", map[string]string{"email": "alice@example.com"})
		if rr.Code != http.StatusCreated {
			t.Errorf("%s: expected 201, got %d", path, rr.Code)
		}
	}
}
