package domain

import "testing"

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"alice@example.com", false},
		{"a.b+tag@sub.example.org", false},
		{"", true},
		{"no-at-sign.example.com", true},
		{"two@@example.com", true},
		{"spaces in@example.com", true},
		{"trailing@example", true},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if err := ValidateEmail(tt.email); (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("OWNER"); err != nil || r != RoleOwner {
		t.Errorf("ParseRole(OWNER) = %v, %v", r, err)
	}
	if _, err := ParseRole("superuser"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestRoleOrdering(t *testing.T) {
	order := []Role{RoleViewer, RoleMember, RoleAdmin, RoleOwner}
	for i, lower := range order {
		for j, higher := range order {
			want := j >= i
			if got := higher.AtLeast(lower); got != want {
				t.Errorf("%s.AtLeast(%s) = %v, want %v", higher, lower, got, want)
			}
		}
	}
}

func TestParseScopes(t *testing.T) {
	scopes, err := ParseScopes([]string{"write:sandbox", "read:volumes"})
	if err != nil {
		t.Fatalf("ParseScopes failed: %v", err)
	}
	if len(scopes) != 2 || scopes[0] != ScopeWriteSandbox {
		t.Errorf("unexpected scopes: %v", scopes)
	}

	if _, err := ParseScopes([]string{"fly:moon"}); err == nil {
		t.Error("expected error for unknown scope")
	}
	if _, err := ParseScopes([]string{"read:volumes", "read:volumes"}); err == nil {
		t.Error("expected error for duplicate scope")
	}

	empty, err := ParseScopes(nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("empty scope list should parse: %v, %v", empty, err)
	}
}

func TestMinRoleFor(t *testing.T) {
	if MinRoleFor(ScopeReadVolumes) != RoleViewer {
		t.Error("read:volumes should need only viewer")
	}
	if MinRoleFor(ScopeDeleteSandbox) != RoleAdmin {
		t.Error("delete:sandbox should need admin")
	}
	if MinRoleFor(Scope("bogus")) != RoleOwner {
		t.Error("unknown scope should fall back to owner")
	}
}
