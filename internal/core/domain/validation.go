package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var validEmailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateEmail checks that the address is plausibly deliverable. Full RFC
// 5322 parsing is deliberately avoided; the mail provider has the last word.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if len(email) > 254 {
		return fmt.Errorf("email exceeds 254 characters")
	}
	if !validEmailRegex.MatchString(email) {
		return fmt.Errorf("email '%s' is not a valid address", email)
	}
	return nil
}

// NormalizeEmail lowercases and trims an address so that invitation and
// membership lookups compare consistently.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ParseRole converts a string tag into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role: %s", s)
	}
	return r, nil
}

// ParseScopes converts string tags into a scope set, rejecting unknown tags
// and duplicates.
func ParseScopes(tags []string) ([]Scope, error) {
	seen := make(map[Scope]bool, len(tags))
	scopes := make([]Scope, 0, len(tags))
	for _, tag := range tags {
		s := Scope(strings.TrimSpace(tag))
		if !s.Valid() {
			return nil, fmt.Errorf("unknown scope: %s", tag)
		}
		if seen[s] {
			return nil, fmt.Errorf("duplicate scope: %s", tag)
		}
		seen[s] = true
		scopes = append(scopes, s)
	}
	return scopes, nil
}
