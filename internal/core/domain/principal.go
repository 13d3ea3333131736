package domain

// PrincipalKind says which credential a principal was resolved from.
type PrincipalKind string

const (
	PrincipalSession PrincipalKind = "session"
	PrincipalAPIKey  PrincipalKind = "api_key"
)

// Principal is the authenticated identity resolved from a request's bearer
// credential. Session principals carry no forced organization context and are
// checked against membership roles; key principals are pinned to the key's
// organization and its literal scope set.
type Principal struct {
	Kind           PrincipalKind `json:"kind"`
	UserID         string        `json:"user_id"`
	OrganizationID *string       `json:"organization_id,omitempty"` // set for org-scoped API keys
	Scopes         []Scope       `json:"scopes,omitempty"`          // set for API keys only
}
