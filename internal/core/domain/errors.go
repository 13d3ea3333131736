package domain

import (
	"errors"
)

// Error taxonomy. Repository adapters translate raw storage errors
// (sql.ErrNoRows, unique-constraint violations) into these at the boundary;
// raw storage errors never cross into the core or out of it.
var (
	// ErrNotFound: the entity does not exist (or, for one-shot tokens, was
	// already consumed — indistinguishable on purpose).
	ErrNotFound = errors.New("not found")

	// ErrConflict: a uniqueness or invariant violation.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyMember: a membership row already exists for (org, user).
	ErrAlreadyMember = errors.New("already a member: conflict")

	// ErrNotAMember: the user has no membership in the organization.
	ErrNotAMember = errors.New("not a member")

	// ErrIdempotentConflict: an unexpired pending invitation already exists
	// for the same (org, email) pair.
	ErrIdempotentConflict = errors.New("pending invitation exists: conflict")

	// ErrExpired: a time-boxed credential is past its validity window.
	ErrExpired = errors.New("expired")

	// ErrRevoked: the credential was explicitly deactivated.
	ErrRevoked = errors.New("revoked")

	// ErrCloneDetected: an authenticator assertion carried a non-increasing
	// counter, signalling possible credential cloning.
	ErrCloneDetected = errors.New("authenticator counter regression: clone detected")

	// ErrUnauthenticated: no valid principal could be resolved.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden: a valid principal lacks the required permission.
	ErrForbidden = errors.New("forbidden")

	// ErrLastOwner: the change would leave the organization without an owner.
	ErrLastOwner = errors.New("organization must retain at least one owner")
)

// IsConflict reports whether err is any conflict-class error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAlreadyMember) ||
		errors.Is(err, ErrIdempotentConflict)
}

// IsAuthFailure reports whether err is any of the credential-verification
// failures that must collapse into a generic authentication-denied response
// toward the original requester. Internally they stay distinct for logging.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrRevoked) ||
		errors.Is(err, ErrUnauthenticated)
}
