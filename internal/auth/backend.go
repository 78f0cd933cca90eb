package auth

import (
	"context"
	"errors"
)

// Backend errors. Implementations wrap the underlying cause so that both the
// sentinel and the cause can be matched with errors.Is / errors.As.
var (
	// ErrUserCancelled is returned when the user aborts an interactive sign-in.
	ErrUserCancelled = errors.New("sign-in cancelled by user")
	// ErrNetwork is returned when the identity provider could not be reached.
	ErrNetwork = errors.New("identity provider unreachable")
	// ErrInvalidGrant is returned when credentials were rejected or the
	// refresh handle has been revoked.
	ErrInvalidGrant = errors.New("grant rejected by identity provider")
)

// Backend acquires credentials from an identity provider.
//
// Implementations must be safe for concurrent use. Retrying transient
// failures is the implementation's responsibility; callers treat every
// returned error as final for that attempt.
type Backend interface {
	// SignInInteractive runs a user-facing sign-in for scopes.
	SignInInteractive(ctx context.Context, scopes ScopeSet) (*Credential, error)

	// RefreshSilent obtains a new credential from a refresh handle without
	// user interaction.
	RefreshSilent(ctx context.Context, refreshHandle string, scopes ScopeSet) (*Credential, error)
}

// Revoker is implemented by backends that can invalidate a refresh handle
// at the identity provider. Used best-effort on sign-out.
type Revoker interface {
	Revoke(ctx context.Context, refreshHandle string) error
}
