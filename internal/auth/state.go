package auth

import "fmt"

// State is the externally observable authentication state of a provider.
type State int32

const (
	// StateSignedOut is the initial state. No credential is attached to requests.
	StateSignedOut State = iota
	// StateLoading means a sign-in or silent refresh is in flight. Never persisted.
	StateLoading
	// StateSignedIn means a credential is available.
	StateSignedIn
)

// String returns the snake_case name used in logs, JSON and the CLI.
func (s State) String() string {
	switch s {
	case StateSignedOut:
		return "signed_out"
	case StateLoading:
		return "loading"
	case StateSignedIn:
		return "signed_in"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{StateSignedOut, StateLoading, StateSignedIn} {
		if string(text) == candidate.String() {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// CanTransition reports whether moving from s to next is a permitted edge.
//
// Permitted edges are SignedOut→Loading, SignedIn→Loading,
// Loading→{SignedIn,SignedOut} and {SignedIn,SignedOut}→SignedOut (sign-out).
// SignedOut→SignedIn is permitted only when restoring a cached credential.
func CanTransition(from, next State, restoring bool) bool {
	switch {
	case from == StateLoading:
		return next == StateSignedIn || next == StateSignedOut
	case next == StateLoading:
		return true
	case next == StateSignedOut:
		return true
	case from == StateSignedOut && next == StateSignedIn:
		return restoring
	default:
		return false
	}
}
