package provider

import "errors"

var (
	// ErrSignInFailed is returned by SignIn when the interactive acquisition
	// fails. The backend error is wrapped alongside.
	ErrSignInFailed = errors.New("sign-in failed")
	// ErrAlreadySignedOut is returned by SignOut when there was nothing to
	// sign out of. The provider is signed out either way.
	ErrAlreadySignedOut = errors.New("already signed out")

	// ErrNoProvider means no provider is installed in the Manager.
	ErrNoProvider = errors.New("no authentication provider installed")
	// ErrReauthenticationRequired means no valid credential could be obtained
	// without user interaction. Callers should prompt and call SignIn.
	ErrReauthenticationRequired = errors.New("reauthentication required")

	// errSignedOut resolves acquisitions overtaken by SignOut.
	errSignedOut = errors.New("signed out during credential acquisition")
)
