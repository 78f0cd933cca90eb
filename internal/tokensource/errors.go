package tokensource

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/florianilch/signet/internal/auth"
)

// classify maps token endpoint and transport failures onto the backend error
// taxonomy. Already classified errors are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, auth.ErrNetwork) || errors.Is(err, auth.ErrInvalidGrant) || errors.Is(err, auth.ErrUserCancelled) {
		return err
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" {
			return fmt.Errorf("%w: %w", auth.ErrInvalidGrant, err)
		}
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %w", auth.ErrNetwork, err)
		}
		// Remaining 4xx answers (invalid_client, unauthorized_client, ...) are not transient
		return fmt.Errorf("%w: %w", auth.ErrInvalidGrant, err)
	}

	return fmt.Errorf("%w: %w", auth.ErrNetwork, err)
}

// callbackError maps the error parameter of an authorization redirect.
func callbackError(code, description string) error {
	if description == "" {
		description = "no description"
	}
	if code == "access_denied" {
		return fmt.Errorf("%w: %s", auth.ErrUserCancelled, description)
	}
	return fmt.Errorf("%w: authorization failed: %s: %s", auth.ErrInvalidGrant, code, description)
}
