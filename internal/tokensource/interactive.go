package tokensource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/florianilch/signet/internal/auth"
)

const callbackPage = `<!DOCTYPE html>
<html><head><title>Signed in</title></head>
<body><p>%s You can close this window.</p></body></html>`

// callbackResult is delivered once by the redirect handler.
type callbackResult struct {
	code string
	err  error
}

// SignInInteractive runs the authorization-code flow with PKCE. The user is
// sent to the identity provider in the system browser and the authorization
// code is received on a loopback listener.
func (o *OAuth) SignInInteractive(ctx context.Context, scopes auth.ScopeSet) (*auth.Credential, error) {
	redirect, err := url.Parse(o.cfg.redirectURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URL: %w", err)
	}

	// Listen before publishing the URL so the redirect can never race the listener
	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for authorization redirect on %s: %w", redirect.Host, err)
	}
	if redirect.Port() == "0" {
		redirect.Host = net.JoinHostPort(redirect.Hostname(), fmt.Sprint(listener.Addr().(*net.TCPAddr).Port))
	}

	cfg := o.oauth2Config(scopes, redirect.String())
	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()

	results := make(chan callbackResult, 1)
	server := &http.Server{
		Handler:           callbackHandler(redirect.Path, state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "authorization redirect listener failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	if err := o.cfg.openBrowser(authURL); err != nil {
		slog.DebugContext(ctx, "failed to open browser", "error", err)
		_, _ = fmt.Fprintf(o.cfg.prompt, "Open the following URL to sign in:\n\n  %s\n\n", authURL)
	}

	waitCtx, cancel := context.WithTimeout(ctx, o.cfg.interactiveTimeout)
	defer cancel()

	var code string
	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		code = res.code
	case <-waitCtx.Done():
		return nil, fmt.Errorf("%w: %w", auth.ErrUserCancelled, waitCtx.Err())
	}

	tok, err := o.retry(ctx, "exchange", func() (*oauth2.Token, error) {
		return cfg.Exchange(o.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	})
	if err != nil {
		return nil, err
	}

	return o.credential(tok, scopes, ""), nil
}

// callbackHandler receives the authorization redirect. Requests with a
// foreign state are rejected without ending the flow.
func callbackHandler(path, state string, results chan<- callbackResult) http.Handler {
	var once sync.Once
	deliver := func(res callbackResult) {
		once.Do(func() { results <- res })
	}

	if path == "" {
		path = "/"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+path, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		if code := query.Get("error"); code != "" {
			deliver(callbackResult{err: callbackError(code, query.Get("error_description"))})
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = fmt.Fprintf(w, callbackPage, "Sign-in was not completed.")
			return
		}

		code := query.Get("code")
		if code == "" {
			http.Error(w, "missing authorization code", http.StatusBadRequest)
			return
		}

		deliver(callbackResult{code: code})
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, callbackPage, "Signed in.")
	})
	return mux
}
