package tokensource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/skratchdot/open-golang/open"
	"golang.org/x/oauth2"

	"github.com/florianilch/signet/internal/auth"
)

const (
	// DefaultRedirectURL is the loopback address the authorization redirect is received on.
	DefaultRedirectURL = "http://localhost:53682/callback"
	// DefaultInteractiveTimeout bounds how long the user has to complete a sign-in.
	DefaultInteractiveTimeout = 5 * time.Minute
	// DefaultMaxTries bounds token requests failing with network errors.
	DefaultMaxTries = 4

	// defaultLifetime applies when the token endpoint omits expires_in.
	defaultLifetime = time.Hour
)

// Option configures an OAuth backend.
type Option func(*config)

// config holds configuration for NewOAuth.
type config struct {
	baseTransport      http.RoundTripper
	jsonTokenRequests  bool
	redirectURL        string
	revocationURL      string
	interactiveTimeout time.Duration
	maxTries           uint
	initialBackoff     time.Duration
	openBrowser        func(url string) error
	prompt             io.Writer
	now                func() time.Time
}

// WithTransport sets a custom base transport for token requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *config) {
		c.baseTransport = transport
	}
}

// WithJSONTokenRequests sends token and revocation requests JSON-encoded
// instead of form-encoded, for identity providers accepting only JSON.
func WithJSONTokenRequests() Option {
	return func(c *config) {
		c.jsonTokenRequests = true
	}
}

// WithRedirectURL sets the loopback redirect URL. Port 0 picks a free port.
func WithRedirectURL(redirectURL string) Option {
	return func(c *config) {
		c.redirectURL = redirectURL
	}
}

// WithRevocationURL enables refresh token revocation (RFC 7009) on sign-out.
func WithRevocationURL(revocationURL string) Option {
	return func(c *config) {
		c.revocationURL = revocationURL
	}
}

// WithInteractiveTimeout bounds how long an interactive sign-in waits for the redirect.
func WithInteractiveTimeout(d time.Duration) Option {
	return func(c *config) {
		c.interactiveTimeout = d
	}
}

// WithRetry sets the maximum number of attempts for token requests failing
// with network errors and the initial backoff between them.
func WithRetry(maxTries uint, initialBackoff time.Duration) Option {
	return func(c *config) {
		c.maxTries = maxTries
		c.initialBackoff = initialBackoff
	}
}

// WithBrowser replaces the function used to open the authorization URL.
// Output receives the URL whenever opening fails.
func WithBrowser(openBrowser func(url string) error, output io.Writer) Option {
	return func(c *config) {
		c.openBrowser = openBrowser
		c.prompt = output
	}
}

// WithClock sets the time source used to compute expiry when the token
// endpoint omits expires_in.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// OAuth acquires credentials from an OAuth2 identity provider using the
// authorization-code flow with PKCE for interactive sign-in and the
// refresh_token grant for silent refresh. Safe for concurrent use.
type OAuth struct {
	clientID   string
	endpoint   oauth2.Endpoint
	httpClient *http.Client
	cfg        *config
}

// Compile-time checks to ensure OAuth implements the backend capabilities
var (
	_ auth.Backend = (*OAuth)(nil)
	_ auth.Revoker = (*OAuth)(nil)
)

// NewOAuth creates an OAuth backend for a public client (no client secret).
func NewOAuth(clientID string, endpoint oauth2.Endpoint, opts ...Option) *OAuth {
	cfg := &config{
		baseTransport:      http.DefaultTransport,
		redirectURL:        DefaultRedirectURL,
		interactiveTimeout: DefaultInteractiveTimeout,
		maxTries:           DefaultMaxTries,
		initialBackoff:     500 * time.Millisecond,
		openBrowser:        open.Run,
		prompt:             os.Stderr,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	transport := cfg.baseTransport
	if cfg.jsonTokenRequests {
		transport = &jsonFormTransport{base: transport}
	}

	return &OAuth{
		clientID: clientID,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout:   30 * time.Second, // Bounds each token request independent of caller contexts
			Transport: transport,
		},
		cfg: cfg,
	}
}

// oauth2Config builds the oauth2 configuration for a set of scopes.
func (o *OAuth) oauth2Config(scopes auth.ScopeSet, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     o.clientID,
		ClientSecret: "", // Empty for PKCE flow (public client)
		Endpoint:     o.endpoint,
		RedirectURL:  redirectURL,
		Scopes:       scopes.Slice(),
	}
}

// clientContext injects the token HTTP client; the oauth2 package reads it
// from the context (oauth2.HTTPClient key).
func (o *OAuth) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
}

// RefreshSilent exchanges a refresh handle for a new credential.
func (o *OAuth) RefreshSilent(ctx context.Context, refreshHandle string, scopes auth.ScopeSet) (*auth.Credential, error) {
	if refreshHandle == "" {
		return nil, fmt.Errorf("%w: no refresh handle", auth.ErrInvalidGrant)
	}

	cfg := o.oauth2Config(scopes, "")
	tok, err := o.retry(ctx, "refresh", func() (*oauth2.Token, error) {
		// Fresh token source per attempt, the refresher caches nothing on failure anyway
		return cfg.TokenSource(o.clientContext(ctx), &oauth2.Token{RefreshToken: refreshHandle}).Token()
	})
	if err != nil {
		return nil, err
	}

	return o.credential(tok, scopes, refreshHandle), nil
}

// Revoke invalidates a refresh handle at the revocation endpoint, if configured.
func (o *OAuth) Revoke(ctx context.Context, refreshHandle string) error {
	if o.cfg.revocationURL == "" || refreshHandle == "" {
		return nil
	}

	form := url.Values{
		"token":           {refreshHandle},
		"token_type_hint": {"refresh_token"},
		"client_id":       {o.clientID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", auth.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revocation failed with status %d", resp.StatusCode)
	}
	return nil
}

// retry runs a token request, retrying network failures with exponential backoff.
func (o *OAuth) retry(ctx context.Context, operation string, fn func() (*oauth2.Token, error)) (*oauth2.Token, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.initialBackoff
	b.MaxInterval = 10 * time.Second

	tok, err := backoff.Retry(ctx, func() (*oauth2.Token, error) {
		tok, err := fn()
		if err == nil {
			return tok, nil
		}
		err = classify(err)
		if !errors.Is(err, auth.ErrNetwork) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(o.cfg.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.WarnContext(ctx, "token request failed, retrying", "operation", operation, "retry_in", next, "error", err)
		}),
	)
	return tok, classify(err)
}

// credential converts an oauth2 token into a Credential. The previous refresh
// handle is kept when the identity provider does not rotate it.
func (o *OAuth) credential(tok *oauth2.Token, scopes auth.ScopeSet, previousHandle string) *auth.Credential {
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = o.cfg.now().Add(defaultLifetime)
	}

	handle := tok.RefreshToken
	if handle == "" {
		handle = previousHandle
	}

	granted := scopes
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		granted = auth.ParseScopes(scope)
	}

	return &auth.Credential{
		AccessToken:   tok.AccessToken,
		Expiry:        expiry.UTC(),
		RefreshHandle: handle,
		Account:       accountFromToken(tok),
		Scopes:        granted,
	}
}
