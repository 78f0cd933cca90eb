package app

import (
	"fmt"

	"golang.org/x/oauth2"

	"github.com/florianilch/signet/internal/auth"
	"github.com/florianilch/signet/internal/provider"
	"github.com/florianilch/signet/internal/tokencache"
	"github.com/florianilch/signet/internal/tokensource"
)

// NewBackend creates the credential backend from the authentication configuration.
func (a *AuthConfig) NewBackend() (auth.Backend, error) {
	switch a.Method {
	case AuthenticationMethodOAuth:
		return tokensource.NewOAuth(a.ClientID, a.endpoint(), a.oauthOptions()...), nil
	case AuthenticationMethodMock:
		return tokensource.NewMock(a.MockLifetime), nil
	default:
		return nil, fmt.Errorf("unsupported authentication method: %s", a.Method)
	}
}

func (a *AuthConfig) endpoint() oauth2.Endpoint {
	if a.AuthURL != "" && a.TokenURL != "" {
		return oauth2.Endpoint{
			AuthURL:   a.AuthURL,
			TokenURL:  a.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams, // public client, no secret
		}
	}
	return tokensource.MicrosoftEndpoint(a.Tenant)
}

func (a *AuthConfig) oauthOptions() []tokensource.Option {
	opts := []tokensource.Option{
		tokensource.WithRedirectURL(a.RedirectURL),
		tokensource.WithInteractiveTimeout(a.InteractiveTimeout),
	}
	if a.RevocationURL != "" {
		opts = append(opts, tokensource.WithRevocationURL(a.RevocationURL))
	}
	if a.JSONTokenRequests {
		opts = append(opts, tokensource.WithJSONTokenRequests())
	}
	return opts
}

// ScopeSet returns the configured scopes.
func (a *AuthConfig) ScopeSet() auth.ScopeSet {
	return auth.ParseScopes(a.Scopes)
}

// NewCache opens the token cache described by the configuration.
func NewCache(cfg *Config) (*tokencache.Cache, error) {
	cache, err := tokencache.Open(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to open token cache: %w", err)
	}
	return cache, nil
}

// NewProvider creates a provider from application configuration.
// No I/O is performed until the provider is first used.
func NewProvider(cfg *Config) (*provider.Provider, error) {
	cache, err := NewCache(cfg)
	if err != nil {
		return nil, err
	}

	backend, err := cfg.Auth.NewBackend()
	if err != nil {
		return nil, fmt.Errorf("failed to create credential backend: %w", err)
	}

	return provider.New(backend, cache,
		provider.WithScopes(cfg.Auth.ScopeSet()),
		provider.WithRefreshSkew(cfg.Auth.RefreshSkew),
	)
}
