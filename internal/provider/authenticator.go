package provider

import (
	"context"
	"net/http"
)

// ClientInfoHeader identifies the calling SDK to the remote API.
const ClientInfoHeader = "SdkVersion"

// RequestAuthenticator attaches credentials to outgoing requests.
type RequestAuthenticator interface {
	AuthenticateRequest(ctx context.Context, req *http.Request) error
}

// Compile-time checks to ensure both authenticators implement RequestAuthenticator
var (
	_ RequestAuthenticator = (*Provider)(nil)
	_ RequestAuthenticator = Authenticator{}
)

// Authenticator authenticates requests with the provider currently installed
// in Manager.
type Authenticator struct {
	Manager *Manager
	// ClientInfo is sent in ClientInfoHeader when set.
	ClientInfo string
}

// AuthenticateRequest fails with ErrNoProvider, without blocking, when no
// provider is installed.
func (a Authenticator) AuthenticateRequest(ctx context.Context, req *http.Request) error {
	p := a.provider()
	if p == nil {
		return ErrNoProvider
	}

	if err := p.AuthenticateRequest(ctx, req); err != nil {
		return err
	}

	if a.ClientInfo != "" {
		req.Header.Set(ClientInfoHeader, a.ClientInfo)
	}
	return nil
}

// Invalidate forwards to the installed provider.
func (a Authenticator) Invalidate(accessToken string) {
	if p := a.provider(); p != nil {
		p.Invalidate(accessToken)
	}
}

func (a Authenticator) provider() *Provider {
	if a.Manager == nil {
		return nil
	}
	return a.Manager.Provider()
}
