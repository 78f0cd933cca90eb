// Package tokensource provides credential backends: OAuth2 token acquisition
// and refresh against an identity provider, and a deterministic mock.
//
// # OAuth2 Authorization Flow
//
// OAuth performs the authorization-code flow with PKCE on a loopback redirect
// listener, opening the system browser for the user:
//
//	backend := tokensource.NewOAuth(clientID, tokensource.MicrosoftEndpoint("common"),
//		tokensource.WithRedirectURL("http://localhost:53682/callback"),
//	)
//	cred, err := backend.SignInInteractive(ctx, auth.ParseScopes("User.Read,offline_access"))
//
// Refresh handles are exchanged silently with RefreshSilent. Transient network
// failures are retried with exponential backoff; rejected grants are not.
//
// # Custom Base Transport
//
// Configure a custom base transport for token requests (e.g., for proxies or custom timeouts):
//
//	backend := tokensource.NewOAuth(
//		clientID,
//		endpoint,
//		tokensource.WithTransport(customTransport),
//	)
//
// Identity providers that reject form-encoded token requests can be served
// with WithJSONTokenRequests.
//
// # Mock
//
// Mock returns MockAccessToken without any network or user interaction and
// is used to drive providers deterministically in tests and demos.
package tokensource
