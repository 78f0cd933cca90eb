// Package provider coordinates credential acquisition for outgoing requests.
//
// A Provider owns one credential's state machine. It restores a cached
// credential at initialization, acquires new ones through an auth.Backend
// and attaches bearer tokens to requests. At most one acquisition (silent
// refresh or interactive sign-in) is in flight per Provider; concurrent
// callers join it and observe the same outcome:
//
//	p, err := provider.New(backend, cache, provider.WithScopes(scopes))
//	if err := p.SignIn(ctx); err != nil { ... }
//	err = p.AuthenticateRequest(ctx, req) // Authorization: Bearer <token>
//
// # State
//
// Providers move between auth.StateSignedOut, auth.StateLoading and
// auth.StateSignedIn. Loading is reported exactly while an acquisition is in
// flight. Listeners registered with OnStateChanged run on the goroutine
// performing the transition, in transition order, and must not call SignIn,
// SignOut, TrySilentSignIn or AuthenticateRequest synchronously.
//
// # Manager
//
// A Manager holds the provider requests are authenticated with. It is
// created once by the application and passed to the code that needs it.
// Authenticator and Transport resolve the current provider through it Its
// OnProviderUpdated listeners are subject to the same restriction as state
// listeners.
package provider
