// Package auth defines the domain types shared by the credential layer:
// provider states, credentials, scope sets and the Backend capability that
// performs the actual token acquisition.
//
// The package has no dependencies on storage or transport so that backends
// (see package tokensource) and the provider state machine (see package
// provider) can both depend on it.
package auth
