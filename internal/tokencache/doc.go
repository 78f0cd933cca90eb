// Package tokencache persists the credential record of a provider across
// process restarts.
//
// A Cache serializes a Record to JSON and hands the blob to a secure-storage
// backend from package tokenstore. The backend is chosen by Config at
// Initialize time. Every error returned by a Cache is non-fatal to callers:
// losing the cache only means the user has to sign in interactively again.
package tokencache
