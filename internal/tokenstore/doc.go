// Package tokenstore provides secure-storage backends for serialized credential records.
//
// Supports three storage backends with different security and deployment tradeoffs:
//   - File: Local filesystem storage with atomic writes and secure permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager,
//     Linux Secret Service), addressed by collection and account tag
//   - Env: Read-only environment variable access (requires external secret management)
//
// Stores treat the record as an opaque blob. Serialization lives in package tokencache.
package tokenstore
