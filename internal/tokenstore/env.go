package tokenstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// EnvStore provides read-only access to a record provisioned in an environment
// variable, e.g. by a CI secret or a container orchestrator. The value is
// either the record itself or its base64 encoding, as produced by most secret
// managers for binary-safe transport. Refreshed records are kept in memory by
// the caller only.
type EnvStore struct {
	envKey string
	lookup func(string) (string, bool)
}

// Compile-time check to ensure EnvStore implements Store
var _ Store = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore for the given environment variable.
func NewEnvStore(envKey string) (*EnvStore, error) {
	if envKey == "" {
		return nil, fmt.Errorf("environment key cannot be empty")
	}

	return &EnvStore{
		envKey: envKey,
		lookup: os.LookupEnv,
	}, nil
}

// Read returns the record from the environment variable. Returns ErrNotFound if unset or blank.
func (e *EnvStore) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, _ := e.lookup(e.envKey)
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrNotFound
	}
	return decodeEnvRecord(value), nil
}

// decodeEnvRecord returns the decoded value if it is valid base64 and the
// raw value otherwise. Serialized records start with '{', which is not part
// of the base64 alphabet.
func decodeEnvRecord(value string) []byte {
	if strings.HasPrefix(value, "{") {
		return []byte(value)
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if decoded, err := enc.DecodeString(value); err == nil {
			return bytes.TrimSpace(decoded)
		}
	}
	return []byte(value)
}

// Write always fails: environment variables cannot be persisted from inside the process.
func (e *EnvStore) Write(ctx context.Context, _ []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("environment variable %s: %w", e.envKey, ErrReadOnly)
}

// Delete always fails, see Write.
func (e *EnvStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("environment variable %s: %w", e.envKey, ErrReadOnly)
}
