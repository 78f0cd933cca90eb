package tokencache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/florianilch/signet/internal/auth"
)

// recordVersion is bumped when the serialized layout changes incompatibly.
const recordVersion = 1

// Record is the persisted form of a credential together with the scopes and
// account it was issued for. Records are replaced wholesale, never patched.
type Record struct {
	Version       int           `json:"version"`
	Account       string        `json:"account,omitempty"`
	Scopes        auth.ScopeSet `json:"scopes"`
	AccessToken   string        `json:"access_token"`
	RefreshHandle string        `json:"refresh_handle"`
	Expiry        time.Time     `json:"expiry"`
	SavedAt       time.Time     `json:"saved_at"`
}

// NewRecord builds a Record from a credential issued for scopes.
func NewRecord(cred *auth.Credential, scopes auth.ScopeSet, now time.Time) *Record {
	return &Record{
		Version:       recordVersion,
		Account:       cred.Account,
		Scopes:        scopes,
		AccessToken:   cred.AccessToken,
		RefreshHandle: cred.RefreshHandle,
		Expiry:        cred.Expiry.UTC(),
		SavedAt:       now.UTC(),
	}
}

// Credential returns the credential held by the record.
func (r *Record) Credential() *auth.Credential {
	return &auth.Credential{
		AccessToken:   r.AccessToken,
		Expiry:        r.Expiry,
		RefreshHandle: r.RefreshHandle,
		Account:       r.Account,
		Scopes:        r.Scopes,
	}
}

func marshalRecord(r *Record) ([]byte, error) {
	return json.Marshal(r)
}

func unmarshalRecord(data []byte) (*Record, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty record", ErrCorrupt)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	if r.Version != recordVersion {
		return nil, fmt.Errorf("%w: unsupported record version %d", ErrCorrupt, r.Version)
	}
	// Either half alone is usable: imported records carry only a refresh handle
	if r.AccessToken == "" && r.RefreshHandle == "" {
		return nil, fmt.Errorf("%w: record holds neither access token nor refresh handle", ErrCorrupt)
	}

	return &r, nil
}
