package auth

import "time"

// Credential is an access token bundle issued by a Backend.
type Credential struct {
	AccessToken string
	// Expiry is the absolute expiry of AccessToken in UTC.
	Expiry time.Time
	// RefreshHandle lets the Backend obtain a new access token without user
	// interaction. Opaque to everything but the Backend.
	RefreshHandle string
	// Account identifies the signed-in principal. May be empty.
	Account string
	// Scopes is the set the credential was issued for.
	Scopes ScopeSet
}

// ValidAt reports whether the access token is usable at now with skew as
// safety margin. A token expiring exactly at now+skew is not valid.
func (c *Credential) ValidAt(now time.Time, skew time.Duration) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	return c.Expiry.After(now.Add(skew))
}

// MaskToken masks a token for safe logging, showing only a short prefix.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "..."
}
