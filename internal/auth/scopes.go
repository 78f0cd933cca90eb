package auth

import (
	"encoding/json"
	"slices"
	"strings"
)

// ScopeSet is an ordered collection of permission scopes without duplicates.
// Equality is order-insensitive. The zero value is an empty set.
type ScopeSet struct {
	scopes []string
}

// NewScopeSet returns a ScopeSet of the given scopes. Empty entries and
// duplicates are dropped, first-seen order is kept.
func NewScopeSet(scopes ...string) ScopeSet {
	var s ScopeSet
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" || slices.Contains(s.scopes, scope) {
			continue
		}
		s.scopes = append(s.scopes, scope)
	}
	return s
}

// ParseScopes parses the canonical comma-separated form. Whitespace is
// accepted as an additional separator.
func ParseScopes(text string) ScopeSet {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	return NewScopeSet(fields...)
}

// String returns the canonical comma-separated form.
func (s ScopeSet) String() string {
	return strings.Join(s.scopes, ",")
}

// Slice returns a copy of the scopes in order.
func (s ScopeSet) Slice() []string {
	return slices.Clone(s.scopes)
}

// Len returns the number of scopes.
func (s ScopeSet) Len() int {
	return len(s.scopes)
}

// Contains reports whether scope is part of the set.
func (s ScopeSet) Contains(scope string) bool {
	return slices.Contains(s.scopes, scope)
}

// Equal reports whether both sets contain the same scopes, regardless of order.
func (s ScopeSet) Equal(other ScopeSet) bool {
	if len(s.scopes) != len(other.scopes) {
		return false
	}
	for _, scope := range s.scopes {
		if !other.Contains(scope) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a JSON array of strings.
func (s ScopeSet) MarshalJSON() ([]byte, error) {
	if s.scopes == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.scopes)
}

// UnmarshalJSON accepts either a JSON array or the comma-separated string form.
func (s *ScopeSet) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = ParseScopes(text)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = NewScopeSet(list...)
	return nil
}
