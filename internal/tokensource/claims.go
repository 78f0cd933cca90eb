package tokensource

import (
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// accountClaims are consulted in order to identify the signed-in account.
var accountClaims = []string{"preferred_username", "email", "upn", "sub"}

// accountFromToken extracts an account identifier from the id_token returned
// alongside the access token. The id_token is only used as a display hint and
// is therefore not verified.
func accountFromToken(tok *oauth2.Token) string {
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return ""
	}

	for _, key := range accountClaims {
		if value, ok := claims[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}
