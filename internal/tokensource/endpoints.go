package tokensource

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// DefaultTenant is the multi-tenant Microsoft identity platform authority.
const DefaultTenant = "common"

// DefaultScopes are requested when no scopes are configured.
// offline_access is required for the identity platform to issue refresh tokens.
const DefaultScopes = "openid,profile,offline_access,User.Read"

// MicrosoftEndpoint returns the v2.0 endpoints of the Microsoft identity
// platform for tenant. An empty tenant selects DefaultTenant.
func MicrosoftEndpoint(tenant string) oauth2.Endpoint {
	if tenant == "" {
		tenant = DefaultTenant
	}
	endpoint := microsoft.AzureADEndpoint(tenant)
	endpoint.AuthStyle = oauth2.AuthStyleInParams // public client, no secret
	return endpoint
}
