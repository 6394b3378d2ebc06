// Package oidc authenticates OpenID Connect ID tokens presented as token credentials and maps
// them to directory users.
package oidc

import (
	"strings"

	"github.com/vyrodovalexey/repogate/internal/retry"
)

// DefaultUsernameClaim is the claim holding the directory login when none is configured.
const DefaultUsernameClaim = "preferred_username"

// Config configures OIDC token verification.
type Config struct {
	IssuerURL string
	ClientID  string
	// UsernameClaim names the claim matched against directory logins.
	UsernameClaim string
	// DomainID is the directory domain of OIDC users.
	DomainID string
	// RequiredClaims must all be present in a token with the given values.
	RequiredClaims map[string]string
	// Retry drives discovery retries. A zero value uses retry.DefaultConfig.
	Retry retry.Config
}

func (c Config) usernameClaim() string {
	if c.UsernameClaim == "" {
		return DefaultUsernameClaim
	}
	return c.UsernameClaim
}

// ParseRequiredClaims parses a comma-separated string of key:value pairs into a map.
// Format: "groups:repogate,email_verified:true" -> {"groups": "repogate", "email_verified": "true"}
func ParseRequiredClaims(s string) map[string]string {
	result := make(map[string]string)
	if s == "" {
		return result
	}

	for _, pair := range strings.Split(s, ",") {
		// Split on first colon only to support values containing colons.
		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key != "" {
			result[key] = strings.TrimSpace(value)
		}
	}

	return result
}
