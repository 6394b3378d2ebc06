package auth

import (
	"fmt"
	"strings"
)

// domainSeparator splits a password user id into login and domain id.
const domainSeparator = "@domain"

// AttrResourcePath is the token attribute naming the repository path the caller wants.
const AttrResourcePath = "resource_path"

// Credential is a piece of evidence presented by a caller.
type Credential interface {
	Kind() Kind
}

// PasswordCredential is a user id and password pair. The user id has the form
// <login>@domain<domainID>.
type PasswordCredential struct {
	UserID   string
	Password string
}

// Kind implements Credential.
func (c *PasswordCredential) Kind() Kind { return KindPassword }

// String returns the credential without its password.
func (c *PasswordCredential) String() string {
	return fmt.Sprintf("PasswordCredential{UserID: %s}", c.UserID)
}

// ParseUserID splits a password user id into login and domain id.
func ParseUserID(userID string) (login, domainID string, err error) {
	parts := strings.Split(userID, domainSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: user id must have the form <login>%s<id>", ErrMalformedCredential, domainSeparator)
	}
	return parts[0], parts[1], nil
}

// TokenCredential is an opaque bearer token with optional attributes.
type TokenCredential struct {
	Token      string
	Attributes map[string]string
}

// Kind implements Credential.
func (c *TokenCredential) Kind() Kind { return KindToken }

// WithAttribute sets an attribute and returns the credential.
func (c *TokenCredential) WithAttribute(name, value string) *TokenCredential {
	if c.Attributes == nil {
		c.Attributes = make(map[string]string)
	}
	c.Attributes[name] = value
	return c
}

// Attribute returns the named attribute or "".
func (c *TokenCredential) Attribute(name string) string {
	return c.Attributes[name]
}

// String returns the credential without its token.
func (c *TokenCredential) String() string {
	return fmt.Sprintf("TokenCredential{Attributes: %v}", c.Attributes)
}

// SystemCredential requests the system identity. It carries no secret.
type SystemCredential struct{}

// Kind implements Credential.
func (c *SystemCredential) Kind() Kind { return KindSystem }

// IdentityToken is published in the public credentials of a subject on commit. It names the
// authenticated user.
type IdentityToken struct {
	Name string
}

// Kind implements Credential.
func (c *IdentityToken) Kind() Kind { return KindIdentity }
