package auth

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vyrodovalexey/repogate/internal/directory"
)

// Identity is an authenticated user attached to a subject as a principal.
type Identity struct {
	// Name is the display name of the user.
	Name       string
	User       *directory.User
	AuthMethod Kind
	Claims     map[string]string
}

// NewIdentity returns the identity of user authenticated with the given kind.
func NewIdentity(user *directory.User, method Kind) *Identity {
	return &Identity{
		Name:       user.DisplayName(),
		User:       user,
		AuthMethod: method,
	}
}

// WithClaim sets a claim and returns the identity.
func (i *Identity) WithClaim(name, value string) *Identity {
	if i.Claims == nil {
		i.Claims = make(map[string]string)
	}
	i.Claims[name] = value
	return i
}

// IsSystem reports whether the identity is the system identity.
func (i *Identity) IsSystem() bool {
	return i != nil && i.User != nil && i.User.System
}

// String returns a human-readable representation of the identity.
func (i *Identity) String() string {
	if i == nil {
		return "Identity{nil}"
	}

	userID := ""
	if i.User != nil {
		userID = i.User.ID
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Identity{Name: %s, UserID: %s, AuthMethod: %s", i.Name, userID, i.AuthMethod)

	if len(i.Claims) > 0 {
		keys := make([]string, 0, len(i.Claims))
		for k := range i.Claims {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(", Claims: {")
		for n, k := range keys {
			if n > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s: %s", k, i.Claims[k])
		}
		sb.WriteString("}")
	}

	sb.WriteString("}")
	return sb.String()
}
