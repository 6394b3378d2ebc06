// Package directory is the host application's identity store: the users, password hashes and
// API tokens against which repository callers are authenticated.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Directory errors.
var (
	// ErrInvalidCredentials is returned when a login/password pair does not match a user.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserNotFound is returned when no user matches a lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserDisabled is returned when the user exists but may not sign in.
	ErrUserDisabled = errors.New("user disabled")

	// ErrTokenNotFound is returned when a token has no known owner.
	ErrTokenNotFound = errors.New("token not found")
)

// State is the lifecycle state of a user account.
type State string

// User states.
const (
	StateValid   State = "valid"
	StateBlocked State = "blocked"
	StateDeleted State = "deleted"
)

const (
	systemUserID       = "0"
	systemUserLogin    = "jcr-system"
	systemUserDomainID = "0"
)

// User is an account of the host application.
type User struct {
	ID           string `yaml:"id"`
	Login        string `yaml:"login"`
	DomainID     string `yaml:"domain_id"`
	FirstName    string `yaml:"first_name"`
	LastName     string `yaml:"last_name"`
	PasswordHash string `yaml:"password_hash"`
	State        State  `yaml:"state"`
	System       bool   `yaml:"-"`
}

// DisplayName returns the name shown for the user, falling back to its login.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Login
	}
	return name
}

// CanSignIn reports whether the account state allows authentication.
func (u *User) CanSignIn() bool {
	return u.State == "" || u.State == StateValid
}

// String returns a human-readable representation without the password hash.
func (u *User) String() string {
	if u == nil {
		return "User{nil}"
	}
	return fmt.Sprintf("User{ID: %s, Login: %s, DomainID: %s, State: %s}", u.ID, u.Login, u.DomainID, u.State)
}

// systemUser is shared and must never be mutated.
var systemUser = &User{
	ID:        systemUserID,
	Login:     systemUserLogin,
	DomainID:  systemUserDomainID,
	FirstName: "System",
	State:     StateValid,
	System:    true,
}

// SystemUser returns the distinguished identity used for privileged internal operations.
func SystemUser() *User {
	return systemUser
}

// Grant is the result of resolving an API token.
type Grant struct {
	User *User
	// ResourcePath scopes the token to a sub-tree of the repository. Empty means unrestricted.
	ResourcePath string
}

// Store looks up and verifies users.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Authenticate verifies a login/password pair within a domain.
	// Returns ErrInvalidCredentials on mismatch or unknown login, ErrUserDisabled for
	// accounts that may not sign in.
	Authenticate(ctx context.Context, login, domainID, password string) (*User, error)

	// UserByID returns a user by ID or ErrUserNotFound.
	UserByID(ctx context.Context, id string) (*User, error)

	// UserByLogin returns a user by login within a domain or ErrUserNotFound.
	UserByLogin(ctx context.Context, login, domainID string) (*User, error)
}

// TokenResolver finds the owner of an API token.
//
// Implementations must be safe for concurrent use.
type TokenResolver interface {
	// ResolveToken returns the grant of the token or ErrTokenNotFound.
	ResolveToken(ctx context.Context, token string) (*Grant, error)
}
