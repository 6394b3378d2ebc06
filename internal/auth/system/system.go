// Package system authenticates the system credential used for privileged internal operations.
package system

import (
	"context"

	"github.com/vyrodovalexey/repogate/internal/auth"
	"github.com/vyrodovalexey/repogate/internal/directory"
)

// Authenticator maps the system credential to the system user. It consults no backend.
type Authenticator struct {
	*auth.Module
}

// New creates a system authenticator.
func New() *Authenticator {
	return &Authenticator{
		Module: auth.NewModule(func(context.Context, auth.Credential) (*auth.Identity, error) {
			return auth.NewIdentity(directory.SystemUser(), auth.KindSystem), nil
		}, auth.KindSystem),
	}
}

// Factory creates system authenticators for the registry.
func Factory() (auth.Authenticator, error) {
	return New(), nil
}
