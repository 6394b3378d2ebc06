// Package password authenticates <login>@domain<id> and password pairs against the directory.
package password

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/repogate/internal/auth"
	"github.com/vyrodovalexey/repogate/internal/directory"
)

// Authenticator verifies password credentials. Create one per execution context with Factory.
type Authenticator struct {
	*auth.Module
	store  directory.Store
	logger *zap.Logger
}

// New creates a password authenticator backed by store.
func New(store directory.Store, logger *zap.Logger) *Authenticator {
	a := &Authenticator{
		store:  store,
		logger: logger.Named("password_authenticator"),
	}
	a.Module = auth.NewModule(a.verify, auth.KindPassword)
	return a
}

// Factory returns a registry factory creating password authenticators.
func Factory(store directory.Store, logger *zap.Logger) func() (auth.Authenticator, error) {
	return func() (auth.Authenticator, error) {
		if store == nil {
			return nil, errors.New("password authenticator requires a directory store")
		}
		return New(store, logger), nil
	}
}

func (a *Authenticator) verify(ctx context.Context, credential auth.Credential) (*auth.Identity, error) {
	cred, ok := credential.(*auth.PasswordCredential)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected credential type %T", auth.ErrCredentialRejected, credential)
	}

	login, domainID, err := auth.ParseUserID(cred.UserID)
	if err != nil {
		return nil, err
	}

	user, err := a.store.Authenticate(ctx, login, domainID, cred.Password)
	switch {
	case errors.Is(err, directory.ErrInvalidCredentials), errors.Is(err, directory.ErrUserDisabled):
		a.logger.Debug("password rejected",
			zap.String("login", login),
			zap.String("domain_id", domainID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", auth.ErrCredentialRejected, err)
	case err != nil:
		return nil, fmt.Errorf("authenticating %s in domain %s: %w", login, domainID, err)
	}

	return auth.NewIdentity(user, auth.KindPassword), nil
}
