package oidc

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/repogate/internal/auth"
	"github.com/vyrodovalexey/repogate/internal/directory"
)

// Authenticator verifies token credentials holding OIDC ID tokens. The user is the directory
// account whose login matches the configured username claim.
type Authenticator struct {
	*auth.Module
	verifier TokenVerifier
	users    directory.Store
	cfg      Config
	logger   *zap.Logger
}

// New creates an OIDC authenticator.
func New(verifier TokenVerifier, users directory.Store, cfg Config, logger *zap.Logger) *Authenticator {
	a := &Authenticator{
		verifier: verifier,
		users:    users,
		cfg:      cfg,
		logger:   logger.Named("oidc_authenticator"),
	}
	a.Module = auth.NewModule(a.verify, auth.KindToken)
	return a
}

// Factory returns a registry factory creating OIDC authenticators.
func Factory(verifier TokenVerifier, users directory.Store, cfg Config, logger *zap.Logger) func() (auth.Authenticator, error) {
	return func() (auth.Authenticator, error) {
		if verifier == nil || users == nil {
			return nil, errors.New("oidc authenticator requires a verifier and a directory store")
		}
		return New(verifier, users, cfg, logger), nil
	}
}

func (a *Authenticator) verify(ctx context.Context, credential auth.Credential) (*auth.Identity, error) {
	cred, ok := credential.(*auth.TokenCredential)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected credential type %T", auth.ErrCredentialRejected, credential)
	}

	idToken, err := a.verifier.Verify(ctx, cred.Token)
	if err != nil {
		// Opaque directory tokens reach this authenticator too, so failures are plain rejections.
		a.logger.Debug("token verification failed", zap.Error(err))
		return nil, fmt.Errorf("%w: token verification failed", auth.ErrCredentialRejected)
	}

	var raw map[string]any
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("%w: extracting token claims: %w", auth.ErrCredentialRejected, err)
	}
	claims := stringClaims(raw)

	if err := ValidateRequiredClaims(claims, a.cfg.RequiredClaims); err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrCredentialRejected, err)
	}

	login := claims[a.cfg.usernameClaim()]
	if login == "" {
		return nil, fmt.Errorf("%w: claim %q missing", auth.ErrCredentialRejected, a.cfg.usernameClaim())
	}

	user, err := a.users.UserByLogin(ctx, login, a.cfg.DomainID)
	if errors.Is(err, directory.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %w", auth.ErrCredentialRejected, err)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up oidc user %s: %w", login, err)
	}
	if !user.CanSignIn() {
		return nil, fmt.Errorf("%w: %w", auth.ErrCredentialRejected, directory.ErrUserDisabled)
	}

	identity := auth.NewIdentity(user, auth.KindToken)
	identity.Claims = claims
	identity.WithClaim("iss", idToken.Issuer)
	if p := cred.Attribute(auth.AttrResourcePath); p != "" {
		identity.WithClaim(auth.AttrResourcePath, p)
	}
	return identity, nil
}
