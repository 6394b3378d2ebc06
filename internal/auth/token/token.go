// Package token authenticates opaque API tokens issued by the directory.
package token

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/repogate/internal/auth"
	"github.com/vyrodovalexey/repogate/internal/directory"
)

// Authenticator resolves token credentials to their owner.
type Authenticator struct {
	*auth.Module
	resolver directory.TokenResolver
	logger   *zap.Logger
}

// New creates a token authenticator backed by resolver.
func New(resolver directory.TokenResolver, logger *zap.Logger) *Authenticator {
	a := &Authenticator{
		resolver: resolver,
		logger:   logger.Named("token_authenticator"),
	}
	a.Module = auth.NewModule(a.verify, auth.KindToken)
	return a
}

// Factory returns a registry factory creating token authenticators.
func Factory(resolver directory.TokenResolver, logger *zap.Logger) func() (auth.Authenticator, error) {
	return func() (auth.Authenticator, error) {
		if resolver == nil {
			return nil, errors.New("token authenticator requires a token resolver")
		}
		return New(resolver, logger), nil
	}
}

func (a *Authenticator) verify(ctx context.Context, credential auth.Credential) (*auth.Identity, error) {
	cred, ok := credential.(*auth.TokenCredential)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected credential type %T", auth.ErrCredentialRejected, credential)
	}
	if cred.Token == "" {
		return nil, fmt.Errorf("%w: empty token", auth.ErrMalformedCredential)
	}

	grant, err := a.resolver.ResolveToken(ctx, cred.Token)
	if errors.Is(err, directory.ErrTokenNotFound) {
		return nil, fmt.Errorf("%w: %w", auth.ErrCredentialRejected, err)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving token: %w", err)
	}
	if !grant.User.CanSignIn() {
		return nil, fmt.Errorf("%w: %w", auth.ErrCredentialRejected, directory.ErrUserDisabled)
	}

	effective, ok := scope(grant.ResourcePath, cred.Attribute(auth.AttrResourcePath))
	if !ok {
		a.logger.Debug("token used outside of its grant",
			zap.String("user_id", grant.User.ID),
			zap.String("grant", grant.ResourcePath),
		)
		return nil, fmt.Errorf("%w: resource path outside of token grant", auth.ErrCredentialRejected)
	}

	identity := auth.NewIdentity(grant.User, auth.KindToken)
	if effective != "" {
		identity.WithClaim(auth.AttrResourcePath, effective)
	}
	return identity, nil
}

// scope returns the path the caller may access given the token grant and the requested path.
// An empty grant is unrestricted.
func scope(grant, requested string) (string, bool) {
	if requested == "" {
		return cleanPath(grant), true
	}
	requested = cleanPath(requested)
	if grant == "" {
		return requested, true
	}
	grant = cleanPath(grant)
	if grant == "/" || requested == grant || strings.HasPrefix(requested, grant+"/") {
		return requested, true
	}
	return "", false
}

func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean("/" + p)
}
