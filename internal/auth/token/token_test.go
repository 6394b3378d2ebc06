package token

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/repogate/internal/auth"
	"github.com/vyrodovalexey/repogate/internal/directory"
)

// resolverFunc adapts a function to directory.TokenResolver.
type resolverFunc func(ctx context.Context, token string) (*directory.Grant, error)

func (f resolverFunc) ResolveToken(ctx context.Context, token string) (*directory.Grant, error) {
	return f(ctx, token)
}

var alice = &directory.User{ID: "1", Login: "alice", DomainID: "0"}

func grants(path string) resolverFunc {
	return func(_ context.Context, token string) (*directory.Grant, error) {
		switch token {
		case "tok-alice":
			return &directory.Grant{User: alice, ResourcePath: path}, nil
		case "tok-blocked":
			return &directory.Grant{User: &directory.User{ID: "2", State: directory.StateBlocked}}, nil
		case "tok-broken":
			return nil, errors.New("vault sealed")
		default:
			return nil, directory.ErrTokenNotFound
		}
	}
}

func TestAuthenticator_Login(t *testing.T) {
	tests := []struct {
		name        string
		grant       string
		token       string
		requested   string
		wantVerdict auth.Verdict
		wantPath    string
		wantErr     error
	}{
		{name: "unrestricted token", token: "tok-alice", wantVerdict: auth.Accepted},
		{name: "scoped token", grant: "/attachments", token: "tok-alice", wantVerdict: auth.Accepted, wantPath: "/attachments"},
		{
			name:        "request inside grant",
			grant:       "/attachments",
			token:       "tok-alice",
			requested:   "/attachments/kmelia/42",
			wantVerdict: auth.Accepted,
			wantPath:    "/attachments/kmelia/42",
		},
		{name: "request outside grant", grant: "/attachments", token: "tok-alice", requested: "/versions", wantVerdict: auth.Rejected},
		{name: "sibling prefix", grant: "/attachments", token: "tok-alice", requested: "/attachments2", wantVerdict: auth.Rejected},
		{name: "dot dot escape", grant: "/attachments", token: "tok-alice", requested: "/attachments/../versions", wantVerdict: auth.Rejected},
		{name: "unknown token", token: "tok-unknown", wantVerdict: auth.Rejected},
		{name: "blocked owner", token: "tok-blocked", wantVerdict: auth.Rejected},
		{name: "empty token", token: "", wantErr: auth.ErrMalformedCredential},
		{name: "backend failure", token: "tok-broken", wantErr: errors.New("vault sealed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			a := New(grants(tt.grant), zap.NewNop())
			cred := &auth.TokenCredential{Token: tt.token}
			if tt.requested != "" {
				cred.WithAttribute(auth.AttrResourcePath, tt.requested)
			}
			a.Initialize(auth.NewSubject(cred), cred)

			// Act
			outcome, err := a.Login(context.Background())

			// Assert
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantVerdict, outcome.Verdict)
			if tt.wantVerdict == auth.Accepted {
				assert.Equal(t, "1", outcome.Identity.User.ID)
				assert.Equal(t, tt.wantPath, outcome.Identity.Claims[auth.AttrResourcePath])
			}
		})
	}
}

func TestScope(t *testing.T) {
	tests := []struct {
		grant, requested string
		want             string
		ok               bool
	}{
		{"", "", "", true},
		{"", "docs", "/docs", true},
		{"/", "/anything", "/anything", true},
		{"/a/", "", "/a", true},
		{"/a", "/a", "/a", true},
		{"/a", "/a/b/", "/a/b", true},
		{"/a", "/ab", "", false},
	}

	for _, tt := range tests {
		got, ok := scope(tt.grant, tt.requested)
		assert.Equal(t, tt.ok, ok, "scope(%q, %q)", tt.grant, tt.requested)
		assert.Equal(t, tt.want, got, "scope(%q, %q)", tt.grant, tt.requested)
	}
}

func TestFactory_RequiresResolver(t *testing.T) {
	_, err := Factory(nil, zap.NewNop())()
	require.Error(t, err)

	a, err := Factory(grants(""), zap.NewNop())()
	require.NoError(t, err)
	assert.Equal(t, []auth.Kind{auth.KindToken}, a.Kinds())
}
