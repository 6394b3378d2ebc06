package repository_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vyrodovalexey/repogate/internal/auth"
	"github.com/vyrodovalexey/repogate/internal/auth/dispatch"
	"github.com/vyrodovalexey/repogate/internal/auth/password"
	"github.com/vyrodovalexey/repogate/internal/auth/registry"
	"github.com/vyrodovalexey/repogate/internal/auth/system"
	"github.com/vyrodovalexey/repogate/internal/directory"
	"github.com/vyrodovalexey/repogate/internal/execution"
	"github.com/vyrodovalexey/repogate/internal/repository"
	"github.com/vyrodovalexey/repogate/internal/repository/engine"
	"github.com/vyrodovalexey/repogate/internal/session"
)

// countingAuth counts logins and logouts going through the dispatcher.
type countingAuth struct {
	inner   *dispatch.Dispatcher
	logins  atomic.Int32
	logouts atomic.Int32
}

func (c *countingAuth) Login(ctx context.Context, s *auth.Subject) (*auth.Identity, error) {
	c.logins.Add(1)
	return c.inner.Login(ctx, s)
}

func (c *countingAuth) Logout(ctx context.Context, s *auth.Subject) error {
	c.logouts.Add(1)
	return c.inner.Logout(ctx, s)
}

func newRepository(t *testing.T) (*repository.ContentRepository, *countingAuth) {
	t.Helper()

	store := directory.NewMemoryStore(directory.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, store.AddUser(directory.User{ID: "1", Login: "alice", DomainID: "0", FirstName: "Alice"}, "secret"))

	reg := registry.New(zap.NewNop())
	reg.Register(auth.KindPassword, password.Factory(store, zap.NewNop()))
	reg.Register(auth.KindSystem, system.Factory)
	counter := &countingAuth{inner: dispatch.New(reg, zap.NewNop())}

	e, err := engine.New(engine.Config{Name: "test", Workspaces: []string{"content", "archive"}}, counter, zap.NewNop())
	require.NoError(t, err)
	return repository.NewContentRepository(e, zap.NewNop()), counter
}

func newContext() context.Context {
	return execution.WithID(context.Background(), execution.NewID())
}

var alice = &auth.PasswordCredential{UserID: "alice@domain0", Password: "secret"}

func TestContentRepository_NestedLogins(t *testing.T) {
	// Arrange
	repo, counter := newRepository(t)
	ctx := newContext()

	// Act
	outer, err := repo.Login(ctx, alice, "content")
	require.NoError(t, err)
	middle, err := repo.LoginAnonymous(ctx)
	require.NoError(t, err)
	inner, err := repo.LoginToWorkspace(ctx, "archive")
	require.NoError(t, err)

	// Assert
	assert.Same(t, outer, middle)
	assert.Same(t, outer, inner)
	assert.Equal(t, "Alice", inner.Conn().UserID())
	assert.Equal(t, "content", inner.Conn().Workspace())
	assert.Equal(t, int32(1), counter.logins.Load())

	require.NoError(t, repo.Release(ctx, inner))
	require.NoError(t, repo.Release(ctx, middle))
	assert.Zero(t, counter.logouts.Load())
	require.NoError(t, repo.Release(ctx, outer))
	assert.Equal(t, int32(1), counter.logouts.Load())
	assert.Zero(t, repo.OpenSessions())
}

func TestContentRepository_AnonymousWithoutSession(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := newContext()

	_, err := repo.LoginAnonymous(ctx)

	require.ErrorIs(t, err, auth.ErrNoCredentials)
	_, ok := repo.Current(ctx)
	assert.False(t, ok)
}

func TestContentRepository_FailedLoginLeavesNoHandle(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := newContext()

	_, err := repo.LoginWithCredentials(ctx, &auth.PasswordCredential{UserID: "alice@domain0", Password: "nope"})

	require.ErrorIs(t, err, auth.ErrAuthenticationFailed)
	assert.Zero(t, repo.OpenSessions())
}

func TestContentRepository_LoginAsSystem(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := newContext()

	h, err := repo.LoginAsSystem(ctx, "archive")
	require.NoError(t, err)

	assert.Equal(t, "System", h.Conn().UserID())
	assert.Equal(t, "archive", h.Conn().Workspace())
	require.NoError(t, h.Close(ctx))
}

func TestContentRepository_ContextsGetSeparateSessions(t *testing.T) {
	repo, counter := newRepository(t)
	first, second := newContext(), newContext()

	a, err := repo.Login(first, alice, "")
	require.NoError(t, err)
	b, err := repo.LoginAsSystem(second, "")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, repo.OpenSessions())
	assert.Equal(t, int32(2), counter.logins.Load())
	require.ErrorIs(t, repo.Release(first, b), session.ErrInvalidRelease)
	require.NoError(t, repo.Release(first, a))
	require.NoError(t, repo.Release(second, b))
}

func TestContentRepository_DescriptorsPassThrough(t *testing.T) {
	repo, counter := newRepository(t)

	assert.Equal(t, "test", repo.Descriptor(engine.DescRepositoryName))
	assert.True(t, repo.IsStandardDescriptor(engine.DescRepositoryName))
	assert.True(t, repo.IsSingleValueDescriptor(engine.DescRepositoryVendor))
	assert.NotEmpty(t, repo.DescriptorKeys())
	v, ok := repo.DescriptorValue(engine.DescRepositoryVersion)
	require.True(t, ok)
	assert.Equal(t, engine.Version, v.Raw)
	values, ok := repo.DescriptorValues(engine.DescWorkspaces)
	require.True(t, ok)
	assert.Len(t, values, 2)
	assert.Zero(t, counter.logins.Load())
}
