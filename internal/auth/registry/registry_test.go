// Package registry_test provides unit tests for the registry package.
package registry_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/repogate/internal/auth"
	"github.com/vyrodovalexey/repogate/internal/auth/registry"
	"github.com/vyrodovalexey/repogate/internal/execution"
)

// stub is a minimal authenticator distinguishable by pointer.
type stub struct {
	*auth.Module
	n int
}

func countingFactory(counter *atomic.Int32) registry.Factory {
	return func() (auth.Authenticator, error) {
		n := counter.Add(1)
		return &stub{
			Module: auth.NewModule(func(context.Context, auth.Credential) (*auth.Identity, error) {
				return nil, auth.ErrCredentialRejected
			}, auth.KindPassword),
			n: int(n),
		}, nil
	}
}

func TestRegistry_SameContextReturnsSameInstance(t *testing.T) {
	// Arrange
	var built atomic.Int32
	reg := registry.New(zap.NewNop())
	reg.Register(auth.KindPassword, countingFactory(&built))
	id := execution.NewID()

	// Act
	first, err := reg.Resolve(auth.KindPassword, id)
	require.NoError(t, err)
	second, err := reg.Resolve(auth.KindPassword, id)
	require.NoError(t, err)

	// Assert
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Same(t, first[0], second[0])
	assert.Equal(t, int32(1), built.Load())
	assert.Equal(t, 1, reg.Size())
}

func TestRegistry_ConcurrentContextsGetDistinctInstances(t *testing.T) {
	const contexts = 32

	// Arrange
	var built atomic.Int32
	reg := registry.New(zap.NewNop())
	reg.Register(auth.KindPassword, countingFactory(&built))

	results := make([]auth.Authenticator, contexts)
	var wg sync.WaitGroup

	// Act
	for i := range contexts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := execution.NewID()
			got, err := reg.Resolve(auth.KindPassword, id)
			if err == nil && len(got) == 1 {
				again, _ := reg.Resolve(auth.KindPassword, id)
				if len(again) == 1 && again[0] == got[0] {
					results[i] = got[0]
				}
			}
		}(i)
	}
	wg.Wait()

	// Assert
	seen := make(map[auth.Authenticator]bool, contexts)
	for i, a := range results {
		require.NotNil(t, a, "context %d got no stable instance", i)
		assert.False(t, seen[a], "instance shared between contexts")
		seen[a] = true
	}
	assert.Equal(t, int32(contexts), built.Load())
}

func TestRegistry_SameContextConcurrentResolveBuildsOnce(t *testing.T) {
	// Arrange
	var built atomic.Int32
	reg := registry.New(zap.NewNop())
	reg.Register(auth.KindPassword, countingFactory(&built))
	id := execution.NewID()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = reg.Resolve(auth.KindPassword, id)
		}()
	}

	// Act
	wg.Wait()

	// Assert
	assert.Equal(t, int32(1), built.Load())
}

func TestRegistry_RegistrationOrder(t *testing.T) {
	// Arrange
	reg := registry.New(zap.NewNop())
	for i := 1; i <= 3; i++ {
		reg.Register(auth.KindToken, func() (auth.Authenticator, error) {
			return &stub{Module: auth.NewModule(nil, auth.KindToken), n: i}, nil
		})
	}

	// Act
	got, err := reg.Resolve(auth.KindToken, execution.NewID())

	// Assert
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, a := range got {
		assert.Equal(t, i+1, a.(*stub).n)
	}
}

func TestRegistry_UnregisteredKind(t *testing.T) {
	reg := registry.New(zap.NewNop())

	got, err := reg.Resolve(auth.KindSystem, execution.NewID())

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, reg.Size())
}

func TestRegistry_ConstructionFailureIsNotCached(t *testing.T) {
	// Arrange
	factoryErr := errors.New("directory not configured")
	var calls atomic.Int32
	reg := registry.New(zap.NewNop())
	reg.Register(auth.KindPassword, func() (auth.Authenticator, error) {
		if calls.Add(1) == 1 {
			return nil, factoryErr
		}
		return &stub{Module: auth.NewModule(nil, auth.KindPassword)}, nil
	})
	id := execution.NewID()

	// Act
	_, firstErr := reg.Resolve(auth.KindPassword, id)
	got, secondErr := reg.Resolve(auth.KindPassword, id)

	// Assert
	require.ErrorIs(t, firstErr, auth.ErrAuthenticatorConstruction)
	require.ErrorIs(t, firstErr, factoryErr)
	require.NoError(t, secondErr)
	assert.Len(t, got, 1)
}

func TestRegistry_Evict(t *testing.T) {
	// Arrange
	var built atomic.Int32
	reg := registry.New(zap.NewNop())
	reg.Register(auth.KindPassword, countingFactory(&built))
	reg.Register(auth.KindToken, countingFactory(&built))
	id := execution.NewID()
	other := execution.NewID()

	first, err := reg.Resolve(auth.KindPassword, id)
	require.NoError(t, err)
	_, err = reg.Resolve(auth.KindToken, id)
	require.NoError(t, err)
	_, err = reg.Resolve(auth.KindPassword, other)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Size())

	// Act
	reg.Evict(id)
	reg.Evict(id)
	again, err := reg.Resolve(auth.KindPassword, id)

	// Assert
	require.NoError(t, err)
	assert.NotSame(t, first[0], again[0])
	assert.Equal(t, 2, reg.Size())
}

func TestRegistry_Kinds(t *testing.T) {
	reg := registry.New(zap.NewNop())
	reg.Register(auth.KindToken, countingFactory(new(atomic.Int32)))
	reg.Register(auth.KindPassword, countingFactory(new(atomic.Int32)))
	reg.Register(auth.KindToken, countingFactory(new(atomic.Int32)))

	assert.Equal(t, []auth.Kind{auth.KindPassword, auth.KindToken}, reg.Kinds())
}
