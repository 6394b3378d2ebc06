// Package registry maps credential kinds to authenticator factories and hands out
// authenticator instances scoped to an execution context.
package registry

import (
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/repogate/internal/auth"
	"github.com/vyrodovalexey/repogate/internal/execution"
	"github.com/vyrodovalexey/repogate/internal/metrics"
)

// Factory builds a fresh authenticator instance.
type Factory func() (auth.Authenticator, error)

// slotKey identifies the instances of one kind within one execution context.
type slotKey struct {
	id   execution.ID
	kind auth.Kind
}

// slot holds the instances of one (execution context, kind) pair. Its mutex serializes
// construction so that a pair is never built twice.
type slot struct {
	mu        sync.Mutex
	instances []auth.Authenticator
	ready     bool
}

// Registry is safe for concurrent use. Factories must be registered before the first Resolve.
type Registry struct {
	factoriesMu sync.RWMutex
	factories   map[auth.Kind][]Factory

	slotsMu  sync.Mutex
	slots    map[slotKey]*slot
	contexts map[execution.ID]int

	logger *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		factories: make(map[auth.Kind][]Factory),
		slots:     make(map[slotKey]*slot),
		contexts:  make(map[execution.ID]int),
		logger:    logger.Named("auth_registry"),
	}
}

// Register appends factory to the list of kind. Registration order is trial order.
func (r *Registry) Register(kind auth.Kind, factory Factory) {
	r.factoriesMu.Lock()
	defer r.factoriesMu.Unlock()

	r.factories[kind] = append(r.factories[kind], factory)
	r.logger.Debug("authenticator registered",
		zap.String("kind", kind.String()),
		zap.Int("position", len(r.factories[kind])),
	)
}

// Kinds returns the registered kinds in lexical order.
func (r *Registry) Kinds() []auth.Kind {
	r.factoriesMu.RLock()
	defer r.factoriesMu.RUnlock()

	kinds := make([]auth.Kind, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Resolve returns the authenticators of kind for the execution context id, in registration
// order. The first call of a context builds them, later calls of the same context return the
// same instances. An unregistered kind yields an empty slice.
func (r *Registry) Resolve(kind auth.Kind, id execution.ID) ([]auth.Authenticator, error) {
	r.factoriesMu.RLock()
	factories := slices.Clone(r.factories[kind])
	r.factoriesMu.RUnlock()

	if len(factories) == 0 {
		return nil, nil
	}

	s := r.slot(slotKey{id: id, kind: kind})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return slices.Clone(s.instances), nil
	}

	instances := make([]auth.Authenticator, 0, len(factories))
	for i, factory := range factories {
		a, err := factory()
		if err != nil {
			r.logger.Error("authenticator construction failed",
				zap.String("kind", kind.String()),
				zap.Int("position", i+1),
				zap.Error(err),
			)
			return nil, fmt.Errorf("%w: %s authenticator #%d: %w", auth.ErrAuthenticatorConstruction, kind, i+1, err)
		}
		instances = append(instances, a)
	}

	s.instances = instances
	s.ready = true
	metrics.RegistryInstancesCreatedTotal.WithLabelValues(kind.String()).Add(float64(len(instances)))

	return slices.Clone(instances), nil
}

// Evict drops every instance cached for the execution context id.
func (r *Registry) Evict(id execution.ID) {
	r.slotsMu.Lock()
	defer r.slotsMu.Unlock()

	if _, ok := r.contexts[id]; !ok {
		return
	}
	for key := range r.slots {
		if key.id == id {
			delete(r.slots, key)
		}
	}
	delete(r.contexts, id)
	metrics.RegistryContexts.Dec()
}

// Size returns the number of execution contexts holding slots.
func (r *Registry) Size() int {
	r.slotsMu.Lock()
	defer r.slotsMu.Unlock()
	return len(r.contexts)
}

// slot returns the slot of key, creating it under the global lock.
func (r *Registry) slot(key slotKey) *slot {
	r.slotsMu.Lock()
	defer r.slotsMu.Unlock()

	s, ok := r.slots[key]
	if !ok {
		s = &slot{}
		r.slots[key] = s
		if r.contexts[key.id] == 0 {
			metrics.RegistryContexts.Inc()
		}
		r.contexts[key.id]++
	}
	return s
}
