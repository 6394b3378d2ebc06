// Package execution identifies the unit of reentrancy shared by the session manager and the
// authenticator registry.
//
// An execution context is one exclusive, non-interleaved flow of work: typically one request
// handled by one goroutine. Components never infer it from the goroutine; callers carry it
// explicitly in a context.Context.
package execution

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNoExecutionContext is returned when a context.Context carries no execution ID.
var ErrNoExecutionContext = errors.New("no execution context")

// ID is an opaque execution context key.
type ID string

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey struct{}

// idKey is the context key for storing the execution ID.
var idKey = contextKey{}

// NewID returns a fresh, random execution ID.
func NewID() ID {
	return ID(uuid.NewString())
}

// String returns the ID as a string.
func (id ID) String() string {
	return string(id)
}

// WithID returns a new context bound to the given execution ID.
func WithID(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, idKey, id)
}

// FromContext retrieves the execution ID from the context.
// Returns an empty ID and false if none is present.
func FromContext(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(idKey).(ID)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// MustFromContext is like FromContext but returns ErrNoExecutionContext when absent.
func MustFromContext(ctx context.Context) (ID, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return "", ErrNoExecutionContext
	}
	return id, nil
}

// Ensure returns ctx unchanged when it already carries an execution ID, otherwise a child
// context bound to a new one.
func Ensure(ctx context.Context) (context.Context, ID) {
	if id, ok := FromContext(ctx); ok {
		return ctx, id
	}
	id := NewID()
	return WithID(ctx, id), id
}
