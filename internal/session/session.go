// Package session shares one repository connection between every caller of an execution
// context. The connection is opened by the first caller and closed when the last one
// releases it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/repogate/internal/execution"
	"github.com/vyrodovalexey/repogate/internal/logger"
	"github.com/vyrodovalexey/repogate/internal/metrics"
	"github.com/vyrodovalexey/repogate/internal/telemetry"
)

// ErrInvalidRelease is returned when a handle is released by a context that does not own it
// or after it was fully released.
var ErrInvalidRelease = errors.New("invalid handle release")

// Connection is a physical connection managed by a Manager.
type Connection interface {
	Close(ctx context.Context) error
}

// Connector opens a physical connection.
type Connector[C Connection] func(ctx context.Context) (C, error)

// Handle is a reference-counted view of the connection of one execution context.
type Handle[C Connection] struct {
	conn    C
	owner   execution.ID
	refs    int
	manager *Manager[C]
}

// Conn returns the underlying connection.
func (h *Handle[C]) Conn() C {
	return h.conn
}

// Owner returns the execution context owning the handle.
func (h *Handle[C]) Owner() execution.ID {
	return h.owner
}

// Refs returns the number of outstanding opens.
func (h *Handle[C]) Refs() int {
	h.manager.mu.Lock()
	defer h.manager.mu.Unlock()
	return h.refs
}

// Close releases the handle. It is the same as Manager.Release.
func (h *Handle[C]) Close(ctx context.Context) error {
	return h.manager.Release(ctx, h)
}

// Manager is safe for concurrent use.
type Manager[C Connection] struct {
	mu      sync.Mutex
	handles map[execution.ID]*Handle[C]
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewManager creates an empty manager.
func NewManager[C Connection](logger *zap.Logger) *Manager[C] {
	return &Manager[C]{
		handles: make(map[execution.ID]*Handle[C]),
		logger:  logger.Named("session_manager"),
		tracer:  telemetry.Tracer("session"),
	}
}

// Open returns the handle of the execution context of ctx. An existing handle is reused and
// its count incremented without calling connect. Otherwise connect is called and its
// connection recorded with a count of one; a connect error is returned unchanged and nothing
// is recorded.
func (m *Manager[C]) Open(ctx context.Context, connect Connector[C]) (*Handle[C], error) {
	id, err := execution.MustFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if h, refs := m.reuse(id); h != nil {
		metrics.SessionReentrantOpensTotal.Inc()
		m.logger.Debug("reusing connection",
			logger.ExecutionField(id),
			zap.Int("refs", refs),
		)
		return h, nil
	}

	ctx, span := m.tracer.Start(ctx, "session.Connect",
		trace.WithAttributes(attribute.String("execution.id", id.String())))
	defer span.End()

	// The context is exclusive, so nobody can register a handle for id while connecting.
	conn, err := connect(ctx)
	if err != nil {
		metrics.SessionConnectsTotal.WithLabelValues("failure").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	h := &Handle[C]{conn: conn, owner: id, refs: 1, manager: m}

	m.mu.Lock()
	m.handles[id] = h
	m.mu.Unlock()

	metrics.SessionConnectsTotal.WithLabelValues("success").Inc()
	metrics.SessionOpenHandles.Inc()
	m.logger.Debug("connection opened", logger.ExecutionField(id))
	return h, nil
}

// Release decrements the count of h and closes its connection when it reaches zero. The
// close error, if any, is returned after the handle has been removed.
func (m *Manager[C]) Release(ctx context.Context, h *Handle[C]) error {
	id, err := execution.MustFromContext(ctx)
	if err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("%w: nil handle", ErrInvalidRelease)
	}

	m.mu.Lock()
	current, ok := m.handles[id]
	if !ok || current != h || h.refs <= 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: handle not owned by execution context %s", ErrInvalidRelease, id)
	}
	h.refs--
	last := h.refs == 0
	if last {
		delete(m.handles, id)
	}
	m.mu.Unlock()

	if !last {
		return nil
	}

	metrics.SessionOpenHandles.Dec()
	metrics.SessionDisconnectsTotal.Inc()

	_, span := m.tracer.Start(ctx, "session.Disconnect",
		trace.WithAttributes(attribute.String("execution.id", id.String())))
	defer span.End()

	if err := h.conn.Close(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.Warn("closing connection failed", logger.ExecutionField(id), zap.Error(err))
		return fmt.Errorf("closing connection: %w", err)
	}

	m.logger.Debug("connection closed", logger.ExecutionField(id))
	return nil
}

// Current returns the live handle of the execution context of ctx.
func (m *Manager[C]) Current(ctx context.Context) (*Handle[C], bool) {
	id, ok := execution.FromContext(ctx)
	if !ok {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[id]
	return h, ok
}

// Len returns the number of live handles.
func (m *Manager[C]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

func (m *Manager[C]) reuse(id execution.ID) (*Handle[C], int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.handles[id]
	if !ok {
		return nil, 0
	}
	h.refs++
	return h, h.refs
}
