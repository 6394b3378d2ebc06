// Package engine is a minimal in-memory content repository engine. It authenticates every
// connection through the dispatcher and keeps no content.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/repogate/internal/auth"
	"github.com/vyrodovalexey/repogate/internal/repository"
)

// ErrNoSuchWorkspace is returned when connecting to an unknown workspace.
var ErrNoSuchWorkspace = errors.New("no such workspace")

// Standard descriptor keys.
const (
	DescRepositoryName       = "jcr.repository.name"
	DescRepositoryVendor     = "jcr.repository.vendor"
	DescRepositoryVersion    = "jcr.repository.version"
	DescSpecificationVersion = "jcr.specification.version"
	DescVersioningSupported  = "option.versioning.supported"
	DescQueryLanguages       = "query.languages"
	DescWorkspaces           = "repogate.workspaces"
)

// Version is the engine version reported by its descriptors.
const Version = "1.0.0"

// Authenticator logs subjects in and out.
type Authenticator interface {
	Login(ctx context.Context, subject *auth.Subject) (*auth.Identity, error)
	Logout(ctx context.Context, subject *auth.Subject) error
}

// Config configures an Engine.
type Config struct {
	Name             string
	Workspaces       []string
	DefaultWorkspace string
}

type descriptor struct {
	values   []repository.Value
	standard bool
}

// Engine is safe for concurrent use.
type Engine struct {
	name             string
	workspaces       []string
	defaultWorkspace string
	descriptors      map[string]descriptor
	auth             Authenticator
	logger           *zap.Logger
}

// New creates an engine authenticating connections with authenticator.
func New(cfg Config, authenticator Authenticator, logger *zap.Logger) (*Engine, error) {
	if len(cfg.Workspaces) == 0 {
		return nil, errors.New("at least one workspace is required")
	}
	def := cfg.DefaultWorkspace
	if def == "" {
		def = cfg.Workspaces[0]
	}
	if !slices.Contains(cfg.Workspaces, def) {
		return nil, fmt.Errorf("default workspace %q is not declared", def)
	}

	e := &Engine{
		name:             cfg.Name,
		workspaces:       slices.Clone(cfg.Workspaces),
		defaultWorkspace: def,
		auth:             authenticator,
		logger:           logger.Named("engine"),
	}
	e.descriptors = e.buildDescriptors()
	return e, nil
}

func (e *Engine) buildDescriptors() map[string]descriptor {
	str := func(s string) repository.Value { return repository.Value{Type: repository.TypeString, Raw: s} }

	workspaces := make([]repository.Value, 0, len(e.workspaces))
	for _, w := range e.workspaces {
		workspaces = append(workspaces, str(w))
	}

	return map[string]descriptor{
		DescRepositoryName:       {values: []repository.Value{str(e.name)}, standard: true},
		DescRepositoryVendor:     {values: []repository.Value{str("repogate")}, standard: true},
		DescRepositoryVersion:    {values: []repository.Value{str(Version)}, standard: true},
		DescSpecificationVersion: {values: []repository.Value{str("2.0")}, standard: true},
		DescVersioningSupported: {
			values:   []repository.Value{{Type: repository.TypeBoolean, Raw: "false"}},
			standard: true,
		},
		DescQueryLanguages: {values: []repository.Value{}, standard: true},
		DescWorkspaces:     {values: workspaces},
	}
}

// DescriptorKeys returns the descriptor keys in lexical order.
func (e *Engine) DescriptorKeys() []string {
	keys := make([]string, 0, len(e.descriptors))
	for k := range e.descriptors {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// IsStandardDescriptor reports whether key is a standard descriptor.
func (e *Engine) IsStandardDescriptor(key string) bool {
	return e.descriptors[key].standard
}

// IsSingleValueDescriptor reports whether key exists and has exactly one value.
func (e *Engine) IsSingleValueDescriptor(key string) bool {
	d, ok := e.descriptors[key]
	return ok && len(d.values) == 1
}

// DescriptorValue returns the value of a single-valued descriptor.
func (e *Engine) DescriptorValue(key string) (repository.Value, bool) {
	if !e.IsSingleValueDescriptor(key) {
		return repository.Value{}, false
	}
	return e.descriptors[key].values[0], true
}

// DescriptorValues returns the values of a descriptor.
func (e *Engine) DescriptorValues(key string) ([]repository.Value, bool) {
	d, ok := e.descriptors[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(d.values), true
}

// Descriptor returns the string form of a single-valued descriptor, or "".
func (e *Engine) Descriptor(key string) string {
	v, _ := e.DescriptorValue(key)
	return v.Raw
}

// Workspaces returns the declared workspaces.
func (e *Engine) Workspaces() []string {
	return slices.Clone(e.workspaces)
}

// Connect authenticates credential and opens a session. An empty workspace selects the
// default one.
func (e *Engine) Connect(ctx context.Context, credential auth.Credential, workspace string) (repository.Session, error) {
	if workspace == "" {
		workspace = e.defaultWorkspace
	}
	if !slices.Contains(e.workspaces, workspace) {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchWorkspace, workspace)
	}

	subject := auth.NewSubject(credential)
	identity, err := e.auth.Login(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("logging in to workspace %s: %w", workspace, err)
	}

	userID := identity.Name
	if token, ok := subject.IdentityToken(); ok {
		userID = token.Name
	}

	e.logger.Debug("session opened",
		zap.String("workspace", workspace),
		zap.String("user_id", userID),
		zap.String("auth_method", identity.AuthMethod.String()),
	)

	return &Session{
		engine:    e,
		subject:   subject,
		identity:  identity,
		userID:    userID,
		workspace: workspace,
	}, nil
}

// Session is a connection to the engine.
type Session struct {
	engine    *Engine
	subject   *auth.Subject
	identity  *auth.Identity
	userID    string
	workspace string

	closeOnce sync.Once
	closeErr  error
}

// UserID returns the name published in the identity token of the subject.
func (s *Session) UserID() string {
	return s.userID
}

// Workspace returns the workspace name.
func (s *Session) Workspace() string {
	return s.workspace
}

// Subject returns the authenticated subject.
func (s *Session) Subject() *auth.Subject {
	return s.subject
}

// Identity returns the identity the session was opened for.
func (s *Session) Identity() *auth.Identity {
	return s.identity
}

// Close logs the subject out. Later calls return the first result.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		if err := s.engine.auth.Logout(ctx, s.subject); err != nil {
			s.closeErr = fmt.Errorf("logging out of workspace %s: %w", s.workspace, err)
			return
		}
		s.engine.logger.Debug("session closed",
			zap.String("workspace", s.workspace),
			zap.String("user_id", s.userID),
		)
	})
	return s.closeErr
}
