package repository

import (
	"context"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/repogate/internal/auth"
	"github.com/vyrodovalexey/repogate/internal/session"
)

// Handle is a shared session of an execution context. Close it once per login.
type Handle = session.Handle[Session]

// ContentRepository wraps a Repository so that nested logins within one execution context
// share a single session.
type ContentRepository struct {
	repo     Repository
	sessions *session.Manager[Session]
	logger   *zap.Logger
}

// NewContentRepository wraps repo.
func NewContentRepository(repo Repository, logger *zap.Logger) *ContentRepository {
	return &ContentRepository{
		repo:     repo,
		sessions: session.NewManager[Session](logger),
		logger:   logger.Named("content_repository"),
	}
}

// DescriptorKeys delegates to the wrapped engine.
func (r *ContentRepository) DescriptorKeys() []string {
	return r.repo.DescriptorKeys()
}

// IsStandardDescriptor delegates to the wrapped engine.
func (r *ContentRepository) IsStandardDescriptor(key string) bool {
	return r.repo.IsStandardDescriptor(key)
}

// IsSingleValueDescriptor delegates to the wrapped engine.
func (r *ContentRepository) IsSingleValueDescriptor(key string) bool {
	return r.repo.IsSingleValueDescriptor(key)
}

// DescriptorValue delegates to the wrapped engine.
func (r *ContentRepository) DescriptorValue(key string) (Value, bool) {
	return r.repo.DescriptorValue(key)
}

// DescriptorValues delegates to the wrapped engine.
func (r *ContentRepository) DescriptorValues(key string) ([]Value, bool) {
	return r.repo.DescriptorValues(key)
}

// Descriptor delegates to the wrapped engine.
func (r *ContentRepository) Descriptor(key string) string {
	return r.repo.Descriptor(key)
}

// Login opens, or joins, the session of the execution context of ctx. Credentials and
// workspace are only used when the context has no session yet.
func (r *ContentRepository) Login(ctx context.Context, credential auth.Credential, workspace string) (*Handle, error) {
	return r.sessions.Open(ctx, func(ctx context.Context) (Session, error) {
		return r.repo.Connect(ctx, credential, workspace)
	})
}

// LoginWithCredentials logs in to the default workspace.
func (r *ContentRepository) LoginWithCredentials(ctx context.Context, credential auth.Credential) (*Handle, error) {
	return r.Login(ctx, credential, "")
}

// LoginToWorkspace joins the session of the execution context without presenting
// credentials.
func (r *ContentRepository) LoginToWorkspace(ctx context.Context, workspace string) (*Handle, error) {
	return r.Login(ctx, nil, workspace)
}

// LoginAnonymous joins the session of the execution context on the default workspace
// without presenting credentials.
func (r *ContentRepository) LoginAnonymous(ctx context.Context) (*Handle, error) {
	return r.Login(ctx, nil, "")
}

// LoginAsSystem opens a session for the system user, used by privileged internal work.
func (r *ContentRepository) LoginAsSystem(ctx context.Context, workspace string) (*Handle, error) {
	return r.Login(ctx, &auth.SystemCredential{}, workspace)
}

// Release gives back a handle obtained from one of the login methods.
func (r *ContentRepository) Release(ctx context.Context, h *Handle) error {
	return r.sessions.Release(ctx, h)
}

// Current returns the session handle of the execution context of ctx, if any.
func (r *ContentRepository) Current(ctx context.Context) (*Handle, bool) {
	return r.sessions.Current(ctx)
}

// OpenSessions returns the number of live sessions.
func (r *ContentRepository) OpenSessions() int {
	return r.sessions.Len()
}
