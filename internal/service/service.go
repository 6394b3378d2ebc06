// Package service exposes the repository over gRPC.
package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/vyrodovalexey/repogate/internal/auth"
	"github.com/vyrodovalexey/repogate/internal/execution"
	"github.com/vyrodovalexey/repogate/internal/logger"
	"github.com/vyrodovalexey/repogate/internal/repository"
	"github.com/vyrodovalexey/repogate/internal/repository/engine"
)

// Repository is the part of the repository facade the service uses.
type Repository interface {
	DescriptorKeys() []string
	IsSingleValueDescriptor(key string) bool
	DescriptorValues(key string) ([]repository.Value, bool)
	Login(ctx context.Context, credential auth.Credential, workspace string) (*repository.Handle, error)
	Release(ctx context.Context, h *repository.Handle) error
}

// Evictor drops the per-execution state of authenticators once a request is done.
type Evictor interface {
	Evict(id execution.ID)
}

// Service implements RepositoryServer. Each WhoAmI call runs in its own execution context.
type Service struct {
	repo    Repository
	evictor Evictor
	logger  *zap.Logger
}

var _ RepositoryServer = (*Service)(nil)

// New creates a new Service.
func New(repo Repository, evictor Evictor, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		evictor: evictor,
		logger:  logger.Named("repository_service"),
	}
}

// ListDescriptors returns every descriptor. Multi-valued descriptors are lists.
func (s *Service) ListDescriptors(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	fields := make(map[string]any)
	for _, key := range s.repo.DescriptorKeys() {
		values, _ := s.repo.DescriptorValues(key)
		if s.repo.IsSingleValueDescriptor(key) {
			fields[key] = typed(values[0])
			continue
		}
		list := make([]any, 0, len(values))
		for _, v := range values {
			list = append(list, typed(v))
		}
		fields[key] = list
	}

	out, err := structpb.NewStruct(fields)
	if err != nil {
		s.logger.Error("encoding descriptors", zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

// GetDescriptor returns the string form of a descriptor. Multi-valued descriptors are
// joined with commas.
func (s *Service) GetDescriptor(_ context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	key := req.GetValue()
	if key == "" {
		return nil, status.Error(codes.InvalidArgument, "descriptor key is required")
	}

	values, ok := s.repo.DescriptorValues(key)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unknown descriptor %q", key)
	}

	raw := make([]string, 0, len(values))
	for _, v := range values {
		raw = append(raw, v.Raw)
	}
	return wrapperspb.String(strings.Join(raw, ",")), nil
}

// WhoAmI logs in with the credentials in the request metadata, describes the session and
// releases it.
func (s *Service) WhoAmI(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	credential, err := credentialFromMetadata(md)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	id := execution.NewID()
	ctx = execution.WithID(ctx, id)
	defer s.evictor.Evict(id)

	h, err := s.repo.Login(ctx, credential, req.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	defer func() {
		if relErr := s.repo.Release(ctx, h); relErr != nil {
			logger.ForContext(ctx, s.logger).Warn("releasing session", zap.Error(relErr))
		}
	}()

	conn := h.Conn()
	fields := map[string]any{
		"user_id":   conn.UserID(),
		"workspace": conn.Workspace(),
	}
	if principals := conn.Subject().Principals(); len(principals) > 0 {
		p := principals[0]
		fields["principal"] = p.Name
		fields["auth_method"] = p.AuthMethod.String()
		if len(p.Claims) > 0 {
			claims := make(map[string]any, len(p.Claims))
			for k, v := range p.Claims {
				claims[k] = v
			}
			fields["claims"] = claims
		}
	}

	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return out, nil
}

// toStatus maps a domain error to a gRPC status. Malformed credential and internal errors are
// logged and reported with a fixed message.
func (s *Service) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, auth.ErrMalformedCredential):
		logger.ForContext(ctx, s.logger).Debug("malformed credential", zap.Error(err))
		return status.Error(codes.InvalidArgument, auth.ErrMalformedCredential.Error())
	case errors.Is(err, auth.ErrNoCredentials),
		errors.Is(err, auth.ErrAuthenticationFailed),
		errors.Is(err, auth.ErrUnsupportedCredentialKind):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, engine.ErrNoSuchWorkspace):
		return status.Error(codes.NotFound, err.Error())
	default:
		logger.ForContext(ctx, s.logger).Error("request failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

// typed converts a descriptor value to its natural Go type for structpb.
func typed(v repository.Value) any {
	switch v.Type {
	case repository.TypeBoolean:
		if b, err := strconv.ParseBool(v.Raw); err == nil {
			return b
		}
	case repository.TypeLong:
		if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return n
		}
	}
	return v.Raw
}
