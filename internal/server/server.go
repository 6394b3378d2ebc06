// Package server provides the gRPC server implementation with lifecycle management.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vyrodovalexey/repogate/internal/metrics"
	"github.com/vyrodovalexey/repogate/internal/service"
)

// ErrShutdownTimeout is returned when in-flight calls outlive the shutdown timeout.
var ErrShutdownTimeout = errors.New("graceful shutdown timed out")

// Server represents the gRPC server with lifecycle management.
type Server struct {
	grpcServer      *grpc.Server
	healthServer    *health.Server
	logger          *zap.Logger
	address         string
	shutdownTimeout time.Duration
}

// Config holds the server configuration.
type Config struct {
	Address          string
	ShutdownTimeout  time.Duration
	EnableReflection bool
	// TLS secures the listener when set.
	TLS *tls.Config
}

// NewServer creates a gRPC server exposing the repository service and the health service.
// Calls are traced by otelgrpc and counted by the Prometheus interceptors.
func NewServer(cfg Config, repo service.RepositoryServer, logger *zap.Logger) *Server {
	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(metrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(metrics.StreamServerInterceptor()),
	}
	if cfg.TLS != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(cfg.TLS)))
	}

	grpcServer := grpc.NewServer(opts...)
	healthServer := health.NewServer()

	service.RegisterRepositoryServer(grpcServer, repo)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	if cfg.EnableReflection {
		reflection.Register(grpcServer)
	}

	return &Server{
		grpcServer:      grpcServer,
		healthServer:    healthServer,
		logger:          logger.Named("grpc_server"),
		address:         cfg.Address,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Start listens on the configured address and serves until ctx is cancelled or the server
// fails.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled or the server fails.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.logger.Info("starting gRPC server", zap.String("address", listener.Addr().String()))
	s.setServing(healthpb.HealthCheckResponse_SERVING)

	errCh := make(chan error, 1)
	go func() {
		if err := s.grpcServer.Serve(listener); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("received shutdown signal")
		return s.gracefulShutdown()
	case err := <-errCh:
		return err
	}
}

func (s *Server) setServing(st healthpb.HealthCheckResponse_ServingStatus) {
	s.healthServer.SetServingStatus("", st)
	s.healthServer.SetServingStatus(service.ServiceName, st)
}

// gracefulShutdown drains in-flight calls, forcing a stop after the shutdown timeout.
func (s *Server) gracefulShutdown() error {
	s.logger.Info("initiating graceful shutdown", zap.Duration("timeout", s.shutdownTimeout))
	s.setServing(healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		s.logger.Warn("graceful shutdown timed out, forcing stop")
		s.grpcServer.Stop()
		return ErrShutdownTimeout
	}
}

// Stop immediately stops the server.
func (s *Server) Stop() {
	s.logger.Info("stopping gRPC server immediately")
	s.grpcServer.Stop()
}
