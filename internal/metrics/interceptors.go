package metrics

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// RPC type label values.
const (
	typeUnary        = "unary"
	typeClientStream = "client_stream"
	typeServerStream = "server_stream"
	typeBidiStream   = "bidi_stream"
)

// splitMethodName splits "/package.service/method" into its service and method parts.
func splitMethodName(fullMethod string) (serviceName string, methodName string) {
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	pos := strings.LastIndex(fullMethod, "/")
	if pos < 0 {
		return "unknown", fullMethod
	}
	return fullMethod[:pos], fullMethod[pos+1:]
}

func streamType(info *grpc.StreamServerInfo) string {
	switch {
	case info.IsClientStream && info.IsServerStream:
		return typeBidiStream
	case info.IsClientStream:
		return typeClientStream
	default:
		return typeServerStream
	}
}

// observe records the start of a call and returns a func that records its completion.
func observe(rpcType, fullMethod string) func(err error) {
	service, method := splitMethodName(fullMethod)
	ServerStartedTotal.WithLabelValues(rpcType, service, method).Inc()
	start := time.Now()

	return func(err error) {
		ServerHandledTotal.WithLabelValues(rpcType, service, method, status.Code(err).String()).Inc()
		ServerHandlingSeconds.WithLabelValues(rpcType, service, method).Observe(time.Since(start).Seconds())
	}
}

// UnaryServerInterceptor returns a gRPC unary server interceptor that records Prometheus metrics.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		done := observe(typeUnary, info.FullMethod)
		resp, err := handler(ctx, req)
		done(err)
		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC stream server interceptor that records Prometheus metrics.
// The repository service is unary; streams come from the health Watch method.
func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		done := observe(streamType(info), info.FullMethod)
		err := handler(srv, ss)
		done(err)
		return err
	}
}
