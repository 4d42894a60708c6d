package auth

import (
	"context"
	"crypto/subtle"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
)

const (
	TokenHeader  = "x-control-token"
	CallerHeader = "x-caller"
)

type callerKey struct{}

// Caller returns the caller name placed in ctx by the interceptor, falling
// back to the raw metadata.
func Caller(ctx context.Context) string {
	if val, ok := ctx.Value(callerKey{}).(string); ok {
		return val
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if val := md.Get(CallerHeader); len(val) > 0 && val[0] != "" {
			return val[0]
		}
	}
	return "anonymous"
}

// UnaryInterceptor rejects calls whose x-control-token does not match token.
// An empty token disables the check. Health checks are always allowed.
func UnaryInterceptor(token string, log logger.ZapLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}
		if token != "" && !validToken(ctx, token) {
			log.Warn("Rejected control call", zap.String("method", info.FullMethod))
			return nil, status.Error(codes.Unauthenticated, "missing or invalid control token")
		}
		ctx = context.WithValue(ctx, callerKey{}, Caller(ctx))
		return handler(ctx, req)
	}
}

func validToken(ctx context.Context, token string) bool {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return false
	}
	for _, v := range md.Get(TokenHeader) {
		if subtle.ConstantTimeCompare([]byte(v), []byte(token)) == 1 {
			return true
		}
	}
	return false
}
