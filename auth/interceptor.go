package auth

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type contextKey string

const userKey contextKey = "user"

// WithUser injects the authenticated user for downstream handlers.
func WithUser(ctx context.Context, user chat.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func UserFromContext(ctx context.Context) (chat.User, bool) {
	user, ok := ctx.Value(userKey).(chat.User)
	return user, ok
}

// BearerFromMetadata reads the "authorization" header of an incoming gRPC call.
func BearerFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(values[0], "Bearer "))
}

// BearerFromRequest reads the Authorization header, then the token query parameter
// used by browsers that cannot set headers on a websocket handshake.
func BearerFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// UnaryInterceptor authenticates every unary call except the public methods.
func UnaryInterceptor(authenticator contract.IAuthenticator, publicMethods ...string) grpc.UnaryServerInterceptor {
	public := make(map[string]struct{}, len(publicMethods))
	for _, m := range publicMethods {
		public[m] = struct{}{}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := public[info.FullMethod]; ok {
			return handler(ctx, req)
		}
		user, err := authenticator.Authenticate(ctx, BearerFromMetadata(ctx))
		if err != nil {
			return nil, errors.MapToGRPCError(err)
		}
		return handler(WithUser(ctx, user), req)
	}
}

// StreamInterceptor authenticates a stream before its handler runs, so an unauthenticated
// client never reaches the session layer.
func StreamInterceptor(authenticator contract.IAuthenticator) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		user, err := authenticator.Authenticate(ctx, BearerFromMetadata(ctx))
		if err != nil {
			return errors.MapToGRPCError(err)
		}
		return handler(srv, &authenticatedStream{ServerStream: ss, ctx: WithUser(ctx, user)})
	}
}

type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context {
	return s.ctx
}
