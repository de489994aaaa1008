package errors

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MapToGRPCError translates a domain error into a gRPC status after passing it through Public.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	public := Public(err)
	switch CodeOf(public) {
	case CodeValidation:
		return status.Error(codes.InvalidArgument, public.Error())
	case CodeNotFound:
		return status.Error(codes.NotFound, public.Error())
	case CodeForbidden:
		return status.Error(codes.PermissionDenied, public.Error())
	case CodeUnavailable:
		return status.Error(codes.Unavailable, public.Error())
	case CodeUnauthenticated:
		return status.Error(codes.Unauthenticated, public.Error())
	default:
		return status.Error(codes.Internal, public.Error())
	}
}
