package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"empty content", ErrEmptyContent, CodeValidation},
		{"wrapped too long", fmt.Errorf("send: %w", ErrContentTooLong), CodeValidation},
		{"missing conversation", ErrConversationNotFound, CodeNotFound},
		{"not receiver", ErrNotReceiver, CodeForbidden},
		{"backend failure", Unavailable("get message", fmt.Errorf("disk full")), CodeUnavailable},
		{"bad token", ErrInvalidToken, CodeUnauthenticated},
		{"anything else", fmt.Errorf("boom"), CodeInternal},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestPublic_HidesConversationExistence(t *testing.T) {
	req := require.New(t)

	// Given a non participant trying to use a conversation
	err := fmt.Errorf("send: %w", ErrNotParticipant)

	// Then the client sees the same error as for a missing conversation
	req.ErrorIs(Public(err), ErrConversationNotFound)
	req.Equal(CodeNotFound, CodeOf(Public(err)))
}

func TestPublic_HidesMessageExistence(t *testing.T) {
	req := require.New(t)

	// Given a reader that is neither sender nor receiver
	outsider := fmt.Errorf("read: %w", ErrNotMessagePeer)

	// Then the client sees the same error as for a missing message
	req.ErrorIs(outsider, ErrForbidden)
	req.ErrorIs(Public(outsider), ErrMessageNotFound)
	req.Equal(CodeNotFound, CodeOf(Public(outsider)))

	// And the sender acknowledging its own message is still refused plainly
	req.Equal(CodeForbidden, CodeOf(Public(ErrNotReceiver)))
}

func TestPublic_DropsBackendDetail(t *testing.T) {
	req := require.New(t)
	err := Unavailable("create message", fmt.Errorf("value log corrupted"))

	public := Public(err)

	req.ErrorIs(public, ErrStoreUnavailable)
	req.NotContains(public.Error(), "value log")
}

func TestMapToGRPCError(t *testing.T) {
	req := require.New(t)

	req.Nil(MapToGRPCError(nil))
	req.Equal(codes.InvalidArgument, status.Code(MapToGRPCError(ErrEmptyContent)))
	req.Equal(codes.NotFound, status.Code(MapToGRPCError(ErrNotParticipant)))
	req.Equal(codes.PermissionDenied, status.Code(MapToGRPCError(ErrNotReceiver)))
	req.Equal(codes.Unavailable, status.Code(MapToGRPCError(Unavailable("op", fmt.Errorf("x")))))
	req.Equal(codes.Unauthenticated, status.Code(MapToGRPCError(ErrMissingToken)))
	req.Equal(codes.Internal, status.Code(MapToGRPCError(fmt.Errorf("boom"))))
}
