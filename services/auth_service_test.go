package services

import (
	"chat-relay/auth"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newAuthService(t *testing.T) (*AuthService, *mocks.MockIUserStore, *auth.TokenIssuer) {
	ctrl := gomock.NewController(t)
	mockStore := mocks.NewMockIUserStore(ctrl)
	issuer := auth.NewTokenIssuer("a-test-secret", time.Hour)
	return NewAuthService(mockStore, issuer), mockStore, issuer
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		svc, mockStore, issuer := newAuthService(t)
		created := chat.User{ID: chat.UserID(uuid.NewString()), DisplayName: "Alice"}

		// The trimmed display name reaches the store
		mockStore.EXPECT().CreateUser(gomock.Any(), "Alice").Return(created, nil).Times(1)

		user, token, err := svc.Register(ctx, "  Alice ")

		req.NoError(err)
		req.Equal(created, user)
		claims, err := issuer.Validate(token.String())
		req.NoError(err)
		req.Equal(string(created.ID), claims.UserID)
	})

	t.Run("should fail when the display name is invalid", func(t *testing.T) {
		req := require.New(t)
		svc, mockStore, _ := newAuthService(t)

		// Store should NEVER be called
		mockStore.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

		_, token, err := svc.Register(ctx, "A")

		req.ErrorIs(err, errors.ErrValidation)
		req.Empty(token)
	})

	t.Run("should fail when the display name is taken", func(t *testing.T) {
		req := require.New(t)
		svc, mockStore, _ := newAuthService(t)
		mockStore.EXPECT().CreateUser(gomock.Any(), "Bob").Return(chat.User{}, errors.ErrUserAlreadyExists).Times(1)

		_, _, err := svc.Register(ctx, "Bob")

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Authenticate(t *testing.T) {
	ctx := context.Background()
	user := chat.User{ID: chat.UserID(uuid.NewString()), DisplayName: "Alice"}

	t.Run("should resolve a valid token", func(t *testing.T) {
		req := require.New(t)
		svc, mockStore, _ := newAuthService(t)
		mockStore.EXPECT().GetUser(gomock.Any(), user.ID).Return(user, nil).Times(2)

		token, err := svc.IssueToken(ctx, user.ID)
		req.NoError(err)

		found, err := svc.Authenticate(ctx, token.String())
		req.NoError(err)
		req.Equal(user, found)
	})

	t.Run("should reject a token of an unknown user", func(t *testing.T) {
		req := require.New(t)
		svc, mockStore, issuer := newAuthService(t)
		ghost, err := issuer.Generate(uuid.NewString())
		req.NoError(err)
		mockStore.EXPECT().GetUser(gomock.Any(), gomock.Any()).Return(chat.User{}, errors.ErrUserNotFound)

		_, err = svc.Authenticate(ctx, ghost)

		req.ErrorIs(err, errors.ErrInvalidToken)
	})

	t.Run("should reject an invalid token without reaching the store", func(t *testing.T) {
		req := require.New(t)
		svc, mockStore, _ := newAuthService(t)
		mockStore.EXPECT().GetUser(gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Authenticate(ctx, "invalid-token-string")

		req.ErrorIs(err, errors.ErrUnauthenticated)
	})

	t.Run("should surface store outages", func(t *testing.T) {
		req := require.New(t)
		svc, mockStore, issuer := newAuthService(t)
		token, err := issuer.Generate(string(user.ID))
		req.NoError(err)
		mockStore.EXPECT().GetUser(gomock.Any(), user.ID).Return(chat.User{}, errors.Unavailable("get user", errors.ErrStoreUnavailable))

		_, err = svc.Authenticate(ctx, token)

		req.ErrorIs(err, errors.ErrStoreUnavailable)
	})
}
