//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_user_store.go -package=mocks
package services

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"fmt"
)

// IUserStore is the part of the store the identity layer needs.
type IUserStore interface {
	CreateUser(ctx context.Context, displayName string) (chat.User, error)
	GetUser(ctx context.Context, id chat.UserID) (chat.User, error)
}

type Token string

func (t Token) String() string {
	return string(t)
}

var _ contract.IAuthenticator = (*AuthService)(nil)

// AuthService issues session tokens and resolves them back into users.
// Credentials are not handled here: whoever can call Register or IssueToken is trusted.
type AuthService struct {
	users  IUserStore
	issuer *auth.TokenIssuer
}

func NewAuthService(users IUserStore, issuer *auth.TokenIssuer) *AuthService {
	return &AuthService{users: users, issuer: issuer}
}

// Register creates a user and its first token.
func (s *AuthService) Register(ctx context.Context, displayName string) (chat.User, Token, error) {
	valReq, err := auth.ValidateRegister(auth.RegisterRequest{DisplayName: displayName})
	if err != nil {
		return chat.User{}, "", err
	}
	user, err := s.users.CreateUser(ctx, valReq.DisplayName)
	if err != nil {
		return chat.User{}, "", err
	}
	token, err := s.issuer.Generate(string(user.ID))
	if err != nil {
		return chat.User{}, "", err
	}
	return user, Token(token), nil
}

// IssueToken signs a new token for an existing user.
func (s *AuthService) IssueToken(ctx context.Context, userID chat.UserID) (Token, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return "", err
	}
	token, err := s.issuer.Generate(string(userID))
	if err != nil {
		return "", err
	}
	return Token(token), nil
}

// Authenticate validates the token then loads its user. A token of a deleted or unknown
// user is rejected like an invalid one.
func (s *AuthService) Authenticate(ctx context.Context, token string) (chat.User, error) {
	claims, err := s.issuer.Validate(token)
	if err != nil {
		return chat.User{}, err
	}
	user, err := s.users.GetUser(ctx, chat.UserID(claims.UserID))
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return chat.User{}, fmt.Errorf("%w: unknown user", errors.ErrInvalidToken)
	case err != nil:
		return chat.User{}, err
	}
	return user, nil
}
