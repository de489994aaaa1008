//go:generate go run go.uber.org/mock/mockgen -source=history_service.go -destination=../mocks/mock_history_store.go -package=mocks
package services

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
)

// IHistoryStore is the read side of the store used to browse past conversations.
type IHistoryStore interface {
	GetConversation(ctx context.Context, id chat.ConversationID) (chat.Conversation, error)
	ListConversations(ctx context.Context, userID chat.UserID) ([]chat.Conversation, error)
	GetMessages(ctx context.Context, conversationID chat.ConversationID, cursor *string, limit int) ([]chat.Message, *string, error)
}

// HistoryService serves what happened while a client was away. It never changes a message status:
// reading history is not a read receipt.
type HistoryService struct {
	store IHistoryStore
}

func NewHistoryService(store IHistoryStore) *HistoryService {
	return &HistoryService{store: store}
}

func (s *HistoryService) ListConversations(ctx context.Context, userID chat.UserID) ([]chat.Conversation, error) {
	return s.store.ListConversations(ctx, userID)
}

// GetMessages returns one page and the cursor of the next one, nil when exhausted.
func (s *HistoryService) GetMessages(ctx context.Context, query chat.HistoryQuery) ([]chat.Message, *string, error) {
	if err := chat.ValidateIDs(query); err != nil {
		return nil, nil, err
	}
	conversation, err := s.store.GetConversation(ctx, query.ConversationID)
	if err != nil {
		return nil, nil, err
	}
	if !conversation.HasParticipant(query.ReaderID) {
		return nil, nil, errors.ErrNotParticipant
	}
	return s.store.GetMessages(ctx, query.ConversationID, query.Cursor, query.Limit)
}
