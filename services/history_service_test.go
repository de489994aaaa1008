package services

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newHistoryService(t *testing.T) (*HistoryService, *mocks.MockIHistoryStore) {
	ctrl := gomock.NewController(t)
	mockStore := mocks.NewMockIHistoryStore(ctrl)
	return NewHistoryService(mockStore), mockStore
}

func TestHistoryService_GetMessages(t *testing.T) {
	ctx := context.Background()
	alice, bob := chat.UserID(uuid.NewString()), chat.UserID(uuid.NewString())
	conversation := chat.Conversation{
		ID:           chat.ConversationID(uuid.NewString()),
		Participants: chat.Pair(alice, bob),
	}

	t.Run("should return a page to a participant", func(t *testing.T) {
		req := require.New(t)
		svc, mockStore := newHistoryService(t)
		page := []chat.Message{{ID: chat.MessageID(uuid.NewString()), ConversationID: conversation.ID}}
		cursor := lo.ToPtr("00000000000000000001:x")

		mockStore.EXPECT().GetConversation(gomock.Any(), conversation.ID).Return(conversation, nil).Times(1)
		mockStore.EXPECT().GetMessages(gomock.Any(), conversation.ID, cursor, 20).Return(page, nil, nil).Times(1)

		messages, next, err := svc.GetMessages(ctx, chat.HistoryQuery{
			ConversationID: conversation.ID,
			ReaderID:       bob,
			Cursor:         cursor,
			Limit:          20,
		})

		req.NoError(err)
		req.Equal(page, messages)
		req.Nil(next)
	})

	t.Run("should refuse an outsider without reading messages", func(t *testing.T) {
		req := require.New(t)
		svc, mockStore := newHistoryService(t)

		mockStore.EXPECT().GetConversation(gomock.Any(), conversation.ID).Return(conversation, nil).Times(1)
		mockStore.EXPECT().GetMessages(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, _, err := svc.GetMessages(ctx, chat.HistoryQuery{
			ConversationID: conversation.ID,
			ReaderID:       chat.UserID(uuid.NewString()),
		})

		req.ErrorIs(err, errors.ErrForbidden)
		req.ErrorIs(errors.Public(err), errors.ErrNotFound)
	})

	t.Run("should reject a malformed conversation id", func(t *testing.T) {
		req := require.New(t)
		svc, mockStore := newHistoryService(t)

		mockStore.EXPECT().GetConversation(gomock.Any(), gomock.Any()).Times(0)

		_, _, err := svc.GetMessages(ctx, chat.HistoryQuery{ConversationID: "nope", ReaderID: bob})

		req.ErrorIs(err, errors.ErrMalformedID)
	})
}

func TestHistoryService_ListConversations(t *testing.T) {
	req := require.New(t)
	svc, mockStore := newHistoryService(t)
	user := chat.UserID(uuid.NewString())
	expected := []chat.Conversation{{ID: chat.ConversationID(uuid.NewString())}}

	mockStore.EXPECT().ListConversations(gomock.Any(), user).Return(expected, nil).Times(1)

	conversations, err := svc.ListConversations(context.Background(), user)

	req.NoError(err)
	req.Equal(expected, conversations)
}
