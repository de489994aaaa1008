package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"context"
	"log/slog"
)

var _ contract.ITypingRelay = (*TypingRelay)(nil)

// TypingRelay forwards typing indicators between the two participants of a conversation.
// Nothing is persisted, deduplicated or expired here: the client is expected to send stop.
type TypingRelay struct {
	log    *slog.Logger
	router contract.IDeliveryRouter
}

func NewTypingRelay(log *slog.Logger, router contract.IDeliveryRouter) *TypingRelay {
	return &TypingRelay{log: log, router: router}
}

// Start returns whether the indicator reached the target. An offline target is not an error.
func (t *TypingRelay) Start(ctx context.Context, cmd chat.TypingCommand, displayName string) bool {
	return t.router.Route(ctx, event.TypingStarted{
		ConversationID: cmd.ConversationID,
		UserID:         cmd.FromID,
		DisplayName:    displayName,
	}, cmd.ToID)
}

func (t *TypingRelay) Stop(ctx context.Context, cmd chat.TypingCommand) bool {
	return t.router.Route(ctx, event.TypingStopped{
		ConversationID: cmd.ConversationID,
		UserID:         cmd.FromID,
	}, cmd.ToID)
}
