//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"context"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the handle of one live session. Consume must not block longer than the
// transport allows; it returns an error when the event could not be accepted.
// Implementations must be comparable (pointer types) since the registry compares handles.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// Connection is a registry entry.
type Connection struct {
	UserID chat.UserID
	Sink   EventSink
}

type IConnectionRegistry interface {
	Register(userID chat.UserID, sink EventSink) (previous EventSink, replaced bool)
	Lookup(userID chat.UserID) (EventSink, bool)
	Remove(userID chat.UserID, sink EventSink) bool
	Snapshot() []Connection
	Clear() []Connection
	Len() int
}

// IStore is the persistence collaborator of the realtime core.
// Missing records are reported with the errors.ErrNotFound family, backend failures with errors.ErrStoreUnavailable.
type IStore interface {
	CreateMessage(ctx context.Context, conversationID chat.ConversationID, senderID, receiverID chat.UserID, content string, at time.Time) (chat.Message, error)
	GetMessage(ctx context.Context, id chat.MessageID) (chat.Message, error)
	UpdateMessageStatus(ctx context.Context, id chat.MessageID, status chat.Status, readAt *time.Time) (chat.Message, error)
	ListUnread(ctx context.Context, conversationID chat.ConversationID, receiverID chat.UserID) ([]chat.Message, error)
	GetConversation(ctx context.Context, id chat.ConversationID) (chat.Conversation, error)
	TouchConversation(ctx context.Context, id chat.ConversationID, lastMessageID chat.MessageID, at time.Time) error
	SetUserPresence(ctx context.Context, userID chat.UserID, online bool, lastSeen time.Time) error
	GetPresence(ctx context.Context, userID chat.UserID) (chat.Presence, error)
	GetUser(ctx context.Context, id chat.UserID) (chat.User, error)
}

type IDeliveryRouter interface {
	Route(ctx context.Context, e event.Event, target chat.UserID) bool
	Broadcast(ctx context.Context, e event.Event, except chat.UserID) int
}

type IPresenceTracker interface {
	Online(ctx context.Context, user chat.User)
	Offline(ctx context.Context, user chat.User)
}

type IMessageLifecycle interface {
	Create(ctx context.Context, cmd chat.SendMessageCommand) (chat.Message, error)
	MarkDelivered(ctx context.Context, id chat.MessageID) (chat.Message, error)
	MarkRead(ctx context.Context, cmd chat.ReadMessageCommand) (chat.Message, bool, error)
	MarkConversationRead(ctx context.Context, cmd chat.ReadConversationCommand) ([]chat.Message, error)
}

type ITypingRelay interface {
	Start(ctx context.Context, cmd chat.TypingCommand, displayName string) bool
	Stop(ctx context.Context, cmd chat.TypingCommand) bool
}

// IAuthenticator resolves a bearer token into the user it was issued for.
type IAuthenticator interface {
	Authenticate(ctx context.Context, token string) (chat.User, error)
}
