package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var _ contract.IMessageLifecycle = (*MessageLifecycle)(nil)

// MessageLifecycle owns the status of a message: sent -> delivered -> read.
// Transitions of one message are serialized; the most advanced status always wins.
type MessageLifecycle struct {
	log              *slog.Logger
	store            contract.IStore
	locks            *keyedMutex
	maxContentLength int
	now              func() time.Time
}

func NewMessageLifecycle(log *slog.Logger, store contract.IStore, maxContentLength int) *MessageLifecycle {
	if maxContentLength <= 0 {
		maxContentLength = chat.DefaultMaxContentLength
	}
	return &MessageLifecycle{
		log:              log,
		store:            store,
		locks:            newKeyedMutex(),
		maxContentLength: maxContentLength,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and persists a new message in status sent, then records it as the
// latest activity of its conversation. Nothing is persisted when validation or membership fails.
func (l *MessageLifecycle) Create(ctx context.Context, cmd chat.SendMessageCommand) (chat.Message, error) {
	cmd, err := cmd.Validate(l.maxContentLength)
	if err != nil {
		return chat.Message{}, err
	}

	conversation, err := l.store.GetConversation(ctx, cmd.ConversationID)
	if err != nil {
		return chat.Message{}, err
	}
	if !conversation.HasParticipant(cmd.SenderID) {
		return chat.Message{}, fmt.Errorf("%w: %s", errors.ErrNotParticipant, cmd.ConversationID)
	}
	peer, _ := conversation.Peer(cmd.SenderID)
	if cmd.ReceiverID != peer {
		return chat.Message{}, errors.ErrNotPeer
	}

	at := cmd.SentAt
	if at.IsZero() {
		at = l.now()
	}
	message, err := l.store.CreateMessage(ctx, conversation.ID, cmd.SenderID, peer, cmd.Content, at)
	if err != nil {
		return chat.Message{}, err
	}

	// The message is durable at this point: a failed touch only leaves the conversation preview stale.
	if err := l.store.TouchConversation(ctx, conversation.ID, message.ID, message.CreatedAt); err != nil {
		l.log.Error("Failed to update conversation activity",
			"conversation_id", conversation.ID,
			"message_id", message.ID,
			"error", err)
	}
	return message, nil
}

// MarkDelivered advances a sent message to delivered. A duplicate or late signal on a
// delivered or read message is a no-op returning the current state.
func (l *MessageLifecycle) MarkDelivered(ctx context.Context, id chat.MessageID) (chat.Message, error) {
	unlock := l.locks.Lock(string(id))
	defer unlock()

	message, err := l.store.GetMessage(ctx, id)
	if err != nil {
		return chat.Message{}, err
	}
	if message.Status != chat.StatusSent {
		return message, nil
	}
	return l.store.UpdateMessageStatus(ctx, id, chat.StatusDelivered, nil)
}

// MarkRead lets the receiver acknowledge a message. It reports whether the status changed;
// reading an already read message is a no-op.
func (l *MessageLifecycle) MarkRead(ctx context.Context, cmd chat.ReadMessageCommand) (chat.Message, bool, error) {
	if err := chat.ValidateIDs(cmd); err != nil {
		return chat.Message{}, false, err
	}
	return l.markRead(ctx, cmd.MessageID, cmd.ReaderID)
}

func (l *MessageLifecycle) markRead(ctx context.Context, id chat.MessageID, readerID chat.UserID) (chat.Message, bool, error) {
	unlock := l.locks.Lock(string(id))
	defer unlock()

	message, err := l.store.GetMessage(ctx, id)
	if err != nil {
		return chat.Message{}, false, err
	}
	if message.SenderID != readerID && message.ReceiverID != readerID {
		return chat.Message{}, false, errors.ErrNotMessagePeer
	}
	if message.ReceiverID != readerID {
		return chat.Message{}, false, errors.ErrNotReceiver
	}
	if message.Status == chat.StatusRead {
		return message, false, nil
	}
	at := l.now()
	updated, err := l.store.UpdateMessageStatus(ctx, id, chat.StatusRead, &at)
	if err != nil {
		return chat.Message{}, false, err
	}
	return updated, true, nil
}

// MarkConversationRead reads every message addressed to the reader that is not read yet
// and returns the messages that changed.
func (l *MessageLifecycle) MarkConversationRead(ctx context.Context, cmd chat.ReadConversationCommand) ([]chat.Message, error) {
	if err := chat.ValidateIDs(cmd); err != nil {
		return nil, err
	}
	conversation, err := l.store.GetConversation(ctx, cmd.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(cmd.ReaderID) {
		return nil, fmt.Errorf("%w: %s", errors.ErrNotParticipant, cmd.ConversationID)
	}

	unread, err := l.store.ListUnread(ctx, conversation.ID, cmd.ReaderID)
	if err != nil {
		return nil, err
	}
	var read []chat.Message
	for _, m := range unread {
		updated, changed, err := l.markRead(ctx, m.ID, cmd.ReaderID)
		if err != nil {
			return read, err
		}
		if changed {
			read = append(read, updated)
		}
	}
	return read, nil
}

// keyedMutex serializes work per key. Entries are reference counted and dropped
// when the last holder leaves, so the map only holds keys in use.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
