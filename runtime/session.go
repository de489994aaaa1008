package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// SessionState is the lifecycle of one transport connection.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int32(s))
	}
}

// SessionHandler drives one connection: connecting -> authenticated -> active -> closed.
// Inbound frames of a session are handled one at a time, in the order the transport reads them.
// Only an authentication failure closes a session; every other failure is reported back
// to the sender as an error event.
type SessionHandler struct {
	log       *slog.Logger
	auth      contract.IAuthenticator
	store     contract.IStore
	registry  contract.IConnectionRegistry
	router    contract.IDeliveryRouter
	presence  contract.IPresenceTracker
	lifecycle contract.IMessageLifecycle
	typing    contract.ITypingRelay
	stopping  *atomic.Bool

	mu        sync.Mutex
	state     SessionState
	user      chat.User
	sink      contract.EventSink
	closeOnce sync.Once
}

func (h *SessionHandler) State() SessionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *SessionHandler) User() chat.User {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.user
}

// Authenticate resolves the token of the handshake. On failure the session goes
// straight to closed and is never registered.
func (h *SessionHandler) Authenticate(ctx context.Context, token string) (chat.User, error) {
	if state := h.State(); state != StateConnecting {
		return chat.User{}, fmt.Errorf("%w: cannot authenticate in state %s", errors.ErrSessionClosed, state)
	}
	user, err := h.auth.Authenticate(ctx, token)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateConnecting {
		return chat.User{}, fmt.Errorf("%w: cannot authenticate in state %s", errors.ErrSessionClosed, h.state)
	}
	if err != nil {
		h.state = StateClosed
		h.log.Info("Session authentication failed", "error", err)
		return chat.User{}, err
	}
	h.user = user
	h.state = StateAuthenticated
	return user, nil
}

// Activate registers sink as the live session of the user and announces the user online.
func (h *SessionHandler) Activate(ctx context.Context, sink contract.EventSink) error {
	h.mu.Lock()
	if h.state != StateAuthenticated {
		state := h.state
		h.mu.Unlock()
		return fmt.Errorf("%w: cannot activate in state %s", errors.ErrSessionClosed, state)
	}
	if h.stopping != nil && h.stopping.Load() {
		h.state = StateClosed
		h.mu.Unlock()
		return fmt.Errorf("%w: server is shutting down", errors.ErrSessionClosed)
	}
	h.sink = sink
	h.state = StateActive
	user := h.user
	h.mu.Unlock()

	if _, replaced := h.registry.Register(user.ID, sink); replaced {
		h.log.Info("Session replaced by a newer connection", "user_id", user.ID)
	}
	// A shutdown that cleared the registry before this registration will not see it.
	if h.stopping != nil && h.stopping.Load() {
		h.registry.Remove(user.ID, sink)
		h.mu.Lock()
		h.state = StateClosed
		h.mu.Unlock()
		return fmt.Errorf("%w: server is shutting down", errors.ErrSessionClosed)
	}
	h.log.Info("Session active", "user_id", user.ID, "display_name", user.DisplayName)
	h.presence.Online(ctx, user)
	return nil
}

// Close ends the session. Whatever the number of disconnect signals, the registry removal
// and the offline broadcast happen once. A session already replaced by a newer connection
// of the same user leaves the registry and the presence of that user untouched.
func (h *SessionHandler) Close(ctx context.Context) {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		previous := h.state
		h.state = StateClosed
		user, sink := h.user, h.sink
		h.mu.Unlock()

		if previous != StateActive {
			return
		}
		if !h.registry.Remove(user.ID, sink) {
			h.log.Debug("Closed session was not authoritative anymore", "user_id", user.ID)
			return
		}
		h.log.Info("Session closed", "user_id", user.ID)
		h.presence.Offline(context.WithoutCancel(ctx), user)
	})
}

// Handle dispatches one inbound frame. A rejected frame produces an error event on this
// session and the returned error; the session stays active.
func (h *SessionHandler) Handle(ctx context.Context, in event.Inbound) error {
	h.mu.Lock()
	state, user := h.state, h.user
	h.mu.Unlock()
	if state != StateActive {
		return fmt.Errorf("%w: cannot handle %s in state %s", errors.ErrSessionClosed, in.Type, state)
	}

	// Work accepted before a disconnect still completes.
	ctx = context.WithoutCancel(ctx)

	var err error
	switch in.Type {
	case event.MessageSend:
		err = h.handleSend(ctx, user, in)
	case event.MessageReadAck:
		err = h.handleRead(ctx, user, in)
	case event.ConversationRead:
		err = h.handleConversationRead(ctx, user, in)
	case event.TypingStart, event.TypingStop:
		h.handleTyping(ctx, user, in)
	default:
		err = fmt.Errorf("%w: %q", errors.ErrUnknownEvent, in.Type)
	}
	if err != nil {
		h.reject(ctx, user, in, err)
	}
	return err
}

func (h *SessionHandler) handleSend(ctx context.Context, user chat.User, in event.Inbound) error {
	var payload event.SendPayload
	if err := decode(in, &payload); err != nil {
		return err
	}
	message, err := h.lifecycle.Create(ctx, chat.SendMessageCommand{
		ConversationID: chat.ConversationID(payload.ConversationID),
		SenderID:       user.ID,
		ReceiverID:     chat.UserID(payload.ReceiverID),
		Content:        payload.Content,
	})
	if err != nil {
		return err
	}

	// The sender sees its own message through the same channel as the receiver.
	h.push(ctx, event.MessageNew{Message: message})

	if !h.router.Route(ctx, event.MessageNew{Message: message}, message.ReceiverID) {
		return nil
	}
	delivered, err := h.lifecycle.MarkDelivered(ctx, message.ID)
	if err != nil {
		h.log.Error("Failed to mark message delivered", "message_id", message.ID, "error", err)
		return nil
	}
	h.push(ctx, event.MessageDelivered{
		MessageID:      delivered.ID,
		ConversationID: delivered.ConversationID,
		At:             time.Now().UTC(),
	})
	return nil
}

func (h *SessionHandler) handleRead(ctx context.Context, user chat.User, in event.Inbound) error {
	var payload event.ReadPayload
	if err := decode(in, &payload); err != nil {
		return err
	}
	message, changed, err := h.lifecycle.MarkRead(ctx, chat.ReadMessageCommand{
		MessageID: chat.MessageID(payload.MessageID),
		ReaderID:  user.ID,
	})
	if err != nil {
		return err
	}
	if payload.SenderID != "" && chat.UserID(payload.SenderID) != message.SenderID {
		h.log.Debug("Read receipt sender hint ignored", "message_id", message.ID, "hint", payload.SenderID)
	}
	if changed {
		h.notifyRead(ctx, message)
	}
	return nil
}

func (h *SessionHandler) handleConversationRead(ctx context.Context, user chat.User, in event.Inbound) error {
	var payload event.ConversationReadPayload
	if err := decode(in, &payload); err != nil {
		return err
	}
	messages, err := h.lifecycle.MarkConversationRead(ctx, chat.ReadConversationCommand{
		ConversationID: chat.ConversationID(payload.ConversationID),
		ReaderID:       user.ID,
	})
	for _, m := range messages {
		h.notifyRead(ctx, m)
	}
	return err
}

// handleTyping never fails towards the sender: malformed, foreign or undeliverable
// indicators are dropped.
func (h *SessionHandler) handleTyping(ctx context.Context, user chat.User, in event.Inbound) {
	var payload event.TypingPayload
	if err := decode(in, &payload); err != nil {
		h.log.Debug("Typing indicator dropped", "user_id", user.ID, "error", err)
		return
	}
	cmd := chat.TypingCommand{
		ConversationID: chat.ConversationID(payload.ConversationID),
		FromID:         user.ID,
		ToID:           chat.UserID(payload.ReceiverID),
	}
	if err := chat.ValidateIDs(cmd); err != nil {
		h.log.Debug("Typing indicator dropped", "user_id", user.ID, "error", err)
		return
	}
	conversation, err := h.store.GetConversation(ctx, cmd.ConversationID)
	if err != nil {
		h.log.Debug("Typing indicator dropped", "user_id", user.ID, "error", err)
		return
	}
	if peer, ok := conversation.Peer(user.ID); !ok || peer != cmd.ToID {
		h.log.Debug("Typing indicator dropped, not a participant", "user_id", user.ID, "conversation_id", cmd.ConversationID)
		return
	}

	if in.Type == event.TypingStart {
		h.typing.Start(ctx, cmd, user.DisplayName)
		return
	}
	h.typing.Stop(ctx, cmd)
}

func (h *SessionHandler) notifyRead(ctx context.Context, message chat.Message) {
	receipt := event.MessageRead{
		MessageID:      message.ID,
		ConversationID: message.ConversationID,
		ReadBy:         message.ReceiverID,
	}
	if message.ReadAt != nil {
		receipt.At = *message.ReadAt
	}
	h.router.Route(ctx, receipt, message.SenderID)
}

func (h *SessionHandler) reject(ctx context.Context, user chat.User, in event.Inbound, err error) {
	public := errors.Public(err)
	h.log.Info("Inbound event rejected",
		"user_id", user.ID,
		"type", in.Type,
		"error", err)
	h.push(ctx, event.ProtocolError{
		Code:    string(errors.CodeOf(public)),
		Message: public.Error(),
		Ref:     in.Ref,
		Type:    in.Type,
	})
}

// push writes to this session's own sink, which may differ from the registry entry
// when a newer connection of the same user took over.
func (h *SessionHandler) push(ctx context.Context, e event.Event) {
	h.mu.Lock()
	sink := h.sink
	h.mu.Unlock()
	if sink == nil {
		return
	}
	if err := sink.Consume(ctx, e); err != nil {
		h.log.Warn("Failed to push event to own session", "event", e.Name(), "error", err)
	}
}

func decode(in event.Inbound, v any) error {
	if len(in.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", errors.ErrValidation, in.Type)
	}
	if err := json.Unmarshal(in.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", errors.ErrValidation, in.Type, err)
	}
	return nil
}
