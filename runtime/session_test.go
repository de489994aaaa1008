package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/runtime/workers"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// recordingSink keeps every event pushed to a session.
type recordingSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *recordingSink) Consume(_ context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) named(name event.Name) []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Event
	for _, e := range s.events {
		if e.Name() == name {
			out = append(out, e)
		}
	}
	return out
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// tokenAuth accepts the id of a stored user as its token.
type tokenAuth struct {
	store *repositories.Store
}

func (a tokenAuth) Authenticate(ctx context.Context, token string) (chat.User, error) {
	if token == "" {
		return chat.User{}, errors.ErrMissingToken
	}
	user, err := a.store.GetUser(ctx, chat.UserID(token))
	if err != nil {
		return chat.User{}, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	return user, nil
}

type fixture struct {
	store        *repositories.Store
	orchestrator *Orchestrator
	registry     *Registry
	u1, u2       chat.User
	c1           chat.Conversation
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := newBadgerStore(t)
	registry := NewRegistry()
	orchestrator := NewOrchestrator(log, workers.NewSupervisor(log, 0), registry, store, tokenAuth{store: store}, 0)

	u1, err := store.CreateUser(ctx, "u1")
	require.NoError(t, err)
	u2, err := store.CreateUser(ctx, "u2")
	require.NoError(t, err)
	c1, err := store.FindOrCreateConversation(ctx, u1.ID, u2.ID)
	require.NoError(t, err)
	return fixture{store: store, orchestrator: orchestrator, registry: registry, u1: u1, u2: u2, c1: c1}
}

func (f fixture) connect(t *testing.T, user chat.User) (*SessionHandler, *recordingSink) {
	t.Helper()
	ctx := context.Background()
	session := f.orchestrator.NewSession()
	_, err := session.Authenticate(ctx, string(user.ID))
	require.NoError(t, err)
	sink := &recordingSink{}
	require.NoError(t, session.Activate(ctx, sink))
	return session, sink
}

func inbound(t *testing.T, name event.Name, payload any) event.Inbound {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return event.Inbound{Type: name, Ref: uuid.NewString(), Data: data}
}

func (f fixture) send(t *testing.T, content string) event.Inbound {
	return inbound(t, event.MessageSend, event.SendPayload{
		ConversationID: string(f.c1.ID),
		ReceiverID:     string(f.u2.ID),
		Content:        content,
	})
}

func TestSessionHandler_OfflineThenOnlineDelivery(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	// Given u1 is connected and u2 is offline
	a, aSink := f.connect(t, f.u1)

	// When u1 sends "hi"
	req.NoError(a.Handle(ctx, f.send(t, "hi")))

	// Then the message stays sent and u1 only gets its own echo
	echoes := aSink.named(event.MessageNewName)
	req.Len(echoes, 1)
	hi := echoes[0].(event.MessageNew).Message
	req.Equal(chat.StatusSent, hi.Status)
	req.Empty(aSink.named(event.MessageDeliveredName))
	stored, err := f.store.GetMessage(ctx, hi.ID)
	req.NoError(err)
	req.Equal(chat.StatusSent, stored.Status)

	// When u2 connects, nothing is delivered retroactively
	b, bSink := f.connect(t, f.u2)
	req.Empty(bSink.named(event.MessageNewName))
	req.Len(aSink.named(event.UserOnlineName), 1)

	// When u1 sends "there" while u2 is online
	req.NoError(a.Handle(ctx, f.send(t, "there")))

	// Then u2 receives it and u1 gets the delivery receipt
	received := bSink.named(event.MessageNewName)
	req.Len(received, 1)
	there := received[0].(event.MessageNew).Message
	req.Equal("there", there.Content)
	delivered := aSink.named(event.MessageDeliveredName)
	req.Len(delivered, 1)
	req.Equal(there.ID, delivered[0].(event.MessageDelivered).MessageID)
	stored, err = f.store.GetMessage(ctx, there.ID)
	req.NoError(err)
	req.Equal(chat.StatusDelivered, stored.Status)

	// When u2 reads the first message
	req.NoError(b.Handle(ctx, inbound(t, event.MessageReadAck, event.ReadPayload{MessageID: string(hi.ID), SenderID: string(f.u1.ID)})))

	// Then it is read and u1 is told once
	stored, err = f.store.GetMessage(ctx, hi.ID)
	req.NoError(err)
	req.Equal(chat.StatusRead, stored.Status)
	req.NotNil(stored.ReadAt)
	req.Len(aSink.named(event.MessageReadName), 1)

	// And a duplicate read is a no-op
	req.NoError(b.Handle(ctx, inbound(t, event.MessageReadAck, event.ReadPayload{MessageID: string(hi.ID)})))
	again, err := f.store.GetMessage(ctx, hi.ID)
	req.NoError(err)
	req.Equal(stored, again)
	req.Len(aSink.named(event.MessageReadName), 1)
}

func TestSessionHandler_ProtocolErrorsKeepSessionActive(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	eve, err := f.store.CreateUser(ctx, "eve")
	req.NoError(err)
	e, eSink := f.connect(t, eve)

	tests := []struct {
		name string
		in   event.Inbound
		code errors.Code
	}{
		{name: "foreign conversation", in: inbound(t, event.MessageSend, event.SendPayload{
			ConversationID: string(f.c1.ID), ReceiverID: string(f.u2.ID), Content: "hello",
		}), code: errors.CodeNotFound},
		{name: "empty content", in: inbound(t, event.MessageSend, event.SendPayload{
			ConversationID: string(f.c1.ID), ReceiverID: string(f.u2.ID), Content: "  ",
		}), code: errors.CodeValidation},
		{name: "malformed id", in: inbound(t, event.MessageReadAck, event.ReadPayload{MessageID: "m1"}), code: errors.CodeValidation},
		{name: "unknown event", in: event.Inbound{Type: "message:delete", Ref: "r1"}, code: errors.CodeValidation},
		{name: "missing data", in: event.Inbound{Type: event.MessageSend, Ref: "r2"}, code: errors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			eSink.reset()

			err := e.Handle(ctx, tt.in)

			// Then the sender gets an error event and stays active
			req.Error(err)
			errs := eSink.named(event.ErrorName)
			req.Len(errs, 1)
			protocolError := errs[0].(event.ProtocolError)
			req.Equal(string(tt.code), protocolError.Code)
			req.Equal(tt.in.Ref, protocolError.Ref)
			req.Equal(StateActive, e.State())
		})
	}
}

func TestSessionHandler_ReadByNonReceiverIsForbidden(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a, aSink := f.connect(t, f.u1)
	req.NoError(a.Handle(ctx, f.send(t, "hi")))
	hi := aSink.named(event.MessageNewName)[0].(event.MessageNew).Message

	// When the sender acknowledges its own message
	err := a.Handle(ctx, inbound(t, event.MessageReadAck, event.ReadPayload{MessageID: string(hi.ID)}))

	// Then it is refused and the status is unchanged
	req.ErrorIs(err, errors.ErrForbidden)
	stored, err := f.store.GetMessage(ctx, hi.ID)
	req.NoError(err)
	req.Equal(chat.StatusSent, stored.Status)
	req.Equal(string(errors.CodeForbidden), aSink.named(event.ErrorName)[0].(event.ProtocolError).Code)
}

func TestSessionHandler_ReadByOutsiderLooksLikeMissingMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a, aSink := f.connect(t, f.u1)
	req.NoError(a.Handle(ctx, f.send(t, "hi")))
	hi := aSink.named(event.MessageNewName)[0].(event.MessageNew).Message

	// Given a third user connected
	u3, err := f.store.CreateUser(ctx, "u3")
	req.NoError(err)
	c, cSink := f.connect(t, u3)

	// When u3 acknowledges the message of u1 to u2, then an id that does not exist
	existing := c.Handle(ctx, inbound(t, event.MessageReadAck, event.ReadPayload{MessageID: string(hi.ID)}))
	absent := c.Handle(ctx, inbound(t, event.MessageReadAck, event.ReadPayload{MessageID: uuid.NewString()}))

	// Then the lifecycle still refuses the outsider
	req.ErrorIs(existing, errors.ErrForbidden)
	req.ErrorIs(absent, errors.ErrNotFound)

	// And both error events are identical on the wire
	errs := cSink.named(event.ErrorName)
	req.Len(errs, 2)
	onExisting, onAbsent := errs[0].(event.ProtocolError), errs[1].(event.ProtocolError)
	req.Equal(string(errors.CodeNotFound), onExisting.Code)
	req.Equal(onAbsent.Code, onExisting.Code)
	req.Equal(onAbsent.Message, onExisting.Message)

	// And the message is untouched
	stored, err := f.store.GetMessage(ctx, hi.ID)
	req.NoError(err)
	req.Equal(chat.StatusSent, stored.Status)
}

func TestSessionHandler_Typing(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a, aSink := f.connect(t, f.u1)
	_, bSink := f.connect(t, f.u2)

	// When u1 starts then stops typing
	req.NoError(a.Handle(ctx, inbound(t, event.TypingStart, event.TypingPayload{ConversationID: string(f.c1.ID), ReceiverID: string(f.u2.ID)})))
	req.NoError(a.Handle(ctx, inbound(t, event.TypingStop, event.TypingPayload{ConversationID: string(f.c1.ID), ReceiverID: string(f.u2.ID)})))

	// Then u2 sees both indicators with the name of u1
	started := bSink.named(event.TypingStartedName)
	req.Len(started, 1)
	req.Equal("u1", started[0].(event.TypingStarted).DisplayName)
	req.Len(bSink.named(event.TypingStoppedName), 1)

	// When the indicator targets someone outside the conversation, it is dropped silently
	req.NoError(a.Handle(ctx, inbound(t, event.TypingStart, event.TypingPayload{ConversationID: string(f.c1.ID), ReceiverID: uuid.NewString()})))
	req.NoError(a.Handle(ctx, inbound(t, event.TypingStart, event.TypingPayload{ConversationID: "c1", ReceiverID: string(f.u2.ID)})))
	req.Len(bSink.named(event.TypingStartedName), 1)
	req.Empty(aSink.named(event.ErrorName))
}

func TestSessionHandler_ConversationRead(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a, aSink := f.connect(t, f.u1)
	req.NoError(a.Handle(ctx, f.send(t, "one")))
	req.NoError(a.Handle(ctx, f.send(t, "two")))

	// When u2 connects later and reads the whole conversation
	b, _ := f.connect(t, f.u2)
	req.NoError(b.Handle(ctx, inbound(t, event.ConversationRead, event.ConversationReadPayload{ConversationID: string(f.c1.ID)})))

	// Then u1 gets a receipt per message
	req.Len(aSink.named(event.MessageReadName), 2)
	unread, err := f.store.ListUnread(ctx, f.c1.ID, f.u2.ID)
	req.NoError(err)
	req.Empty(unread)
}

func TestSessionHandler_AuthenticationFailure(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	session := f.orchestrator.NewSession()

	// When the token is unknown
	_, err := session.Authenticate(ctx, uuid.NewString())

	// Then the session is closed and never registered
	req.ErrorIs(err, errors.ErrUnauthenticated)
	req.Equal(StateClosed, session.State())
	req.ErrorIs(session.Activate(ctx, &recordingSink{}), errors.ErrSessionClosed)
	req.Zero(f.registry.Len())
}

// gatedAuth blocks inside Authenticate until released.
type gatedAuth struct {
	user    chat.User
	entered chan struct{}
	release chan struct{}
}

func (a gatedAuth) Authenticate(_ context.Context, _ string) (chat.User, error) {
	close(a.entered)
	<-a.release
	return a.user, nil
}

func TestSessionHandler_AuthenticateDoesNotHoldSessionLock(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	auth := gatedAuth{user: f.u1, entered: make(chan struct{}), release: make(chan struct{})}
	session := f.orchestrator.NewSession()
	session.auth = auth

	// Given an authentication waiting on its backend
	done := make(chan error, 1)
	go func() {
		_, err := session.Authenticate(ctx, "token")
		done <- err
	}()
	<-auth.entered

	// When the state is read meanwhile
	state := make(chan SessionState, 1)
	go func() { state <- session.State() }()

	// Then it answers without waiting for the backend
	select {
	case s := <-state:
		req.Equal(StateConnecting, s)
	case <-time.After(time.Second):
		req.Fail("State blocked behind Authenticate")
	}
	close(auth.release)
	req.NoError(<-done)
	req.Equal(StateAuthenticated, session.State())
	req.Equal(f.u1.ID, session.User().ID)
}

func TestSessionHandler_AuthenticateTwiceIsRefused(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	session := f.orchestrator.NewSession()
	_, err := session.Authenticate(ctx, string(f.u1.ID))
	req.NoError(err)

	_, err = session.Authenticate(ctx, string(f.u2.ID))

	req.ErrorIs(err, errors.ErrSessionClosed)
	req.Equal(f.u1.ID, session.User().ID)
}

// shutdownOnRegister shuts the orchestrator down right before a registration lands.
type shutdownOnRegister struct {
	*Registry
	before func()
}

func (r *shutdownOnRegister) Register(userID chat.UserID, sink contract.EventSink) (contract.EventSink, bool) {
	if r.before != nil {
		r.before()
		r.before = nil
	}
	return r.Registry.Register(userID, sink)
}

func TestSessionHandler_ActivateRacingShutdown(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := newBadgerStore(t)
	u1, err := store.CreateUser(ctx, "u1")
	req.NoError(err)
	registry := &shutdownOnRegister{Registry: NewRegistry()}
	orchestrator := NewOrchestrator(log, workers.NewSupervisor(log, 0), registry, store, tokenAuth{store: store}, 0)

	// Given a session past its stopping check whose registration lands after the shutdown cleared the registry
	session := orchestrator.NewSession()
	_, err = session.Authenticate(ctx, string(u1.ID))
	req.NoError(err)
	registry.before = func() { orchestrator.Shutdown(ctx) }

	// When it activates
	err = session.Activate(ctx, &recordingSink{})

	// Then the activation is refused and nothing outlives the shutdown
	req.ErrorIs(err, errors.ErrSessionClosed)
	req.Equal(StateClosed, session.State())
	req.Zero(registry.Len())
	_, err = store.GetPresence(ctx, u1.ID)
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestSessionHandler_CloseIsIdempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	_, aSink := f.connect(t, f.u1)
	b, _ := f.connect(t, f.u2)

	// When u2 disconnects several times concurrently
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Close(ctx)
		}()
	}
	wg.Wait()

	// Then u1 is told once and u2 is stored offline
	req.Len(aSink.named(event.UserOfflineName), 1)
	_, online := f.registry.Lookup(f.u2.ID)
	req.False(online)
	presence, err := f.store.GetPresence(ctx, f.u2.ID)
	req.NoError(err)
	req.False(presence.Online)
	req.Equal(StateClosed, b.State())
	req.ErrorIs(b.Handle(ctx, f.send(t, "late")), errors.ErrSessionClosed)
}

func TestSessionHandler_ReplacedSessionCloseKeepsUserOnline(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	_, aSink := f.connect(t, f.u1)

	// Given u2 connects from two devices
	old, oldSink := f.connect(t, f.u2)
	_, newSink := f.connect(t, f.u2)

	// When the older device disconnects
	old.Close(ctx)

	// Then u2 stays online and the newest device receives pushes
	req.Empty(aSink.named(event.UserOfflineName))
	current, ok := f.registry.Lookup(f.u2.ID)
	req.True(ok)
	req.Same(newSink, current)

	a := f.orchestrator.NewSession()
	_, err := a.Authenticate(ctx, string(f.u1.ID))
	req.NoError(err)
	req.NoError(a.Activate(ctx, aSink))
	req.NoError(a.Handle(ctx, f.send(t, "hi")))
	req.Len(newSink.named(event.MessageNewName), 1)
	req.Empty(oldSink.named(event.MessageNewName))
}

func TestOrchestrator_Shutdown(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a, _ := f.connect(t, f.u1)
	f.connect(t, f.u2)

	// When the orchestrator shuts down
	f.orchestrator.Shutdown(ctx)

	// Then every user is stored offline and the registry is empty
	req.Zero(f.registry.Len())
	for _, u := range []chat.User{f.u1, f.u2} {
		presence, err := f.store.GetPresence(ctx, u.ID)
		req.NoError(err)
		req.False(presence.Online)
	}

	// And closing a session afterwards stays silent, new sessions are refused
	a.Close(ctx)
	session := f.orchestrator.NewSession()
	_, err := session.Authenticate(ctx, string(f.u1.ID))
	req.NoError(err)
	req.ErrorIs(session.Activate(ctx, &recordingSink{}), errors.ErrSessionClosed)
}

func TestOrchestrator_GetPresence(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	// Given u1 never connected
	presence, err := f.orchestrator.GetPresence(ctx, f.u1.ID)
	req.NoError(err)
	req.False(presence.Online)

	// When u1 connects
	before := time.Now().UTC().Add(-time.Second)
	f.connect(t, f.u1)

	// Then it is reported online
	presence, err = f.orchestrator.GetPresence(ctx, f.u1.ID)
	req.NoError(err)
	req.True(presence.Online)
	req.True(presence.LastSeen.After(before))
	req.Equal(1, f.orchestrator.ConnectedUsers())

	_, err = f.orchestrator.GetPresence(ctx, chat.UserID(uuid.NewString()))
	req.ErrorIs(err, errors.ErrUserNotFound)
}
