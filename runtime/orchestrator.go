// Package runtime holds the realtime core: the connection registry, presence, the message
// lifecycle, delivery routing, typing relay and the per-session handler.
// It orchestrates the system without knowing any transport or storage technology.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

type Orchestrator struct {
	mu         sync.Mutex
	log        *slog.Logger
	supervisor contract.ISupervisor
	registry   contract.IConnectionRegistry
	store      contract.IStore
	auth       contract.IAuthenticator
	router     *DeliveryRouter
	presence   *PresenceTracker
	lifecycle  *MessageLifecycle
	typing     *TypingRelay
	workers    []contract.Worker
	stopping   atomic.Bool
}

// NewOrchestrator builds every core component around a single registry.
func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry contract.IConnectionRegistry, store contract.IStore,
	auth contract.IAuthenticator, maxContentLength int) *Orchestrator {
	router := NewDeliveryRouter(log, registry)
	return &Orchestrator{
		log:        log,
		supervisor: supervisor,
		registry:   registry,
		store:      store,
		auth:       auth,
		router:     router,
		presence:   NewPresenceTracker(log, store, router),
		lifecycle:  NewMessageLifecycle(log, store, maxContentLength),
		typing:     NewTypingRelay(log, router),
	}
}

// NewSession returns the handler of a fresh connection, in state connecting.
func (o *Orchestrator) NewSession() *SessionHandler {
	return &SessionHandler{
		log:       o.log,
		auth:      o.auth,
		store:     o.store,
		registry:  o.registry,
		router:    o.router,
		presence:  o.presence,
		lifecycle: o.lifecycle,
		typing:    o.typing,
		stopping:  &o.stopping,
		state:     StateConnecting,
	}
}

// Add registers background workers run under supervision by Start.
func (o *Orchestrator) Add(workers ...contract.Worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.workers = append(o.workers, workers...)
}

// Start runs the supervised workers and blocks until they all return.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	o.supervisor.Add(o.workers...)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// GetPresence answers from the registry for connected users and from the store otherwise.
func (o *Orchestrator) GetPresence(ctx context.Context, userID chat.UserID) (chat.Presence, error) {
	presence, err := o.store.GetPresence(ctx, userID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return chat.Presence{}, err
	}
	if err != nil {
		if _, err := o.store.GetUser(ctx, userID); err != nil {
			return chat.Presence{}, err
		}
		presence = chat.Presence{UserID: userID}
	}
	if _, online := o.registry.Lookup(userID); online {
		presence.Online = true
	}
	return presence, nil
}

// ConnectedUsers is the number of users with a live session.
func (o *Orchestrator) ConnectedUsers() int {
	return o.registry.Len()
}

// Shutdown refuses new sessions, announces every connected user offline and empties the registry.
// Sinks that can be closed are closed so that their transport ends the connection.
// Sessions closing afterwards find themselves unregistered and stay silent.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.stopping.Store(true)
	connections := o.registry.Snapshot()
	o.log.Info("Announcing connected users offline", "sessions", len(connections))

	for _, c := range connections {
		user, err := o.store.GetUser(ctx, c.UserID)
		if err != nil {
			o.log.Warn("Unknown user during shutdown", "user_id", c.UserID, "error", err)
			user = chat.User{ID: c.UserID}
		}
		o.presence.Offline(ctx, user)
	}
	for _, c := range o.registry.Clear() {
		if closer, ok := c.Sink.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

// Stop cancels the supervised workers.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
