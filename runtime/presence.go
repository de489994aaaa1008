package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"time"
)

var _ contract.IPresenceTracker = (*PresenceTracker)(nil)

// PresenceTracker turns registry transitions into persisted presence and broadcasts.
// The store write, the broadcast and the registry mutation are not atomic: a crash in
// between leaves a stale flag that the next connect or disconnect corrects. The registry
// stays the source of truth for routing and is never rolled back on a failed write.
type PresenceTracker struct {
	log    *slog.Logger
	store  contract.IStore
	router contract.IDeliveryRouter
	now    func() time.Time
}

func NewPresenceTracker(log *slog.Logger, store contract.IStore, router contract.IDeliveryRouter) *PresenceTracker {
	return &PresenceTracker{
		log:    log,
		store:  store,
		router: router,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Online persists online=true and tells every other connected user.
func (p *PresenceTracker) Online(ctx context.Context, user chat.User) {
	at := p.now()
	if err := p.store.SetUserPresence(ctx, user.ID, true, at); err != nil {
		p.log.Error("Failed to persist online presence", "user_id", user.ID, "error", err)
	}
	n := p.router.Broadcast(ctx, event.UserOnline{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		At:          at,
	}, user.ID)
	p.log.Debug("Presence online broadcast", "user_id", user.ID, "receivers", n)
}

// Offline persists online=false with the last seen moment and tells every other connected user.
func (p *PresenceTracker) Offline(ctx context.Context, user chat.User) {
	at := p.now()
	if err := p.store.SetUserPresence(ctx, user.ID, false, at); err != nil {
		p.log.Error("Failed to persist offline presence", "user_id", user.ID, "error", err)
	}
	n := p.router.Broadcast(ctx, event.UserOffline{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		LastSeen:    at,
	}, user.ID)
	p.log.Debug("Presence offline broadcast", "user_id", user.ID, "receivers", n)
}
