package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"context"
	"log/slog"
)

var _ contract.IDeliveryRouter = (*DeliveryRouter)(nil)

// DeliveryRouter pushes events to the live session of a user, if there is one.
// Delivery is at most once: there is no offline queue and no retry. An offline receiver
// finds persisted messages on its next history fetch.
type DeliveryRouter struct {
	log      *slog.Logger
	registry contract.IConnectionRegistry
}

func NewDeliveryRouter(log *slog.Logger, registry contract.IConnectionRegistry) *DeliveryRouter {
	return &DeliveryRouter{log: log, registry: registry}
}

// Route reports whether the event was accepted by the target's session.
func (r *DeliveryRouter) Route(ctx context.Context, e event.Event, target chat.UserID) bool {
	sink, ok := r.registry.Lookup(target)
	if !ok {
		r.log.Debug("Target offline, event not routed", "event", e.Name(), "user_id", target)
		return false
	}
	if err := sink.Consume(ctx, e); err != nil {
		r.log.Warn("Session refused event", "event", e.Name(), "user_id", target, "error", err)
		return false
	}
	return true
}

// Broadcast pushes e to every registered session except the one of except
// and returns how many sessions accepted it.
func (r *DeliveryRouter) Broadcast(ctx context.Context, e event.Event, except chat.UserID) int {
	delivered := 0
	for _, c := range r.registry.Snapshot() {
		if c.UserID == except {
			continue
		}
		if err := c.Sink.Consume(ctx, e); err != nil {
			r.log.Warn("Session refused broadcast", "event", e.Name(), "user_id", c.UserID, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}
