package sink

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var _ contract.EventSink = (*ConnectionSink)(nil)

// ConnectionSink is the outbound buffer of one transport connection.
// Routers push into it; a single writer goroutine owned by the transport drains Events.
// A full buffer makes Consume wait up to the delivery timeout, then the event is refused.
type ConnectionSink struct {
	log             *slog.Logger
	events          chan event.Event
	done            chan struct{}
	closeOnce       sync.Once
	deliveryTimeout time.Duration
}

func NewConnectionSink(log *slog.Logger, bufferSize int, deliveryTimeout time.Duration) *ConnectionSink {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &ConnectionSink{
		log:             log,
		events:          make(chan event.Event, bufferSize),
		done:            make(chan struct{}),
		deliveryTimeout: deliveryTimeout,
	}
}

// Consume is called by the router.
// Redirect the event through the owner of the channel, the transport will take it from now.
func (s *ConnectionSink) Consume(ctx context.Context, e event.Event) error {
	select {
	case <-s.done:
		return errors.ErrSessionClosed
	default:
	}

	select {
	case s.events <- e:
		return nil
	default:
	}

	timer := time.NewTimer(s.deliveryTimeout)
	defer timer.Stop()
	select {
	case s.events <- e:
		return nil
	case <-s.done:
		return errors.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		s.log.Warn("Backpressure, connection buffer full", "event", e.Name(), "capacity", cap(s.events))
		return fmt.Errorf("connection buffer full after %s", s.deliveryTimeout)
	}
}

// Events is drained by the transport writer.
func (s *ConnectionSink) Events() <-chan event.Event {
	return s.events
}

// Len is the number of events waiting for the writer.
func (s *ConnectionSink) Len() int {
	return len(s.events)
}

func (s *ConnectionSink) Cap() int {
	return cap(s.events)
}

// Done is closed once the connection is gone.
func (s *ConnectionSink) Done() <-chan struct{} {
	return s.done
}

// Pending returns the events still buffered, without waiting. The writer flushes them once Done is closed.
func (s *ConnectionSink) Pending() []event.Event {
	var pending []event.Event
	for {
		select {
		case e := <-s.events:
			pending = append(pending, e)
		default:
			return pending
		}
	}
}

// Close refuses any further event. The events channel is never closed so a racing
// Consume cannot panic.
func (s *ConnectionSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
