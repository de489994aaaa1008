package workers

import (
	"chat-relay/contract"
	"context"
	"log/slog"
	"time"
)

const defaultBacklogInterval = 10 * time.Second

// Buffered is implemented by sinks that can report how full their buffer is.
type Buffered interface {
	Len() int
	Cap() int
}

// ConnectionSource lists the live sessions.
type ConnectionSource interface {
	Snapshot() []contract.Connection
}

// BacklogWorker periodically samples the outbound buffer of every live session.
// Reading len and cap is non-blocking, so this won't interfere with the writers.
// A session whose free space drops to the threshold is about to refuse events.
type BacklogWorker struct {
	log                  *slog.Logger
	connections          ConnectionSource
	interval             time.Duration
	lowCapacityThreshold int
}

func NewBacklogWorker(log *slog.Logger, connections ConnectionSource,
	interval time.Duration, lowCapacityThreshold int) *BacklogWorker {
	if interval <= 0 {
		interval = defaultBacklogInterval
	}
	return &BacklogWorker{
		log:                  log,
		connections:          connections,
		interval:             interval,
		lowCapacityThreshold: lowCapacityThreshold,
	}
}

func (w *BacklogWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping backlog sampling")
			return nil
		case <-ticker.C:
			w.sample()
		}
	}
}

// sample returns the number of sessions found short of buffer space.
func (w *BacklogWorker) sample() int {
	congested := 0
	for _, c := range w.connections.Snapshot() {
		buffered, ok := c.Sink.(Buffered)
		if !ok || buffered.Cap() <= 0 {
			continue
		}
		capacityLeft := buffered.Cap() - buffered.Len()
		if capacityLeft <= w.lowCapacityThreshold {
			congested++
			w.log.Warn("Session buffer almost full",
				"user_id", c.UserID,
				"length", buffered.Len(),
				"capacity", buffered.Cap())
		}
	}
	if congested > 0 {
		w.log.Debug("Backlog sampled", "congested_sessions", congested)
	}
	return congested
}
