package sink

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestConnectionSink_Consume(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink(logs.GetLoggerFromLevel(slog.LevelDebug), 2, 10*time.Millisecond)
	ctx := context.Background()

	// When two events are pushed into a buffer of two
	req.NoError(s.Consume(ctx, event.TypingStarted{DisplayName: "Alice"}))
	req.NoError(s.Consume(ctx, event.TypingStopped{}))

	// Then they come out in order
	req.Equal(event.TypingStartedName, (<-s.Events()).Name())
	req.Equal(event.TypingStoppedName, (<-s.Events()).Name())
}

func TestConnectionSink_Backpressure(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink(logs.GetLoggerFromLevel(slog.LevelDebug), 1, 20*time.Millisecond)
	ctx := context.Background()

	// Given a full buffer nobody drains
	req.NoError(s.Consume(ctx, event.TypingStopped{}))

	// Then the next event is refused after the delivery timeout
	start := time.Now()
	err := s.Consume(ctx, event.TypingStopped{})
	req.Error(err)
	req.GreaterOrEqual(time.Since(start), 20*time.Millisecond)
}

func TestConnectionSink_Close(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink(logs.GetLoggerFromLevel(slog.LevelDebug), 1, time.Second)

	// When the connection is gone
	s.Close()
	s.Close()

	// Then events are refused immediately
	req.ErrorIs(s.Consume(context.Background(), event.TypingStopped{}), errors.ErrSessionClosed)
	select {
	case <-s.Done():
	default:
		req.Fail("done should be closed")
	}
}

func TestConnectionSink_PendingAfterClose(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink(logs.GetLoggerFromLevel(slog.LevelDebug), 4, time.Second)
	ctx := context.Background()

	// Given two buffered events when the server closes the connection
	req.NoError(s.Consume(ctx, event.UserOffline{DisplayName: "Bob"}))
	req.NoError(s.Consume(ctx, event.TypingStopped{}))
	s.Close()

	// Then the writer can still flush them in order, and only once
	pending := s.Pending()
	req.Len(pending, 2)
	req.Equal(event.UserOfflineName, pending[0].Name())
	req.Equal(event.TypingStoppedName, pending[1].Name())
	req.Empty(s.Pending())
}
