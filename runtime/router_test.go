package runtime

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/mocks"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestDeliveryRouter_Route_RegisteredTarget(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	router := NewDeliveryRouter(log, registry)
	target := chat.UserID(uuid.NewString())
	sink := mocks.NewMockEventSink(ctrl)
	e := event.TypingStarted{ConversationID: chat.ConversationID(uuid.NewString()), UserID: chat.UserID(uuid.NewString())}

	// Given a connected target
	registry.Register(target, sink)

	// Then its session receives the event exactly once
	sink.EXPECT().Consume(gomock.Any(), e).Return(nil).Times(1)

	// When the event is routed
	req.True(router.Route(context.Background(), e, target))
}

func TestDeliveryRouter_Route_UnregisteredTarget(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	router := NewDeliveryRouter(log, registry)
	other := mocks.NewMockEventSink(ctrl)

	// Given another user is connected but not the target
	registry.Register(chat.UserID(uuid.NewString()), other)
	other.EXPECT().Consume(gomock.Any(), gomock.Any()).Times(0)

	// When the event is routed to an offline user
	ok := router.Route(context.Background(), event.TypingStopped{}, chat.UserID(uuid.NewString()))

	// Then nothing is delivered
	req.False(ok)
}

func TestDeliveryRouter_Route_RefusingSink(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	router := NewDeliveryRouter(log, registry)
	target := chat.UserID(uuid.NewString())
	sink := mocks.NewMockEventSink(ctrl)
	registry.Register(target, sink)

	// Given a session whose buffer is full
	sink.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(errors.New("buffer full")).Times(1)

	// Then the route is reported as failed and never retried
	req.False(router.Route(context.Background(), event.TypingStopped{}, target))
}

func TestDeliveryRouter_Broadcast_SkipsExcept(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	router := NewDeliveryRouter(log, registry)

	self := chat.UserID(uuid.NewString())
	selfSink := mocks.NewMockEventSink(ctrl)
	okSink := mocks.NewMockEventSink(ctrl)
	failingSink := mocks.NewMockEventSink(ctrl)
	registry.Register(self, selfSink)
	registry.Register(chat.UserID(uuid.NewString()), okSink)
	registry.Register(chat.UserID(uuid.NewString()), failingSink)

	e := event.UserOnline{UserID: self}
	selfSink.EXPECT().Consume(gomock.Any(), gomock.Any()).Times(0)
	okSink.EXPECT().Consume(gomock.Any(), e).Return(nil).Times(1)
	failingSink.EXPECT().Consume(gomock.Any(), e).Return(errors.New("closed")).Times(1)

	// When the presence of self is broadcast
	n := router.Broadcast(context.Background(), e, self)

	// Then every other session is tried and only accepted deliveries are counted
	req.Equal(1, n)
}
