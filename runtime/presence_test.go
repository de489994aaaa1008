package runtime

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestPresenceTracker_Online(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := mocks.NewMockIStore(ctrl)
	router := mocks.NewMockIDeliveryRouter(ctrl)
	tracker := NewPresenceTracker(log, store, router)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tracker.now = func() time.Time { return now }
	user := chat.User{ID: chat.UserID(uuid.NewString()), DisplayName: "Alice"}

	// Then the flag is persisted before others are told, excluding the user itself
	gomock.InOrder(
		store.EXPECT().SetUserPresence(gomock.Any(), user.ID, true, now).Return(nil),
		router.EXPECT().Broadcast(gomock.Any(), event.UserOnline{UserID: user.ID, DisplayName: "Alice", At: now}, user.ID).Return(2),
	)

	// When the user comes online
	tracker.Online(context.Background(), user)
	req.True(ctrl.Satisfied())
}

func TestPresenceTracker_Offline_StoreFailureStillBroadcasts(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := mocks.NewMockIStore(ctrl)
	router := mocks.NewMockIDeliveryRouter(ctrl)
	tracker := NewPresenceTracker(log, store, router)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tracker.now = func() time.Time { return now }
	user := chat.User{ID: chat.UserID(uuid.NewString()), DisplayName: "Bob"}

	// Given the store is down
	store.EXPECT().SetUserPresence(gomock.Any(), user.ID, false, now).
		Return(errors.Unavailable("set presence", errors.ErrStoreUnavailable))

	// Then the offline event still reaches the connected users
	router.EXPECT().Broadcast(gomock.Any(), event.UserOffline{UserID: user.ID, DisplayName: "Bob", LastSeen: now}, user.ID).Return(1)

	tracker.Offline(context.Background(), user)
	req.True(ctrl.Satisfied())
}
