package chat

import (
	"chat-relay/errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestStatus_Advance_NeverRegresses(t *testing.T) {
	tests := []struct {
		from, to    Status
		want        Status
		wantChanged bool
	}{
		{StatusSent, StatusDelivered, StatusDelivered, true},
		{StatusSent, StatusRead, StatusRead, true},
		{StatusDelivered, StatusRead, StatusRead, true},
		{StatusDelivered, StatusDelivered, StatusDelivered, false},
		{StatusDelivered, StatusSent, StatusDelivered, false},
		{StatusRead, StatusDelivered, StatusRead, false},
		{StatusRead, StatusSent, StatusRead, false},
		{StatusRead, StatusRead, StatusRead, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			req := require.New(t)
			got, changed := tt.from.Advance(tt.to)
			req.Equal(tt.want, got)
			req.Equal(tt.wantChanged, changed)
		})
	}
}

func TestMessage_Apply_StampsReadTimeOnce(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := Message{ID: "m1", Status: StatusDelivered}

	read, changed := msg.Apply(StatusRead, at)
	req.True(changed)
	req.Equal(StatusRead, read.Status)
	req.NotNil(read.ReadAt)
	req.Equal(at, *read.ReadAt)

	again, changed := read.Apply(StatusRead, at.Add(time.Hour))
	req.False(changed)
	req.Equal(at, *again.ReadAt)
}

func TestConversation_PairIsUnordered(t *testing.T) {
	req := require.New(t)

	req.Equal(PairKey("alice", "bob"), PairKey("bob", "alice"))
	req.Equal([2]UserID{"alice", "bob"}, Pair("bob", "alice"))

	conv := Conversation{Participants: Pair("bob", "alice")}
	req.True(conv.HasParticipant("bob"))
	req.False(conv.HasParticipant("carol"))

	peer, ok := conv.Peer("alice")
	req.True(ok)
	req.Equal(UserID("bob"), peer)

	_, ok = conv.Peer("carol")
	req.False(ok)
}

func TestNormalizeContent(t *testing.T) {
	t.Run("trims surrounding spaces", func(t *testing.T) {
		req := require.New(t)
		content, err := NormalizeContent("  hi there \n", DefaultMaxContentLength)
		req.NoError(err)
		req.Equal("hi there", content)
	})

	t.Run("rejects blank content", func(t *testing.T) {
		_, err := NormalizeContent(" \t\n ", DefaultMaxContentLength)
		require.ErrorIs(t, err, errors.ErrEmptyContent)
		require.ErrorIs(t, err, errors.ErrValidation)
	})

	t.Run("counts characters not bytes", func(t *testing.T) {
		req := require.New(t)
		content, err := NormalizeContent(strings.Repeat("é", 1000), DefaultMaxContentLength)
		req.NoError(err)
		req.Len([]rune(content), 1000)
	})

	t.Run("rejects content above the bound", func(t *testing.T) {
		_, err := NormalizeContent(strings.Repeat("a", 1001), DefaultMaxContentLength)
		require.ErrorIs(t, err, errors.ErrContentTooLong)
	})
}

func TestSendMessageCommand_Validate(t *testing.T) {
	valid := SendMessageCommand{
		ConversationID: ConversationID(uuid.NewString()),
		SenderID:       UserID(uuid.NewString()),
		ReceiverID:     UserID(uuid.NewString()),
		Content:        " hello ",
	}

	t.Run("normalises a valid command", func(t *testing.T) {
		req := require.New(t)
		cmd, err := valid.Validate(DefaultMaxContentLength)
		req.NoError(err)
		req.Equal("hello", cmd.Content)
	})

	t.Run("rejects a malformed conversation id", func(t *testing.T) {
		cmd := valid
		cmd.ConversationID = "c1"
		_, err := cmd.Validate(DefaultMaxContentLength)
		require.ErrorIs(t, err, errors.ErrMalformedID)
	})

	t.Run("rejects a missing receiver", func(t *testing.T) {
		cmd := valid
		cmd.ReceiverID = ""
		_, err := cmd.Validate(DefaultMaxContentLength)
		require.ErrorIs(t, err, errors.ErrValidation)
	})
}
