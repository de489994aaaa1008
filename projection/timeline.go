// Package projection builds local timelines from observed events.
// Handles ordering, deduplication, and status updates.
// Does not emit events or interact with UI directly.
package projection

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"slices"
	"sync"
	"time"
)

// Timeline is what one client knows about its conversations, rebuilt from the events it received.
type Timeline struct {
	mu       sync.Mutex
	Owner    chat.UserID
	messages map[chat.MessageID]chat.Message
}

func NewTimeline(owner chat.UserID) *Timeline {
	return &Timeline{
		Owner:    owner,
		messages: make(map[chat.MessageID]chat.Message),
	}
}

// Consume applies an outbound event given as its name and decoded data.
// It returns the message it changed, if any. Replayed events and status regressions change nothing.
func (t *Timeline) Consume(name event.Name, data map[string]any) (chat.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch name {
	case event.MessageNewName:
		m := fromPayload(data)
		if m.ID == "" {
			return chat.Message{}, false
		}
		if known, ok := t.messages[m.ID]; ok {
			// The echo of our own message and the receipts may arrive in any order.
			if next, changed := known.Apply(m.Status, timeOf(data, "readAt")); changed {
				t.messages[m.ID] = next
				return next, true
			}
			return known, false
		}
		t.messages[m.ID] = m
		return m, true
	case event.MessageDeliveredName:
		return t.advance(data, chat.StatusDelivered, time.Time{})
	case event.MessageReadName:
		return t.advance(data, chat.StatusRead, timeOf(data, "readAt"))
	}
	return chat.Message{}, false
}

func (t *Timeline) advance(data map[string]any, status chat.Status, at time.Time) (chat.Message, bool) {
	id := chat.MessageID(stringOf(data, "messageId"))
	known, ok := t.messages[id]
	if !ok {
		return chat.Message{}, false
	}
	next, changed := known.Apply(status, at)
	if changed {
		t.messages[id] = next
	}
	return next, changed
}

// Messages returns the messages of a conversation, oldest first.
func (t *Timeline) Messages(conversationID chat.ConversationID) []chat.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []chat.Message
	for _, m := range t.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b chat.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

func fromPayload(data map[string]any) chat.Message {
	m := chat.Message{
		ID:             chat.MessageID(stringOf(data, "id")),
		ConversationID: chat.ConversationID(stringOf(data, "conversationId")),
		SenderID:       chat.UserID(stringOf(data, "senderId")),
		ReceiverID:     chat.UserID(stringOf(data, "receiverId")),
		Content:        stringOf(data, "content"),
		Status:         chat.Status(stringOf(data, "status")),
		CreatedAt:      timeOf(data, "createdAt"),
	}
	if readAt := timeOf(data, "readAt"); !readAt.IsZero() {
		m.ReadAt = &readAt
	}
	return m
}

func stringOf(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func timeOf(data map[string]any, key string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, stringOf(data, key))
	if err != nil {
		return time.Time{}
	}
	return t
}
