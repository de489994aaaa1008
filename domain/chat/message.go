// Package chat contains the core concepts of the two-party chat system.
// No runtime, network, or storage logic should be added here.
package chat

import (
	"time"
)

type MessageID string

// Status is the delivery state of a message. It only moves forward.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// Rank orders statuses: sent < delivered < read. Unknown statuses rank below sent.
func (s Status) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

func (s Status) Valid() bool {
	return s.Rank() > 0
}

// Advance returns the most advanced of s and next, and whether that is a change.
// A status never regresses, so advancing to an equal or lower status is a no-op.
func (s Status) Advance(next Status) (Status, bool) {
	if next.Rank() <= s.Rank() {
		return s, false
	}
	return next, true
}

// Message is a single text message of a conversation.
// Sender and receiver are stored explicitly even though the conversation implies them.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       UserID
	ReceiverID     UserID
	Content        string
	Status         Status
	CreatedAt      time.Time
	ReadAt         *time.Time
}

// Apply advances the message status and stamps the read time when it becomes read.
func (m Message) Apply(next Status, at time.Time) (Message, bool) {
	status, changed := m.Status.Advance(next)
	if !changed {
		return m, false
	}
	m.Status = status
	if status == StatusRead && m.ReadAt == nil {
		readAt := at.UTC()
		m.ReadAt = &readAt
	}
	return m, true
}
