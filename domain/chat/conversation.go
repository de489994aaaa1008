package chat

import (
	"time"
)

type UserID string

type ConversationID string

// User is the identity referenced by the core. It is created by the store and never mutated here.
type User struct {
	ID          UserID
	DisplayName string
}

// Presence is the online flag and last seen moment of a user.
// It changes on connect and disconnect only, never on message activity.
type Presence struct {
	UserID   UserID
	Online   bool
	LastSeen time.Time
}

// Conversation is the unique container of the messages exchanged by two distinct users.
type Conversation struct {
	ID            ConversationID
	Participants  [2]UserID
	LastMessageID MessageID
	LastActivity  time.Time
	CreatedAt     time.Time
}

// Pair normalises two user ids so that {a, b} and {b, a} give the same ordered pair.
func Pair(a, b UserID) [2]UserID {
	if b < a {
		return [2]UserID{b, a}
	}
	return [2]UserID{a, b}
}

// PairKey is the unique key of an unordered pair of users.
func PairKey(a, b UserID) string {
	p := Pair(a, b)
	return string(p[0]) + ":" + string(p[1])
}

func (c Conversation) HasParticipant(u UserID) bool {
	return c.Participants[0] == u || c.Participants[1] == u
}

// Peer returns the other participant of the conversation.
func (c Conversation) Peer(u UserID) (UserID, bool) {
	switch u {
	case c.Participants[0]:
		return c.Participants[1], true
	case c.Participants[1]:
		return c.Participants[0], true
	default:
		return "", false
	}
}
