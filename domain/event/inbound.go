package event

import (
	"encoding/json"
)

// Inbound is a frame received from an authenticated session, before decoding its data.
type Inbound struct {
	Type Name
	// Ref is an optional client correlation id echoed back in error events.
	Ref  string
	Data json.RawMessage
}

type SendPayload struct {
	ConversationID string `json:"conversationId"`
	ReceiverID     string `json:"receiverId"`
	Content        string `json:"content"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	ReceiverID     string `json:"receiverId"`
}

// ReadPayload acknowledges one message. SenderID is informative: the stored sender wins.
type ReadPayload struct {
	MessageID string `json:"messageId"`
	SenderID  string `json:"senderId,omitempty"`
}

type ConversationReadPayload struct {
	ConversationID string `json:"conversationId"`
}
