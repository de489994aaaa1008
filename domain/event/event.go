// Package event defines what travels between sessions: outbound events pushed to a
// session and inbound frames received from it.
package event

import (
	"chat-relay/domain/chat"
	"time"
)

type Name string

// Inbound frames.
const (
	MessageSend      Name = "message:send"
	MessageReadAck   Name = "message:read"
	ConversationRead Name = "conversation:read"
	TypingStart      Name = "typing:start"
	TypingStop       Name = "typing:stop"
)

// Outbound events. typing:start, typing:stop and message:read keep the same name in both directions.
const (
	MessageNewName       Name = "message:new"
	MessageDeliveredName Name = "message:delivered"
	MessageReadName      Name = "message:read"
	UserOnlineName       Name = "user:online"
	UserOfflineName      Name = "user:offline"
	TypingStartedName    Name = "typing:start"
	TypingStoppedName    Name = "typing:stop"
	ErrorName            Name = "error"
)

// Event is pushed to a live session. Payload is the transport independent body,
// made only of strings, bools, numbers and nested maps.
type Event interface {
	Name() Name
	Payload() map[string]any
}

type MessageNew struct {
	Message chat.Message
}

func (MessageNew) Name() Name { return MessageNewName }

func (e MessageNew) Payload() map[string]any {
	return MessagePayload(e.Message)
}

type MessageDelivered struct {
	MessageID      chat.MessageID
	ConversationID chat.ConversationID
	At             time.Time
}

func (MessageDelivered) Name() Name { return MessageDeliveredName }

func (e MessageDelivered) Payload() map[string]any {
	return map[string]any{
		"messageId":      string(e.MessageID),
		"conversationId": string(e.ConversationID),
		"deliveredAt":    formatTime(e.At),
	}
}

type MessageRead struct {
	MessageID      chat.MessageID
	ConversationID chat.ConversationID
	ReadBy         chat.UserID
	At             time.Time
}

func (MessageRead) Name() Name { return MessageReadName }

func (e MessageRead) Payload() map[string]any {
	return map[string]any{
		"messageId":      string(e.MessageID),
		"conversationId": string(e.ConversationID),
		"readBy":         string(e.ReadBy),
		"readAt":         formatTime(e.At),
	}
}

type UserOnline struct {
	UserID      chat.UserID
	DisplayName string
	At          time.Time
}

func (UserOnline) Name() Name { return UserOnlineName }

func (e UserOnline) Payload() map[string]any {
	return map[string]any{
		"userId":      string(e.UserID),
		"displayName": e.DisplayName,
		"at":          formatTime(e.At),
	}
}

type UserOffline struct {
	UserID      chat.UserID
	DisplayName string
	LastSeen    time.Time
}

func (UserOffline) Name() Name { return UserOfflineName }

func (e UserOffline) Payload() map[string]any {
	return map[string]any{
		"userId":      string(e.UserID),
		"displayName": e.DisplayName,
		"lastSeen":    formatTime(e.LastSeen),
	}
}

type TypingStarted struct {
	ConversationID chat.ConversationID
	UserID         chat.UserID
	DisplayName    string
}

func (TypingStarted) Name() Name { return TypingStartedName }

func (e TypingStarted) Payload() map[string]any {
	return map[string]any{
		"conversationId": string(e.ConversationID),
		"userId":         string(e.UserID),
		"displayName":    e.DisplayName,
	}
}

type TypingStopped struct {
	ConversationID chat.ConversationID
	UserID         chat.UserID
}

func (TypingStopped) Name() Name { return TypingStoppedName }

func (e TypingStopped) Payload() map[string]any {
	return map[string]any{
		"conversationId": string(e.ConversationID),
		"userId":         string(e.UserID),
	}
}

// ProtocolError reports a rejected inbound frame to its sender. The session stays active.
type ProtocolError struct {
	Code    string
	Message string
	// Ref echoes the client reference of the rejected frame, if any.
	Ref string
	// Type is the name of the rejected frame.
	Type Name
}

func (ProtocolError) Name() Name { return ErrorName }

func (e ProtocolError) Payload() map[string]any {
	p := map[string]any{
		"code":    e.Code,
		"message": e.Message,
	}
	if e.Ref != "" {
		p["ref"] = e.Ref
	}
	if e.Type != "" {
		p["type"] = string(e.Type)
	}
	return p
}

func MessagePayload(m chat.Message) map[string]any {
	p := map[string]any{
		"id":             string(m.ID),
		"conversationId": string(m.ConversationID),
		"senderId":       string(m.SenderID),
		"receiverId":     string(m.ReceiverID),
		"content":        m.Content,
		"status":         string(m.Status),
		"createdAt":      formatTime(m.CreatedAt),
	}
	if m.ReadAt != nil {
		p["readAt"] = formatTime(*m.ReadAt)
	}
	return p
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
