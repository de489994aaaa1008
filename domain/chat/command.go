package chat

import (
	"chat-relay/errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultMaxContentLength is the maximum number of characters of a message content.
const DefaultMaxContentLength = 1000

var validate = validator.New()

type SendMessageCommand struct {
	ConversationID ConversationID `validate:"required,uuid"`
	SenderID       UserID         `validate:"required"`
	ReceiverID     UserID         `validate:"required,uuid"`
	Content        string
	SentAt         time.Time
}

type ReadMessageCommand struct {
	MessageID MessageID `validate:"required,uuid"`
	ReaderID  UserID    `validate:"required"`
}

type ReadConversationCommand struct {
	ConversationID ConversationID `validate:"required,uuid"`
	ReaderID       UserID         `validate:"required"`
}

type TypingCommand struct {
	ConversationID ConversationID `validate:"required,uuid"`
	FromID         UserID         `validate:"required"`
	ToID           UserID         `validate:"required,uuid"`
}

type PresenceQuery struct {
	UserID UserID `validate:"required,uuid"`
}

// Validate checks identifiers and normalises the content: it is trimmed and must hold
// between 1 and maxLength characters.
func (c SendMessageCommand) Validate(maxLength int) (SendMessageCommand, error) {
	if err := ValidateIDs(c); err != nil {
		return c, err
	}
	content, err := NormalizeContent(c.Content, maxLength)
	if err != nil {
		return c, err
	}
	c.Content = content
	return c, nil
}

// NormalizeContent trims the content and enforces the length bound counted in characters.
func NormalizeContent(content string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxContentLength
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", errors.ErrEmptyContent
	}
	if err := validate.Var(trimmed, fmt.Sprintf("max=%d", maxLength)); err != nil {
		return "", fmt.Errorf("%w (max %d characters)", errors.ErrContentTooLong, maxLength)
	}
	return trimmed, nil
}

// ValidateIDs runs the struct tags of a command and folds any failure into ErrMalformedID.
func ValidateIDs(cmd any) error {
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMalformedID, err)
	}
	return nil
}

// HistoryQuery pages through a conversation, newest first. A nil Cursor starts from the newest message.
type HistoryQuery struct {
	ConversationID ConversationID `validate:"required,uuid"`
	ReaderID       UserID         `validate:"required"`
	Cursor         *string
	Limit          int `validate:"gte=0"`
}
