package repositories

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type messageRecord struct {
	ID             string     `cbor:"1,keyasint"`
	ConversationID string     `cbor:"2,keyasint"`
	SenderID       string     `cbor:"3,keyasint"`
	ReceiverID     string     `cbor:"4,keyasint"`
	Content        string     `cbor:"5,keyasint"`
	Status         string     `cbor:"6,keyasint"`
	CreatedAt      time.Time  `cbor:"7,keyasint"`
	ReadAt         *time.Time `cbor:"8,keyasint,omitempty"`
}

func messageKey(id chat.MessageID) string { return "msg:" + string(id) }

func conversationMessagesPrefix(id chat.ConversationID) string {
	return fmt.Sprintf("convmsg:%s:", id)
}

// conversationMessageKey is formatted as "convmsg:{conversation}:{timestamp_padded}:{uuid}":
// the 19-digit zero padding keeps the lexicographical order chronological and the uuid
// separates two messages of the same nanosecond.
func conversationMessageKey(conversationID chat.ConversationID, at time.Time, id chat.MessageID) string {
	return fmt.Sprintf("%s%019d:%s", conversationMessagesPrefix(conversationID), at.UnixNano(), id)
}

// CreateMessage persists a new message in status sent along with its chronological index entry.
func (s *Store) CreateMessage(ctx context.Context, conversationID chat.ConversationID,
	senderID, receiverID chat.UserID, content string, at time.Time) (chat.Message, error) {
	record := messageRecord{
		ID:             uuid.NewString(),
		ConversationID: string(conversationID),
		SenderID:       string(senderID),
		ReceiverID:     string(receiverID),
		Content:        content,
		Status:         string(chat.StatusSent),
		CreatedAt:      at.UTC(),
	}
	err := s.update(ctx, "create message", func(txn *badger.Txn) error {
		found, err := exists(txn, conversationKey(conversationID))
		if err != nil {
			return err
		}
		if !found {
			return errors.ErrConversationNotFound
		}
		index := conversationMessageKey(conversationID, record.CreatedAt, chat.MessageID(record.ID))
		if err := txn.Set([]byte(index), []byte(record.ID)); err != nil {
			return err
		}
		return set(txn, messageKey(chat.MessageID(record.ID)), record)
	})
	if err != nil {
		return chat.Message{}, err
	}
	return toMessage(record), nil
}

func (s *Store) GetMessage(ctx context.Context, id chat.MessageID) (chat.Message, error) {
	var record messageRecord
	err := s.view(ctx, "get message", func(txn *badger.Txn) error {
		var err error
		record, err = get[messageRecord](txn, messageKey(id), errors.ErrMessageNotFound)
		return err
	})
	if err != nil {
		return chat.Message{}, err
	}
	return toMessage(record), nil
}

// UpdateMessageStatus advances the status of a message inside a single transaction.
// A status never regresses: asking for an equal or lower status returns the stored message
// untouched. The read time is stamped once, the first time the message becomes read.
func (s *Store) UpdateMessageStatus(ctx context.Context, id chat.MessageID, status chat.Status, readAt *time.Time) (chat.Message, error) {
	if !status.Valid() {
		return chat.Message{}, fmt.Errorf("%w: unknown status %q", errors.ErrValidation, status)
	}
	at := time.Now().UTC()
	if readAt != nil {
		at = *readAt
	}
	var message chat.Message
	err := s.update(ctx, "update message status", func(txn *badger.Txn) error {
		record, err := get[messageRecord](txn, messageKey(id), errors.ErrMessageNotFound)
		if err != nil {
			return err
		}
		var changed bool
		message, changed = toMessage(record).Apply(status, at)
		if !changed {
			return nil
		}
		return set(txn, messageKey(id), fromMessage(message))
	})
	if err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

// ListUnread returns, oldest first, the messages of a conversation addressed to receiverID
// that are not read yet.
func (s *Store) ListUnread(ctx context.Context, conversationID chat.ConversationID, receiverID chat.UserID) ([]chat.Message, error) {
	var unread []chat.Message
	err := s.view(ctx, "list unread", func(txn *badger.Txn) error {
		return s.scanConversation(txn, conversationID, func(m chat.Message) bool {
			if m.ReceiverID == receiverID && m.Status != chat.StatusRead {
				unread = append(unread, m)
			}
			return true
		})
	})
	return unread, err
}

// GetMessages pages through the history of a conversation, newest first.
// The cursor is the position of the last message of the previous page; nil starts from the newest.
// The returned cursor is nil once the history is exhausted.
func (s *Store) GetMessages(ctx context.Context, conversationID chat.ConversationID, cursor *string, limit int) ([]chat.Message, *string, error) {
	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}
	var messages []chat.Message
	var next *string
	err := s.view(ctx, "get messages", func(txn *badger.Txn) error {
		prefixStr := conversationMessagesPrefix(conversationID)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Start past the newest possible key then walk back in time
			seekKey = append([]byte(prefixStr), []byte("9999999999999999999")...)
		default:
			seekKey = append([]byte(prefixStr), []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		var lastKey string
		for ; it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				next = lo.ToPtr(lastKey)
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			id, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			record, err := get[messageRecord](txn, messageKey(chat.MessageID(id)), errors.ErrMessageNotFound)
			if err != nil {
				return err
			}
			messages = append(messages, toMessage(record))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return messages, next, nil
}

// scanConversation walks the messages of a conversation oldest first until fn returns false.
func (s *Store) scanConversation(txn *badger.Txn, conversationID chat.ConversationID, fn func(chat.Message) bool) error {
	prefix := []byte(conversationMessagesPrefix(conversationID))
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		id, err := it.Item().ValueCopy(nil)
		if err != nil {
			return err
		}
		record, err := get[messageRecord](txn, messageKey(chat.MessageID(id)), errors.ErrMessageNotFound)
		if err != nil {
			return err
		}
		if !fn(toMessage(record)) {
			return nil
		}
	}
	return nil
}

func fromMessage(m chat.Message) messageRecord {
	return messageRecord{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       string(m.SenderID),
		ReceiverID:     string(m.ReceiverID),
		Content:        m.Content,
		Status:         string(m.Status),
		CreatedAt:      m.CreatedAt,
		ReadAt:         m.ReadAt,
	}
}

func toMessage(record messageRecord) chat.Message {
	return chat.Message{
		ID:             chat.MessageID(record.ID),
		ConversationID: chat.ConversationID(record.ConversationID),
		SenderID:       chat.UserID(record.SenderID),
		ReceiverID:     chat.UserID(record.ReceiverID),
		Content:        record.Content,
		Status:         chat.Status(record.Status),
		CreatedAt:      record.CreatedAt,
		ReadAt:         record.ReadAt,
	}
}
