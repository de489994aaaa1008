package repositories

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type conversationRecord struct {
	ID            string    `cbor:"1,keyasint"`
	Participants  [2]string `cbor:"2,keyasint"`
	LastMessageID string    `cbor:"3,keyasint,omitempty"`
	LastActivity  time.Time `cbor:"4,keyasint"`
	CreatedAt     time.Time `cbor:"5,keyasint"`
}

func conversationKey(id chat.ConversationID) string { return "conv:" + string(id) }

func pairKey(a, b chat.UserID) string { return "pair:" + chat.PairKey(a, b) }

// FindOrCreateConversation returns the conversation of the pair {a, b}, creating it
// on first contact. Both users must exist and be distinct.
func (s *Store) FindOrCreateConversation(ctx context.Context, a, b chat.UserID) (chat.Conversation, error) {
	if a == b {
		return chat.Conversation{}, errors.ErrSelfConversation
	}
	var record conversationRecord
	err := s.update(ctx, "find or create conversation", func(txn *badger.Txn) error {
		for _, u := range []chat.UserID{a, b} {
			found, err := exists(txn, userKey(u))
			if err != nil {
				return err
			}
			if !found {
				return errors.ErrUserNotFound
			}
		}

		item, err := txn.Get([]byte(pairKey(a, b)))
		switch {
		case err == nil:
			id, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			record, err = get[conversationRecord](txn, conversationKey(chat.ConversationID(id)), errors.ErrConversationNotFound)
			return err
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		pair := chat.Pair(a, b)
		now := time.Now().UTC()
		record = conversationRecord{
			ID:           uuid.NewString(),
			Participants: [2]string{string(pair[0]), string(pair[1])},
			LastActivity: now,
			CreatedAt:    now,
		}
		if err := txn.Set([]byte(pairKey(a, b)), []byte(record.ID)); err != nil {
			return err
		}
		return set(txn, conversationKey(chat.ConversationID(record.ID)), record)
	})
	if err != nil {
		return chat.Conversation{}, err
	}
	return toConversation(record), nil
}

func (s *Store) GetConversation(ctx context.Context, id chat.ConversationID) (chat.Conversation, error) {
	var record conversationRecord
	err := s.view(ctx, "get conversation", func(txn *badger.Txn) error {
		var err error
		record, err = get[conversationRecord](txn, conversationKey(id), errors.ErrConversationNotFound)
		return err
	})
	if err != nil {
		return chat.Conversation{}, err
	}
	return toConversation(record), nil
}

// TouchConversation records the latest message of a conversation. An older message never
// replaces a more recent one.
func (s *Store) TouchConversation(ctx context.Context, id chat.ConversationID, lastMessageID chat.MessageID, at time.Time) error {
	return s.update(ctx, "touch conversation", func(txn *badger.Txn) error {
		record, err := get[conversationRecord](txn, conversationKey(id), errors.ErrConversationNotFound)
		if err != nil {
			return err
		}
		if at.Before(record.LastActivity) && record.LastMessageID != "" {
			return nil
		}
		record.LastMessageID = string(lastMessageID)
		record.LastActivity = at.UTC()
		return set(txn, conversationKey(id), record)
	})
}

// ListConversations returns the conversations of a user, most recent activity first.
func (s *Store) ListConversations(ctx context.Context, userID chat.UserID) ([]chat.Conversation, error) {
	var conversations []chat.Conversation
	err := s.view(ctx, "list conversations", func(txn *badger.Txn) error {
		prefix := []byte("conv:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record conversationRecord
			if err := it.Item().Value(func(val []byte) error {
				return decode(val, &record)
			}); err != nil {
				return err
			}
			c := toConversation(record)
			if userID == "" || c.HasParticipant(userID) {
				conversations = append(conversations, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(conversations, func(a, b chat.Conversation) int {
		return b.LastActivity.Compare(a.LastActivity)
	})
	return conversations, nil
}

func toConversation(record conversationRecord) chat.Conversation {
	return chat.Conversation{
		ID:            chat.ConversationID(record.ID),
		Participants:  [2]chat.UserID{chat.UserID(record.Participants[0]), chat.UserID(record.Participants[1])},
		LastMessageID: chat.MessageID(record.LastMessageID),
		LastActivity:  record.LastActivity,
		CreatedAt:     record.CreatedAt,
	}
}
