package repositories

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type presenceRecord struct {
	Online   bool      `cbor:"1,keyasint"`
	LastSeen time.Time `cbor:"2,keyasint"`
}

func presenceKey(id chat.UserID) string { return "presence:" + string(id) }

// SetUserPresence stores the online flag and the last seen moment of a user.
func (s *Store) SetUserPresence(ctx context.Context, userID chat.UserID, online bool, lastSeen time.Time) error {
	return s.update(ctx, "set presence", func(txn *badger.Txn) error {
		return set(txn, presenceKey(userID), presenceRecord{Online: online, LastSeen: lastSeen.UTC()})
	})
}

// GetPresence returns ErrNotFound for a user that never connected.
func (s *Store) GetPresence(ctx context.Context, userID chat.UserID) (chat.Presence, error) {
	var record presenceRecord
	err := s.view(ctx, "get presence", func(txn *badger.Txn) error {
		var err error
		record, err = get[presenceRecord](txn, presenceKey(userID), errors.ErrNotFound)
		return err
	})
	if err != nil {
		return chat.Presence{}, err
	}
	return chat.Presence{UserID: userID, Online: record.Online, LastSeen: record.LastSeen}, nil
}
