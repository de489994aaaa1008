package repositories

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type userRecord struct {
	ID          string    `cbor:"1,keyasint"`
	DisplayName string    `cbor:"2,keyasint"`
	CreatedAt   time.Time `cbor:"3,keyasint"`
}

func userKey(id chat.UserID) string { return "user:" + string(id) }

func usernameKey(displayName string) string {
	return "username:" + strings.ToLower(displayName)
}

// CreateUser persists a new user. Display names are unique, case insensitive.
func (s *Store) CreateUser(ctx context.Context, displayName string) (chat.User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return chat.User{}, fmt.Errorf("%w: display name is empty", errors.ErrValidation)
	}
	record := userRecord{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}
	err := s.update(ctx, "create user", func(txn *badger.Txn) error {
		taken, err := exists(txn, usernameKey(displayName))
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %s", errors.ErrUserAlreadyExists, displayName)
		}
		if err := txn.Set([]byte(usernameKey(displayName)), []byte(record.ID)); err != nil {
			return err
		}
		return set(txn, userKey(chat.UserID(record.ID)), record)
	})
	if err != nil {
		return chat.User{}, err
	}
	return toUser(record), nil
}

func (s *Store) GetUser(ctx context.Context, id chat.UserID) (chat.User, error) {
	var record userRecord
	err := s.view(ctx, "get user", func(txn *badger.Txn) error {
		var err error
		record, err = get[userRecord](txn, userKey(id), errors.ErrUserNotFound)
		return err
	})
	if err != nil {
		return chat.User{}, err
	}
	return toUser(record), nil
}

// FindUserByName resolves a display name, case insensitive.
func (s *Store) FindUserByName(ctx context.Context, displayName string) (chat.User, error) {
	var record userRecord
	err := s.view(ctx, "find user", func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(usernameKey(strings.TrimSpace(displayName))))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		record, err = get[userRecord](txn, userKey(chat.UserID(id)), errors.ErrUserNotFound)
		return err
	})
	if err != nil {
		return chat.User{}, err
	}
	return toUser(record), nil
}

// ListUsers returns every user, ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]chat.User, error) {
	var users []chat.User
	err := s.view(ctx, "list users", func(txn *badger.Txn) error {
		prefix := []byte("user:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record userRecord
			if err := it.Item().Value(func(val []byte) error {
				return decode(val, &record)
			}); err != nil {
				return err
			}
			users = append(users, toUser(record))
		}
		return nil
	})
	return users, err
}

func toUser(record userRecord) chat.User {
	return chat.User{ID: chat.UserID(record.ID), DisplayName: record.DisplayName}
}
