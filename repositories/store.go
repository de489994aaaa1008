package repositories

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"context"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

const (
	defaultPageSize = 50
	maxAttempts     = 3
)

// Timestamps keep their nanoseconds so that stored and returned values compare equal.
var encMode, _ = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()

var _ contract.IStore = (*Store)(nil)

// Store persists users, conversations, messages and presence in BadgerDB.
// Values are CBOR encoded. Keys:
//
//	user:{id}                                   user record
//	username:{display name}                     user id, keeps display names unique
//	conv:{id}                                   conversation record
//	pair:{low user id}:{high user id}           conversation id, one conversation per pair
//	msg:{id}                                    message record
//	convmsg:{conversation}:{ts padded}:{id}     message id, chronological index of a conversation
//	presence:{user id}                          presence record
type Store struct {
	db       *badger.DB
	log      *slog.Logger
	pageSize int
}

func NewStore(db *badger.DB, log *slog.Logger, pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Store{db: db, log: log, pageSize: pageSize}
}

// update runs fn in a read-write transaction, retried on a write conflict.
func (s *Store) update(ctx context.Context, op string, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Unavailable(op, err)
	}
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		s.log.Debug("Transaction conflict, retrying", "op", op, "attempt", attempt)
	}
	return s.fail(op, err)
}

func (s *Store) view(ctx context.Context, op string, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Unavailable(op, err)
	}
	return s.fail(op, s.db.View(fn))
}

// fail keeps domain errors as they are and turns anything else into ErrStoreUnavailable.
func (s *Store) fail(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errors.ErrValidation),
		errors.Is(err, errors.ErrNotFound),
		errors.Is(err, errors.ErrUserAlreadyExists):
		return err
	default:
		s.log.Error("Store operation failed", "op", op, "error", err)
		return errors.Unavailable(op, err)
	}
}

func get[T any](txn *badger.Txn, key string, notFound error) (T, error) {
	var record T
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return record, notFound
	}
	if err != nil {
		return record, err
	}
	err = item.Value(func(val []byte) error {
		return decode(val, &record)
	})
	return record, err
}

func decode(val []byte, v any) error {
	return cbor.Unmarshal(val, v)
}

func set(txn *badger.Txn, key string, record any) error {
	bytes, err := encMode.Marshal(record)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), bytes)
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}
