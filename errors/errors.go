package errors

import (
	"errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Classes reported to the sender of an inbound event.
	ErrValidation       = fmt.Errorf("validation failed")
	ErrNotFound         = fmt.Errorf("not found")
	ErrForbidden        = fmt.Errorf("forbidden")
	ErrStoreUnavailable = fmt.Errorf("store unavailable")
	ErrUnauthenticated  = fmt.Errorf("unauthenticated")
	ErrSessionClosed    = fmt.Errorf("session closed")

	ErrEmptyContent         = fmt.Errorf("%w: content is empty", ErrValidation)
	ErrContentTooLong       = fmt.Errorf("%w: content is too long", ErrValidation)
	ErrMalformedID          = fmt.Errorf("%w: malformed identifier", ErrValidation)
	ErrNotPeer              = fmt.Errorf("%w: receiver is not the other participant", ErrValidation)
	ErrSelfConversation     = fmt.Errorf("%w: a conversation needs two distinct users", ErrValidation)
	ErrUnknownEvent         = fmt.Errorf("%w: unknown event type", ErrValidation)
	ErrConversationNotFound = fmt.Errorf("%w: conversation", ErrNotFound)
	ErrMessageNotFound      = fmt.Errorf("%w: message", ErrNotFound)
	ErrUserNotFound         = fmt.Errorf("%w: user", ErrNotFound)
	ErrNotParticipant       = fmt.Errorf("%w: not a participant of the conversation", ErrForbidden)
	ErrNotReceiver          = fmt.Errorf("%w: only the receiver can read a message", ErrForbidden)
	ErrNotMessagePeer       = fmt.Errorf("%w: reader is neither sender nor receiver", ErrNotReceiver)
	ErrInvalidToken         = fmt.Errorf("%w: invalid or expired token", ErrUnauthenticated)
	ErrMissingToken         = fmt.Errorf("%w: authorization token is missing", ErrUnauthenticated)
	ErrUserAlreadyExists    = fmt.Errorf("%w: display name already taken", ErrValidation)
	ErrTokenGeneration      = fmt.Errorf("token generation failed")
)

// Code is the machine readable class carried by protocol error events.
type Code string

const (
	CodeValidation      Code = "validation"
	CodeNotFound        Code = "not_found"
	CodeForbidden       Code = "forbidden"
	CodeUnavailable     Code = "unavailable"
	CodeUnauthenticated Code = "unauthenticated"
	CodeInternal        Code = "internal"
)

// CodeOf classifies err against the sentinel hierarchy.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrSessionClosed):
		return CodeUnavailable
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	default:
		return CodeInternal
	}
}

// Public returns the error a client is allowed to see.
// A non-participant touching a conversation or a message gets the same answer as for a
// missing one, store failures lose their backend detail.
func Public(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotParticipant):
		return ErrConversationNotFound
	case errors.Is(err, ErrNotMessagePeer):
		return ErrMessageNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return ErrStoreUnavailable
	case errors.Is(err, ErrSessionClosed):
		return ErrSessionClosed
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden), errors.Is(err, ErrUnauthenticated):
		return err
	default:
		return fmt.Errorf("internal error")
	}
}

// Unavailable wraps a backend failure so callers can classify it without knowing the backend.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}
