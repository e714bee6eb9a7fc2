package favorites

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the service surfaces so transports can map it
// to a response without inspecting messages.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindUnauthorized
	KindNotFound
	KindInvalidArgument
	KindRemoteUnavailable
	KindEventNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindRemoteUnavailable:
		return "remote_unavailable"
	case KindEventNotFound:
		return "event_not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is the tagged failure returned by Service operations.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Timeout marks a RemoteUnavailable failure caused by a deadline rather
	// than a refused or broken call.
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// remoteError wraps a directory failure, keeping the timeout flag visible.
func remoteError(op, message string, err error) *Error {
	e := newError(KindRemoteUnavailable, op, message, err)
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		e.Timeout = true
	}
	return e
}

// KindOf reports the Kind of err. Errors that did not originate in this
// package are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsTimeout reports whether err is a remote failure caused by a deadline.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Timeout
}

// Sentinels returned by collaborators. Stores return ErrListNotFound and
// ErrVersionConflict; directory clients return ErrEventNotFound and wrap
// transport failures with ErrRemoteUnavailable.
var (
	ErrListNotFound      = errors.New("favorite list not found")
	ErrListExists        = errors.New("favorite list already exists")
	ErrVersionConflict   = errors.New("favorite list version conflict")
	ErrTokenTaken        = errors.New("capability token already in use")
	ErrEventNotFound     = errors.New("event not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrRemoteUnavailable = errors.New("remote service unavailable")
)

// UserNotFoundError names the user id that failed an existence check.
type UserNotFoundError struct {
	UserID int64
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user %d not found", e.UserID)
}

func (e *UserNotFoundError) Is(target error) bool {
	return target == ErrUserNotFound
}
