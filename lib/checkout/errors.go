package checkout

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dCheck/lib/db"
)

// --------------------------------------------------------------------------
// Error Conditions
// --------------------------------------------------------------------------

var (
	// ErrAuth is returned if the store rejected the credentials or the session token.
	ErrAuth = errors.New("authentication failed")
	// ErrNotLockableKind is returned for entities that are neither folders nor files.
	ErrNotLockableKind = errors.New("only folders and files can be checked in/out")
	// ErrNoOpenLock is returned by Checkin if the caller holds no open lock on the entity.
	ErrNoOpenLock = errors.New("entity is not currently checked out")
	// ErrAlreadyLocked is returned by Checkout if any user holds an open lock on the entity.
	ErrAlreadyLocked = errors.New("entity is already checked out")
	// ErrConflict is returned if the log table kept changing between read and conditional write.
	ErrConflict = errors.New("log table was modified concurrently")
	// ErrNetwork is returned if the store could not be reached or timed out.
	ErrNetwork = errors.New("workspace store unavailable")
	// ErrSchemaMismatch is returned if the log table lacks one of the expected columns.
	ErrSchemaMismatch = errors.New("log table schema mismatch")
	// ErrNoContainer is returned if no project was found above the entity.
	ErrNoContainer = errors.New("no owning project found")
	// ErrMessageTooLong is returned for check-in messages longer than MaxMessageLength characters.
	ErrMessageTooLong = fmt.Errorf("message exceeds %d characters", MaxMessageLength)
	// ErrNotFound is returned if the entity does not exist.
	ErrNotFound = errors.New("entity not found")
)

// NotLockableError reports the entity that was refused. It unwraps to ErrNotLockableKind.
type NotLockableError struct {
	Entity db.Entity
}

func (e *NotLockableError) Error() string {
	return fmt.Sprintf("%s is a %s: %v", e.Entity.Name, e.Entity.Kind, ErrNotLockableKind)
}

func (e *NotLockableError) Unwrap() error {
	return ErrNotLockableKind
}

// IsRetryable reports whether the operation can succeed if it is simply run again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrNetwork)
}

// IsBenign reports whether err is an outcome that leaves the log unchanged on purpose
// (already checked out, not checked out, not a lockable kind).
func IsBenign(err error) bool {
	return errors.Is(err, ErrAlreadyLocked) || errors.Is(err, ErrNoOpenLock) || errors.Is(err, ErrNotLockableKind)
}

// classify maps store errors onto the error conditions of this package.
// The original error stays in the chain, so errors.As(err, *db.Error) still works.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var sentinel error
	switch db.CodeOf(err) {
	case db.RetCUnauthorized:
		sentinel = ErrAuth
	case db.RetCConflict:
		sentinel = ErrConflict
	case db.RetCNotFound:
		sentinel = ErrNotFound
	case db.RetCUnavailable:
		sentinel = ErrNetwork
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, sentinel, err)
}
