package checkout

import (
	"time"

	"github.com/ValentinKolb/dCheck/lib/store"
)

// Clock returns the current time. It is replaced in tests.
type Clock func() time.Time

// Session is the authenticated identity of the caller together with the store
// it talks to. A Session is an immutable value, all operations take it explicitly.
type Session struct {
	user  string
	store store.IStore
	clock Clock
}

// SessionOption configures optional parts of a Session
type SessionOption func(*Session)

// WithClock sets the clock used for check-out and check-in timestamps
func WithClock(c Clock) SessionOption {
	return func(s *Session) {
		s.clock = c
	}
}

// NewSession creates a session for an authenticated user.
func NewSession(user string, s store.IStore, opts ...SessionOption) Session {
	session := Session{
		user:  user,
		store: s,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(&session)
	}
	return session
}

// User returns the identity that is written to the log
func (s Session) User() string {
	return s.user
}

// Store returns the store of the session
func (s Session) Store() store.IStore {
	return s.store
}

// now returns the current time with millisecond precision (the precision of the log)
func (s Session) now() time.Time {
	return time.UnixMilli(s.clock().UnixMilli()).UTC()
}
