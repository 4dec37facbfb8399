package qrsession

import (
	"sync"
	"time"

	"github.com/jrsteele09/go-qr-login/internal/errors"
)

// Store holds the current QR session. Every mutation is bound to a session
// token so work started for a superseded session cannot touch its replacement.
type Store struct {
	mu      sync.RWMutex
	current *Session
}

func NewStore() *Store {
	return &Store{}
}

// Replace installs a new session, discarding any previous one.
func (s *Store) Replace(session Session) error {
	if session.Token == "" {
		return errors.Wrapf(errors.ErrInvalidSessionData, "token is required")
	}
	if session.TTL <= 0 || !session.ExpiresAt.After(session.CreatedAt) {
		return errors.Wrapf(errors.ErrInvalidSessionData, "session %s has no lifetime", session.ShortToken())
	}
	if session.Status == "" {
		session.Status = StatusPending
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &session
	return nil
}

// Clear discards the current session, if any.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// Get returns a copy of the current session.
func (s *Store) Get() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// IsCurrent reports whether token identifies the session held by the store.
func (s *Store) IsCurrent(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil && s.current.Token == token
}

// Advance moves the session identified by token to next. It returns
// changed=false with a nil error when next is not ahead of the current status
// (for example a late "pending" after "scanned"). Errors are returned for a
// stale token or a session that has already finished.
func (s *Store) Advance(token string, next Status) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return false, errors.ErrNoSession
	}
	if s.current.Token != token {
		return false, errors.Wrapf(errors.ErrSessionStale, "session %s", ShortToken(token))
	}
	if s.current.Status.IsTerminal() {
		if s.current.Status == next {
			return false, nil
		}
		return false, errors.Wrapf(errors.ErrSessionTerminal, "session %s is %s", ShortToken(token), s.current.Status)
	}
	if next == s.current.Status {
		return false, nil
	}
	if !s.current.Status.CanTransition(next) {
		if next.rank() < 0 {
			return false, errors.Wrapf(errors.ErrInvalidTransition, "%s -> %s", s.current.Status, next)
		}
		return false, nil
	}

	s.current.Status = next
	return true, nil
}

// ExpireIfDue moves the session to expired when now is past its expiry.
func (s *Store) ExpireIfDue(token string, now time.Time) (bool, error) {
	session, ok := s.Get()
	if !ok {
		return false, errors.ErrNoSession
	}
	if session.Token != token {
		return false, errors.Wrapf(errors.ErrSessionStale, "session %s", ShortToken(token))
	}
	if !session.IsExpiredAt(now) {
		return false, nil
	}
	return s.Advance(token, StatusExpired)
}
