package qrsession

import (
	"strings"
	"time"
)

// Status is the handshake state of a QR login session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScanned   Status = "scanned"
	StatusConfirmed Status = "confirmed"
	StatusExpired   Status = "expired"
)

// IsTerminal reports whether no further transitions or polling are permitted.
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusExpired
}

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusScanned:
		return 1
	case StatusConfirmed, StatusExpired:
		return 2
	}
	return -1
}

// CanTransition reports whether moving from s to next is a forward move:
// pending -> scanned -> confirmed, or {pending|scanned} -> expired.
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() || next.rank() < 0 || s.rank() < 0 {
		return false
	}
	return next.rank() > s.rank()
}

// ParseStatus maps a backend status string onto a Status. "success" is the
// backend's name for confirmed. Unrecognised values are coerced to pending and
// reported with ok=false.
func ParseStatus(raw string) (status Status, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return StatusPending, true
	case "scanned":
		return StatusScanned, true
	case "success", "confirmed":
		return StatusConfirmed, true
	case "expired":
		return StatusExpired, true
	}
	return StatusPending, false
}

// Session is the client's view of one server-issued QR handshake.
type Session struct {
	Token     string        // Opaque identifier used to poll status
	QRImage   string        // Renderable image reference, never interpreted
	Status    Status        // Current handshake state
	TTL       time.Duration // Lifetime captured at generation
	CreatedAt time.Time
	ExpiresAt time.Time // CreatedAt + TTL, fixed for the life of the session
}

// IsExpiredAt reports whether the local clock has passed the session expiry.
func (s Session) IsExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Remaining returns the whole seconds left before expiry, clamped to [0, TTL].
func (s Session) Remaining(now time.Time) int {
	left := s.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	secs := int((left + time.Second - 1) / time.Second)
	if ceiling := int(s.TTL / time.Second); secs > ceiling {
		return ceiling
	}
	return secs
}

// ShortToken is a log-safe prefix of the session token.
func (s Session) ShortToken() string {
	return ShortToken(s.Token)
}

func ShortToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
