package qrlogin

import (
	"github.com/jrsteele09/go-qr-login/qrsession"
	"github.com/jrsteele09/go-qr-login/tokens"
)

// Callbacks let a UI follow the handshake. Any field may be nil. They run on
// the session loop goroutine and must not call Generate, Refresh or Close
// synchronously.
type Callbacks struct {
	OnSession   func(session qrsession.Session)
	OnStatus    func(status qrsession.Status)
	OnCountdown func(remaining int)
	OnError     func(err error) // Generation and persistence failures only
	OnLoggedIn  func(outcome Outcome)
}

// Outcome is how a session ended.
type Outcome struct {
	SessionToken string
	Status       qrsession.Status
	Credentials  tokens.Result
	RedirectTo   string // Empty if the redirect did not happen
	Err          error  // Persistence/redirect failure or cancellation
}

func (c Callbacks) session(s qrsession.Session) {
	if c.OnSession != nil {
		c.OnSession(s)
	}
}

func (c Callbacks) status(s qrsession.Status) {
	if c.OnStatus != nil {
		c.OnStatus(s)
	}
}

func (c Callbacks) countdown(remaining int) {
	if c.OnCountdown != nil {
		c.OnCountdown(remaining)
	}
}

func (c Callbacks) fail(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

func (c Callbacks) loggedIn(o Outcome) {
	if c.OnLoggedIn != nil {
		c.OnLoggedIn(o)
	}
}
