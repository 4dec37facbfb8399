package qrlogin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-qr-login/internal/config"
	"github.com/jrsteele09/go-qr-login/internal/errors"
	"github.com/jrsteele09/go-qr-login/qrapi"
	"github.com/jrsteele09/go-qr-login/qrsession"
	"github.com/jrsteele09/go-qr-login/tokens"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Backend is the QR login API. *qrapi.Client implements it.
type Backend interface {
	Generate(ctx context.Context) (qrapi.Issued, error)
	Status(ctx context.Context, token, next string) (qrapi.Poll, error)
}

// Persister stores credentials once per session. *tokens.Persister implements it.
type Persister interface {
	Persist(ctx context.Context, sessionToken string, creds tokens.Credentials) (tokens.Result, error)
}

// Redirector navigates after login. *redirect.Controller implements it.
type Redirector interface {
	Redirect(ctx context.Context, nextParam, nextURL string) (string, error)
}

// Controller owns the current QR session and the timers bound to it.
type Controller struct {
	backend    Backend
	persister  Persister
	redirector Redirector
	config     config.QRConfig
	store      *qrsession.Store
	callbacks  Callbacks
	metrics    *Metrics
	logger     zerolog.Logger
	next       string // "next" query parameter of the login page

	mu  sync.Mutex
	run *sessionRun
}

// sessionRun is the live work bound to exactly one session token.
type sessionRun struct {
	token   string
	cancel  context.CancelFunc
	done    chan struct{}
	outcome Outcome // written by the loop before done is closed
}

type Option func(*Controller)

func WithCallbacks(cb Callbacks) Option {
	return func(c *Controller) {
		c.callbacks = cb
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithNext forwards the login page's "next" parameter to the status endpoint
// and gives it priority as redirect target.
func WithNext(next string) Option {
	return func(c *Controller) {
		c.next = next
	}
}

// WithStore shares a session store with other readers, e.g. a UI binding.
func WithStore(store *qrsession.Store) Option {
	return func(c *Controller) {
		c.store = store
	}
}

func New(backend Backend, persister Persister, redirector Redirector, cfg config.QRConfig, opts ...Option) *Controller {
	c := &Controller{
		backend:    backend,
		persister:  persister,
		redirector: redirector,
		config:     cfg,
		store:      qrsession.NewStore(),
		logger:     log.Logger.With().Str("component", "qrlogin").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	return c
}

// Generate discards the current session, stopping its timers, and requests a
// new one. On failure nothing is stored and no timers run.
func (c *Controller) Generate(ctx context.Context) (qrsession.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	issued, err := c.backend.Generate(ctx)
	if err != nil {
		return qrsession.Session{}, c.generationFailed(err)
	}

	ttl := issued.TTL
	if ttl <= 0 {
		ttl = c.config.GetDefaultSessionTTL()
	}
	now := NowTimeFunc()
	session := qrsession.Session{
		Token:     issued.Token,
		QRImage:   issued.QRImage,
		Status:    qrsession.StatusPending,
		TTL:       ttl,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := c.store.Replace(session); err != nil {
		return qrsession.Session{}, c.generationFailed(err)
	}
	c.metrics.Generations.WithLabelValues("ok").Inc()

	loopCtx, cancel := context.WithCancel(context.Background())
	run := &sessionRun{
		token:  session.Token,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.run = run

	c.logger.Info().
		Str("session", session.ShortToken()).
		Dur("ttl", ttl).
		Msg("QR login session started")

	c.callbacks.session(session)
	c.callbacks.status(session.Status)
	c.callbacks.countdown(session.Remaining(now))

	go c.loop(loopCtx, run, session)
	return session, nil
}

// Refresh replaces the current session with a new one.
func (c *Controller) Refresh(ctx context.Context) (qrsession.Session, error) {
	return c.Generate(ctx)
}

// Close stops the current session's timers and discards it.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Snapshot returns the current session, if any.
func (c *Controller) Snapshot() (qrsession.Session, bool) {
	return c.store.Get()
}

// Remaining returns the seconds left on the current session.
func (c *Controller) Remaining() int {
	session, ok := c.store.Get()
	if !ok || session.Status.IsTerminal() {
		return 0
	}
	return session.Remaining(NowTimeFunc())
}

// Wait blocks until the current session finishes or ctx is done.
func (c *Controller) Wait(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	run := c.run
	c.mu.Unlock()
	if run == nil {
		return Outcome{}, errors.ErrNoSession
	}

	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-run.done:
		return run.outcome, nil
	}
}

func (c *Controller) stopLocked() {
	if c.run != nil {
		c.run.cancel()
		<-c.run.done
		c.run = nil
	}
	c.store.Clear()
}

func (c *Controller) generationFailed(cause error) error {
	err := fmt.Errorf("%w: %w", errors.ErrGenerateFailed, cause)
	c.metrics.Generations.WithLabelValues("error").Inc()
	log.Err(err).Msg("QR login: failed to generate session")
	c.callbacks.fail(err)
	return err
}
