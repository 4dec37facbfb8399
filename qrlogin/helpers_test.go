package qrlogin_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-qr-login/internal/config"
	"github.com/jrsteele09/go-qr-login/internal/utils"
	"github.com/jrsteele09/go-qr-login/qrapi"
	"github.com/jrsteele09/go-qr-login/qrlogin"
	"github.com/jrsteele09/go-qr-login/qrsession"
	"github.com/jrsteele09/go-qr-login/redirect"
	"github.com/jrsteele09/go-qr-login/tokens"
	"github.com/stretchr/testify/require"
)

const testTTL = 180 * time.Second

// fakeBackend issues sessions T1, T2, ... and answers status polls through respond
type fakeBackend struct {
	mu          sync.Mutex
	ttl         time.Duration
	generateErr error
	generated   int
	statusCalls map[string]int
	nexts       []string
	respond     func(token string, call int) (qrapi.Poll, error)
	hang        bool // Status blocks until its context is cancelled
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		ttl:         testTTL,
		statusCalls: make(map[string]int),
	}
}

func (f *fakeBackend) Generate(_ context.Context) (qrapi.Issued, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generateErr != nil {
		return qrapi.Issued{}, f.generateErr
	}
	f.generated++
	return qrapi.Issued{
		Token:   fmt.Sprintf("T%d", f.generated),
		QRImage: "data:image/png;base64,AAAA",
		Status:  "pending",
		TTL:     f.ttl,
	}, nil
}

func (f *fakeBackend) Status(ctx context.Context, token, next string) (qrapi.Poll, error) {
	f.mu.Lock()
	f.statusCalls[token]++
	call := f.statusCalls[token]
	f.nexts = append(f.nexts, next)
	respond := f.respond
	hang := f.hang
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return qrapi.Poll{}, ctx.Err()
	}
	if respond == nil {
		return qrapi.Poll{Status: "pending"}, nil
	}
	return respond(token, call)
}

func (f *fakeBackend) calls(token string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls[token]
}

func (f *fakeBackend) setRespond(fn func(token string, call int) (qrapi.Poll, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.respond = fn
}

// countingPersister wraps a real persister and counts calls
type countingPersister struct {
	mu    sync.Mutex
	inner qrlogin.Persister
	calls int
	err   error
}

func (p *countingPersister) Persist(ctx context.Context, sessionToken string, creds tokens.Credentials) (tokens.Result, error) {
	p.mu.Lock()
	p.calls++
	err := p.err
	p.mu.Unlock()
	if err != nil {
		return tokens.Result{}, err
	}
	return p.inner.Persist(ctx, sessionToken, creds)
}

func (p *countingPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type nopCookies struct{}

func (nopCookies) SetCookie(*http.Cookie) error { return nil }

// events records every callback in order
type events struct {
	mu         sync.Mutex
	statuses   []qrsession.Status
	countdowns []int
	errs       []error
	loggedIn   []qrlogin.Outcome
	navigated  []string
	navAt      []time.Time
}

func (e *events) callbacks() qrlogin.Callbacks {
	return qrlogin.Callbacks{
		OnStatus: func(s qrsession.Status) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.statuses = append(e.statuses, s)
		},
		OnCountdown: func(remaining int) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.countdowns = append(e.countdowns, remaining)
		},
		OnError: func(err error) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.errs = append(e.errs, err)
		},
		OnLoggedIn: func(o qrlogin.Outcome) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.loggedIn = append(e.loggedIn, o)
		},
	}
}

func (e *events) navigate(_ context.Context, target string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.navigated = append(e.navigated, target)
	e.navAt = append(e.navAt, time.Now())
	return nil
}

func (e *events) snapshot() events {
	e.mu.Lock()
	defer e.mu.Unlock()
	return events{
		statuses:   append([]qrsession.Status(nil), e.statuses...),
		countdowns: append([]int(nil), e.countdowns...),
		errs:       append([]error(nil), e.errs...),
		loggedIn:   append([]qrlogin.Outcome(nil), e.loggedIn...),
		navigated:  append([]string(nil), e.navigated...),
		navAt:      append([]time.Time(nil), e.navAt...),
	}
}

type harness struct {
	backend   *fakeBackend
	repo      *tokens.InMemoryRepo
	persister *countingPersister
	events    *events
	metrics   *qrlogin.Metrics
	ctrl      *qrlogin.Controller
}

// newHarness must be called inside a synctest bubble so the controller's
// timers run on virtual time.
func newHarness(t *testing.T, backend *fakeBackend, opts ...qrlogin.Option) *harness {
	t.Helper()

	repo := tokens.NewInMemoryRepo()
	inner, err := tokens.NewPersister(repo, nopCookies{}, config.Tokens{})
	require.NoError(t, err)

	h := &harness{
		backend:   backend,
		repo:      repo,
		persister: &countingPersister{inner: inner},
		events:    &events{},
		metrics:   qrlogin.NewMetrics(nil),
	}
	redirector := redirect.New(redirect.NavigatorFunc(h.events.navigate), config.QR{})

	opts = append([]qrlogin.Option{
		qrlogin.WithCallbacks(h.events.callbacks()),
		qrlogin.WithMetrics(h.metrics),
	}, opts...)
	h.ctrl = qrlogin.New(backend, h.persister, redirector, config.QR{}, opts...)
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) status(t *testing.T) qrsession.Status {
	t.Helper()
	s, ok := h.ctrl.Snapshot()
	require.True(t, ok, "expected an active session")
	return s.Status
}

func confirmed(access, refresh, nextURL string) qrapi.Poll {
	p := qrapi.Poll{Status: "success", AccessToken: utils.Ptr(access)}
	if refresh != "" {
		p.RefreshToken = utils.Ptr(refresh)
	}
	if nextURL != "" {
		p.NextURL = utils.Ptr(nextURL)
	}
	return p
}
