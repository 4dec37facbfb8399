package tokens

import (
	"context"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jrsteele09/go-qr-login/internal/config"
	"github.com/jrsteele09/go-qr-login/internal/errors"
	"github.com/jrsteele09/go-qr-login/qrsession"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// persistedSessions bounds the memory used to remember handled sessions.
const persistedSessions = 64

// Result describes what a successful Persist wrote.
type Result struct {
	SessionToken        string
	Subject             string // JWT "sub" when the access token is a JWT
	AccessExpiresAt     time.Time
	RefreshExpiresAt    time.Time // Zero when no refresh token was issued
	RefreshTokenMissing bool      // Login works but cannot be renewed
}

// Persister dual-writes credentials to the ephemeral Repo and to cookies.
type Persister struct {
	repo      Repo
	cookies   CookieWriter
	config    config.TokenConfig
	secure    bool
	logger    zerolog.Logger
	mu        sync.Mutex
	persisted *lru.Cache[string, time.Time] // session token -> persisted at
}

type PersisterOption func(*Persister)

// WithSecureCookies marks cookies Secure, use for https origins.
func WithSecureCookies(secure bool) PersisterOption {
	return func(p *Persister) {
		p.secure = secure
	}
}

func WithPersisterLogger(logger zerolog.Logger) PersisterOption {
	return func(p *Persister) {
		p.logger = logger
	}
}

func NewPersister(repo Repo, cookies CookieWriter, cfg config.TokenConfig, opts ...PersisterOption) (*Persister, error) {
	cache, err := lru.New[string, time.Time](persistedSessions)
	if err != nil {
		return nil, errors.Wrapf(err, "[tokens NewPersister] session cache")
	}

	p := &Persister{
		repo:      repo,
		cookies:   cookies,
		config:    cfg,
		logger:    log.Logger.With().Str("component", "tokens").Logger(),
		persisted: cache,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Persist stores the credentials issued for sessionToken. It writes at most
// once per session: later calls return errors.ErrAlreadyPersisted and leave the
// stored values untouched.
func (p *Persister) Persist(ctx context.Context, sessionToken string, creds Credentials) (Result, error) {
	if creds.AccessToken == "" {
		return Result{}, errors.ErrMissingAccessToken
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if at, ok := p.persisted.Get(sessionToken); ok {
		return Result{}, errors.Wrapf(errors.ErrAlreadyPersisted, "session %s at %s", qrsession.ShortToken(sessionToken), at.Format(time.RFC3339))
	}

	now := NowTimeFunc()
	result := Result{SessionToken: sessionToken}
	accessTTL := p.config.GetAccessTokenTTL()

	if claims, ok := creds.Claims(); ok {
		result.Subject = claims.Subject
		if !claims.ExpiresAt.IsZero() && claims.ExpiresAt.After(now) && claims.ExpiresAt.Sub(now) < accessTTL {
			accessTTL = claims.ExpiresAt.Sub(now)
		}
	}

	if err := p.write(ctx, AccessTokenKey, creds.AccessToken, accessTTL, now); err != nil {
		return Result{}, err
	}
	result.AccessExpiresAt = now.Add(accessTTL)

	if creds.HasRefreshToken() {
		refreshTTL := p.config.GetRefreshTokenTTL()
		if err := p.write(ctx, RefreshTokenKey, creds.RefreshToken, refreshTTL, now); err != nil {
			return Result{}, err
		}
		result.RefreshExpiresAt = now.Add(refreshTTL)
	} else {
		result.RefreshTokenMissing = true
		p.logger.Warn().
			Str("session", qrsession.ShortToken(sessionToken)).
			Msg("QR login issued no refresh token, session cannot be renewed")
		// A refresh token from an earlier login must not outlive its access token.
		if err := p.remove(ctx, RefreshTokenKey); err != nil {
			return Result{}, err
		}
	}

	p.persisted.Add(sessionToken, now)
	p.logger.Info().
		Str("session", qrsession.ShortToken(sessionToken)).
		Str("subject", result.Subject).
		Time("access_expires_at", result.AccessExpiresAt).
		Msg("QR login credentials stored")
	return result, nil
}

// Load reads back the stored credentials.
func (p *Persister) Load(ctx context.Context) (Credentials, error) {
	access, err := p.repo.Get(ctx, AccessTokenKey)
	if err != nil {
		return Credentials{}, err
	}
	refresh, err := p.repo.Get(ctx, RefreshTokenKey)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return Credentials{}, err
	}
	return Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

// Clear removes stored credentials and expires their cookies (logout).
func (p *Persister) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.remove(ctx, AccessTokenKey); err != nil {
		return err
	}
	return p.remove(ctx, RefreshTokenKey)
}

// HTTPClient returns a client that sends the stored access token as a bearer
// token, for calls into the rest of the admin API.
func (p *Persister) HTTPClient(ctx context.Context) (*http.Client, error) {
	creds, err := p.Load(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "load credentials")
	}
	expiry := NowTimeFunc().Add(p.config.GetAccessTokenTTL())
	if claims, ok := creds.Claims(); ok && !claims.ExpiresAt.IsZero() {
		expiry = claims.ExpiresAt
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(creds.OAuth2Token(expiry))), nil
}

func (p *Persister) write(ctx context.Context, key, value string, ttl time.Duration, now time.Time) error {
	if err := p.repo.Set(ctx, key, value, ttl); err != nil {
		return errors.Wrapf(err, "store %s", key)
	}
	if err := p.cookies.SetCookie(newCookie(key, value, ttl, now, p.secure)); err != nil {
		return errors.Wrapf(err, "cookie %s", key)
	}
	return nil
}

func (p *Persister) remove(ctx context.Context, key string) error {
	if err := p.repo.Delete(ctx, key); err != nil {
		return errors.Wrapf(err, "delete %s", key)
	}
	if err := p.cookies.SetCookie(expiredCookie(key, p.secure)); err != nil {
		return errors.Wrapf(err, "expire cookie %s", key)
	}
	return nil
}
