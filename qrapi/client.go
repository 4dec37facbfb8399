package qrapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-qr-login/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	RouteGenerate = "/qr/generate"
	RouteStatus   = "/qr/status"

	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Issued is a validated generation result.
type Issued struct {
	Token   string
	QRImage string
	Status  string
	TTL     time.Duration // Zero when the backend did not send a usable expiry
}

// Poll is a validated status result.
type Poll struct {
	Status       string
	AccessToken  *string
	RefreshToken *string
	NextURL      *string
	RequiresAuth bool // HTTP 401 or requires_auth=true
}

// Client talks to the QR login endpoints of the admin backend.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("[qrapi New] invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("[qrapi New] base url %q must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{},
		logger:     log.Logger.With().Str("component", "qrapi").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend origin the client was built for.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Generate requests a new QR session.
func (c *Client) Generate(ctx context.Context) (Issued, error) {
	var body GenerateResponse
	status, err := c.do(ctx, http.MethodPost, RouteGenerate, nil, &body)
	if err != nil {
		return Issued{}, errors.Wrapf(err, "generate")
	}
	if status < 200 || status > 299 {
		return Issued{}, errors.Wrapf(errors.ErrUnexpectedStatus, "generate: http %d", status)
	}
	if !body.Success || body.Data == nil {
		reason := body.Error
		if reason == "" {
			reason = "backend reported failure"
		}
		return Issued{}, errors.Wrapf(errors.ErrMalformedResponse, "generate: %s", reason)
	}
	if strings.TrimSpace(body.Data.Token) == "" {
		return Issued{}, errors.Wrapf(errors.ErrMalformedResponse, "generate: missing token")
	}

	issued := Issued{
		Token:   body.Data.Token,
		QRImage: body.Data.QRCode,
		Status:  body.Data.Status,
	}
	if ttl, ok := ParseExpiry(body.Data.ExpiresAt, NowTimeFunc()); ok {
		issued.TTL = ttl
	}
	return issued, nil
}

// Status fetches the handshake state for token. next is forwarded so the
// backend can echo a post-login destination; it may be empty.
func (c *Client) Status(ctx context.Context, token, next string) (Poll, error) {
	query := url.Values{}
	query.Set("token", token)
	if next != "" {
		query.Set("next", next)
	}

	var body StatusResponse
	status, err := c.do(ctx, http.MethodGet, RouteStatus, query, &body)
	if status == http.StatusUnauthorized {
		return Poll{RequiresAuth: true}, nil
	}
	if err != nil {
		return Poll{}, errors.Wrapf(err, "status")
	}
	if status < 200 || status > 299 {
		return Poll{}, errors.Wrapf(errors.ErrUnexpectedStatus, "status: http %d", status)
	}
	if body.RequiresAuth {
		return Poll{RequiresAuth: true}, nil
	}
	if !body.Success || body.Data == nil {
		return Poll{}, errors.Wrapf(errors.ErrMalformedResponse, "status: %s", body.Error)
	}

	return Poll{
		Status:       body.Data.Status,
		AccessToken:  body.Data.AccessToken,
		RefreshToken: body.Data.RefreshToken,
		NextURL:      body.Data.NextURL,
	}, nil
}

// do performs the request and decodes a JSON body into out. The HTTP status
// is returned even when decoding fails so callers can act on 401s.
func (c *Client) do(ctx context.Context, method, route string, query url.Values, out any) (int, error) {
	u := c.baseURL.JoinPath(route)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, route, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("route", route).
		Int("status", resp.StatusCode).
		Msg("qr backend call")

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return resp.StatusCode, errors.ErrAuthRequired
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return resp.StatusCode, errors.Wrapf(errors.ErrMalformedResponse, "decode %s", route)
	}
	return resp.StatusCode, nil
}
