package redirect

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-qr-login/internal/config"
	"github.com/jrsteele09/go-qr-login/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Navigator performs the actual navigation, e.g. by telling a browser or a
// terminal UI where to go next.
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, target string) error

func (f NavigatorFunc) Navigate(ctx context.Context, target string) error {
	return f(ctx, target)
}

// Controller sends the user to a post-login destination once credentials
// have been stored.
type Controller struct {
	navigator Navigator
	delay     time.Duration
	fallback  string
	logger    zerolog.Logger
}

func New(navigator Navigator, cfg config.QRConfig) *Controller {
	return &Controller{
		navigator: navigator,
		delay:     cfg.GetRedirectDelay(),
		fallback:  cfg.GetDefaultRedirect(),
		logger:    log.Logger.With().Str("component", "redirect").Logger(),
	}
}

// Resolve picks the first safe candidate from the page's next parameter and
// the backend's next_url, falling back to the configured default.
func (c *Controller) Resolve(nextParam, nextURL string) string {
	for _, candidate := range []string{nextParam, nextURL} {
		if candidate == "" {
			continue
		}
		if err := Validate(candidate); err != nil {
			c.logger.Warn().Err(err).Str("target", candidate).Msg("Ignoring redirect target")
			continue
		}
		return candidate
	}
	if Validate(c.fallback) != nil {
		return "/"
	}
	return c.fallback
}

// Redirect waits for the settle delay, then navigates once to the resolved
// target. Cancelling ctx during the delay aborts without navigating.
func (c *Controller) Redirect(ctx context.Context, nextParam, nextURL string) (string, error) {
	target := c.Resolve(nextParam, nextURL)

	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	if err := c.navigator.Navigate(ctx, target); err != nil {
		return "", errors.Wrapf(err, "navigate to %s", target)
	}
	return target, nil
}

// Validate accepts only same-origin relative paths such as "/profile?tab=1".
func Validate(target string) error {
	if target == "" || target[0] != '/' {
		return errors.Wrapf(errors.ErrUnsafeRedirect, "%q is not an absolute path", target)
	}
	if strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return errors.Wrapf(errors.ErrUnsafeRedirect, "%q could leave the origin", target)
	}
	for _, r := range target {
		if r < 0x20 || r == 0x7f {
			return errors.Wrapf(errors.ErrUnsafeRedirect, "%q contains control characters", target)
		}
	}
	u, err := url.Parse(target)
	if err != nil {
		return errors.Wrapf(errors.ErrUnsafeRedirect, "%q: %v", target, err)
	}
	if u.Scheme != "" || u.Host != "" || u.User != nil {
		return errors.Wrapf(errors.ErrUnsafeRedirect, "%q names another origin", target)
	}
	return nil
}
