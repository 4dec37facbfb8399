package qrlogin

import (
	"context"
	"time"

	"github.com/jrsteele09/go-qr-login/internal/errors"
	"github.com/jrsteele09/go-qr-login/internal/utils"
	"github.com/jrsteele09/go-qr-login/qrapi"
	"github.com/jrsteele09/go-qr-login/qrsession"
	"github.com/jrsteele09/go-qr-login/tokens"
)

type pollResult struct {
	token string
	poll  qrapi.Poll
	err   error
}

// loop runs the countdown and the poller for one session until it reaches a
// terminal status or ctx is cancelled.
func (c *Controller) loop(ctx context.Context, run *sessionRun, session qrsession.Session) {
	defer close(run.done)
	defer run.cancel()

	countdown := time.NewTicker(c.config.GetCountdownInterval())
	poller := time.NewTicker(c.config.GetPollInterval())
	stopTimers := func() {
		countdown.Stop()
		poller.Stop()
	}
	defer stopTimers()

	results := make(chan pollResult, 1)
	inFlight := false
	expiring := false
	remaining := session.Remaining(session.CreatedAt)

	startPoll := func() {
		inFlight = true
		go func() {
			poll, err := c.backend.Status(ctx, session.Token, c.next)
			select {
			case results <- pollResult{token: session.Token, poll: poll, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	finish := func(outcome Outcome) {
		run.outcome = outcome
	}

	for {
		select {
		case <-ctx.Done():
			c.metrics.Outcomes.WithLabelValues("cancelled").Inc()
			current, _ := c.store.Get()
			finish(Outcome{SessionToken: session.Token, Status: current.Status, Err: ctx.Err()})
			return

		case <-countdown.C:
			if expiring {
				// The poll raced against expiry and did not confirm in time.
				stopTimers()
				finish(c.expire(session))
				return
			}
			remaining = min(remaining-1, session.Remaining(NowTimeFunc()))
			remaining = max(remaining, 0)
			c.callbacks.countdown(remaining)
			if remaining > 0 {
				continue
			}

			// Give a poll landing in this same tick the chance to confirm.
			select {
			case res := <-results:
				inFlight = false
				if outcome, done := c.handlePoll(ctx, session, res, stopTimers); done {
					finish(outcome)
					return
				}
			default:
			}
			if !inFlight {
				select {
				case <-poller.C:
					startPoll()
				default:
				}
			}
			if inFlight {
				expiring = true
				continue
			}
			stopTimers()
			finish(c.expire(session))
			return

		case <-poller.C:
			if inFlight || expiring {
				continue
			}
			startPoll()

		case res := <-results:
			inFlight = false
			if outcome, done := c.handlePoll(ctx, session, res, stopTimers); done {
				finish(outcome)
				return
			}
			if expiring {
				stopTimers()
				finish(c.expire(session))
				return
			}
		}
	}
}

// handlePoll applies one status response. done is true once the session has
// reached a terminal status and the loop must stop.
func (c *Controller) handlePoll(ctx context.Context, session qrsession.Session, res pollResult, stopTimers func()) (Outcome, bool) {
	logger := c.logger.With().Str("session", session.ShortToken()).Logger()

	if res.token != session.Token || !c.store.IsCurrent(res.token) {
		c.metrics.Polls.WithLabelValues("stale").Inc()
		logger.Debug().Msg("Dropping status for superseded session")
		return Outcome{}, false
	}

	switch {
	case res.err != nil:
		if ctx.Err() != nil {
			return Outcome{}, false
		}
		c.metrics.Polls.WithLabelValues("error").Inc()
		logger.Warn().Err(res.err).Msg("QR status check failed, will retry")
		return c.expireIfDue(session, stopTimers)

	case res.poll.RequiresAuth:
		c.metrics.Polls.WithLabelValues("auth_pending").Inc()
		logger.Debug().Msg("QR status requires auth on the scanning device")
		return c.expireIfDue(session, stopTimers)
	}

	status, known := qrsession.ParseStatus(res.poll.Status)
	if !known {
		c.metrics.Polls.WithLabelValues("unknown").Inc()
		logger.Warn().Str("status", res.poll.Status).Msg("Unrecognised QR status, treating as pending")
	} else {
		c.metrics.Polls.WithLabelValues(string(status)).Inc()
	}

	switch status {
	case qrsession.StatusConfirmed:
		creds := tokens.Credentials{
			AccessToken:  utils.Value(res.poll.AccessToken),
			RefreshToken: utils.Value(res.poll.RefreshToken),
		}
		if creds.AccessToken == "" {
			c.metrics.Polls.WithLabelValues("no_token").Inc()
			logger.Warn().Msg("QR status is success but carries no access token, still polling")
			return c.expireIfDue(session, stopTimers)
		}
		changed, err := c.store.Advance(session.Token, qrsession.StatusConfirmed)
		if err != nil || !changed {
			logger.Warn().Err(err).Msg("QR session could not be confirmed")
			current, _ := c.store.Get()
			return Outcome{SessionToken: session.Token, Status: current.Status, Err: err}, true
		}
		stopTimers()
		return c.confirm(ctx, session, creds, utils.Value(res.poll.NextURL)), true

	case qrsession.StatusExpired:
		stopTimers()
		return c.expire(session), true

	default:
		changed, err := c.store.Advance(session.Token, status)
		if err != nil {
			logger.Warn().Err(err).Msg("QR status update rejected")
		} else if changed {
			logger.Info().Str("status", string(status)).Msg("QR session status changed")
			c.callbacks.status(status)
		}
		return c.expireIfDue(session, stopTimers)
	}
}

// confirm runs once per session, after the confirmed transition succeeded.
func (c *Controller) confirm(ctx context.Context, session qrsession.Session, creds tokens.Credentials, nextURL string) Outcome {
	outcome := Outcome{SessionToken: session.Token, Status: qrsession.StatusConfirmed}
	c.metrics.Outcomes.WithLabelValues(string(qrsession.StatusConfirmed)).Inc()
	c.callbacks.status(qrsession.StatusConfirmed)

	result, err := c.persister.Persist(ctx, session.Token, creds)
	if err != nil {
		c.metrics.Persisted.WithLabelValues("error").Inc()
		outcome.Err = errors.Wrapf(err, "persist credentials")
		c.logger.Error().Err(err).Str("session", session.ShortToken()).Msg("QR login: failed to store credentials")
		c.callbacks.fail(outcome.Err)
		return outcome
	}
	outcome.Credentials = result
	if result.RefreshTokenMissing {
		c.metrics.Persisted.WithLabelValues("missing").Inc()
	} else {
		c.metrics.Persisted.WithLabelValues("present").Inc()
	}

	target, err := c.redirector.Redirect(ctx, c.next, nextURL)
	if err != nil {
		outcome.Err = errors.Wrapf(err, "redirect")
		c.logger.Warn().Err(err).Str("session", session.ShortToken()).Msg("QR login redirect did not happen")
	}
	outcome.RedirectTo = target

	c.callbacks.loggedIn(outcome)
	return outcome
}

func (c *Controller) expire(session qrsession.Session) Outcome {
	changed, err := c.store.Advance(session.Token, qrsession.StatusExpired)
	if err != nil {
		c.logger.Debug().Err(err).Str("session", session.ShortToken()).Msg("QR session not expired")
		current, _ := c.store.Get()
		return Outcome{SessionToken: session.Token, Status: current.Status, Err: err}
	}
	if changed {
		c.metrics.Outcomes.WithLabelValues(string(qrsession.StatusExpired)).Inc()
		c.logger.Info().Str("session", session.ShortToken()).Msg("QR login session expired")
		c.callbacks.countdown(0)
		c.callbacks.status(qrsession.StatusExpired)
	}
	return Outcome{SessionToken: session.Token, Status: qrsession.StatusExpired}
}

func (c *Controller) expireIfDue(session qrsession.Session, stopTimers func()) (Outcome, bool) {
	if !session.IsExpiredAt(NowTimeFunc()) {
		return Outcome{}, false
	}
	stopTimers()
	return c.expire(session), true
}
