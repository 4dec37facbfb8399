package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-qr-login/internal/config"
	"github.com/jrsteele09/go-qr-login/qrapi"
	"github.com/jrsteele09/go-qr-login/qrlogin"
	"github.com/jrsteele09/go-qr-login/qrsession"
	"github.com/jrsteele09/go-qr-login/redirect"
	"github.com/jrsteele09/go-qr-login/tokens"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type options struct {
	baseURL string
	next    string
	timeout time.Duration
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:           "qrlogin",
		Short:         "Log in to the admin console by scanning a QR code",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := run(cmd.Context(), opts); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "Backend origin (default QR_BASE_URL)")
	cmd.Flags().StringVar(&opts.next, "next", "", "Page to open after login")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Give up after this long (default: session lifetime)")
	return cmd
}

func run(ctx context.Context, opts options) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	baseURL := opts.baseURL
	if baseURL == "" {
		baseURL = c.GetBaseURL()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("cookiejar.New: %w", err)
	}
	client, err := qrapi.New(baseURL, qrapi.WithHTTPClient(&http.Client{Jar: jar, Timeout: 10 * time.Second}))
	if err != nil {
		return err
	}

	repo, closeRepo, err := newRepo(ctx, c)
	if err != nil {
		return err
	}
	defer closeRepo()

	origin := client.BaseURL()
	persister, err := tokens.NewPersister(repo, tokens.JarWriter{Jar: jar, Origin: origin}, c,
		tokens.WithSecureCookies(origin.Scheme == "https"))
	if err != nil {
		return err
	}

	redirector := redirect.New(redirect.NavigatorFunc(func(_ context.Context, target string) error {
		fmt.Printf("\nLogged in, continue at %s%s\n", origin.String(), target)
		return nil
	}), c)

	ctrl := qrlogin.New(client, persister, redirector, c,
		qrlogin.WithNext(opts.next),
		qrlogin.WithMetrics(qrlogin.NewMetrics(prometheus.NewRegistry())),
		qrlogin.WithCallbacks(consoleCallbacks()),
	)
	defer ctrl.Close()

	if _, err := ctrl.Generate(ctx); err != nil {
		return err
	}

	waitCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(waitCtx, opts.timeout)
		defer cancel()
	}

	outcome, err := ctrl.Wait(waitCtx)
	if err != nil {
		return fmt.Errorf("waiting for login: %w", err)
	}
	switch {
	case outcome.Err != nil:
		return outcome.Err
	case outcome.Status == qrsession.StatusExpired:
		return errors.New("QR code expired, run again for a new one")
	}
	if outcome.Credentials.RefreshTokenMissing {
		fmt.Println("No refresh token was issued, you will need to log in again when the session ends")
	}
	return nil
}

func newRepo(ctx context.Context, c config.Config) (tokens.Repo, func(), error) {
	if c.GetRedisAddr() == "" {
		return tokens.NewInMemoryRepo(), func() {}, nil
	}
	rdb, err := tokens.NewRedisClient(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	return tokens.NewRedisRepo(rdb), func() { _ = rdb.Close() }, nil
}

func consoleCallbacks() qrlogin.Callbacks {
	return qrlogin.Callbacks{
		OnSession: func(s qrsession.Session) {
			fmt.Printf("Scan the QR code to log in (session %s)\n", s.ShortToken())
			fmt.Printf("QR image: %s\n\n", truncate(s.QRImage, 96))
		},
		OnStatus: func(s qrsession.Status) {
			fmt.Printf("\rStatus: %-10s\n", s)
		},
		OnCountdown: func(remaining int) {
			fmt.Printf("\rExpires in %3ds", remaining)
		},
		OnError: func(err error) {
			fmt.Fprintf(os.Stderr, "\n%v\n", err)
		},
	}
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
