package qrlogin

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts handshake activity. Build it with a nil registerer to keep
// the counters private (tests, embedded use).
type Metrics struct {
	// Generations counts /qr/generate attempts by result (ok, error).
	Generations *prometheus.CounterVec

	// Polls counts status responses by outcome (pending, scanned, confirmed,
	// expired, unknown, auth_pending, no_token, error, stale).
	Polls *prometheus.CounterVec

	// Outcomes counts finished sessions by final state (confirmed, expired, cancelled).
	Outcomes *prometheus.CounterVec

	// Persisted counts credential writes by refresh token presence (present, missing, error).
	Persisted *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Generations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qrlogin_generations_total",
				Help: "Total number of QR session generation attempts",
			},
			[]string{"result"},
		),
		Polls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qrlogin_polls_total",
				Help: "Total number of QR status poll responses",
			},
			[]string{"outcome"},
		),
		Outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qrlogin_sessions_finished_total",
				Help: "Total number of QR sessions that stopped, by final state",
			},
			[]string{"status"},
		),
		Persisted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qrlogin_credentials_persisted_total",
				Help: "Total number of credential persistence attempts",
			},
			[]string{"refresh"},
		),
	}
}
