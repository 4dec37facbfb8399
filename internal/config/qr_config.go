package config

import "time"

type QRConfig interface {
	GetBaseURL() string
	GetPollInterval() time.Duration
	GetCountdownInterval() time.Duration
	GetDefaultSessionTTL() time.Duration
	GetRedirectDelay() time.Duration
	GetDefaultRedirect() string
}

type QR struct{}

var _ QRConfig = QR{}

// GetBaseURL returns the backend origin serving /qr/generate and /qr/status
func (QR) GetBaseURL() string {
	return GetEnv("QR_BASE_URL", "http://localhost:8080")
}

func (QR) GetPollInterval() time.Duration {
	return GetEnvDuration("QR_POLL_INTERVAL", 3*time.Second)
}

func (QR) GetCountdownInterval() time.Duration {
	return time.Second
}

// GetDefaultSessionTTL is used when the backend omits or garbles expires_at
func (QR) GetDefaultSessionTTL() time.Duration {
	return GetEnvDuration("QR_DEFAULT_TTL", 180*time.Second)
}

func (QR) GetRedirectDelay() time.Duration {
	return GetEnvDuration("QR_REDIRECT_DELAY", 300*time.Millisecond)
}

func (QR) GetDefaultRedirect() string {
	return GetEnv("QR_DEFAULT_REDIRECT", "/profile")
}
