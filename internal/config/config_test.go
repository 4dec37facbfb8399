package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-qr-login/internal/config"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	c := config.New()

	require.Equal(t, 3*time.Second, c.GetPollInterval())
	require.Equal(t, time.Second, c.GetCountdownInterval())
	require.Equal(t, 180*time.Second, c.GetDefaultSessionTTL())
	require.Equal(t, 300*time.Millisecond, c.GetRedirectDelay())
	require.Equal(t, "/profile", c.GetDefaultRedirect())
	require.Equal(t, time.Hour, c.GetAccessTokenTTL())
	require.Equal(t, 7*24*time.Hour, c.GetRefreshTokenTTL())
	require.Equal(t, "", c.GetRedisAddr())
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("QR_POLL_INTERVAL", "500ms")
	t.Setenv("QR_BASE_URL", "https://admin.example.com")
	t.Setenv("REDIS_DB", "4")
	t.Setenv("ACCESS_TOKEN_TTL", "-1s")

	c := config.New()

	require.Equal(t, 500*time.Millisecond, c.GetPollInterval())
	require.Equal(t, "https://admin.example.com", c.GetBaseURL())
	require.Equal(t, 4, c.GetRedisDB())
	require.Equal(t, time.Hour, c.GetAccessTokenTTL(), "non-positive durations fall back to the default")
}
