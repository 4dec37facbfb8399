package qrapi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// epochThreshold separates relative lifetimes from absolute unix timestamps.
const epochThreshold = 1_000_000_000

// ParseExpiry converts the backend's expires_at value into a lifetime measured
// from now. ok is false when the value is missing, unparseable or already in
// the past, and the caller should fall back to its default TTL.
func ParseExpiry(raw json.RawMessage, now time.Time) (ttl time.Duration, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}

	var value string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &value); err != nil {
			return 0, false
		}
	} else {
		value = string(raw)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if n, err := strconv.ParseFloat(value, 64); err == nil {
		if n > epochThreshold {
			return positive(time.Unix(int64(n), 0).Sub(now))
		}
		return positive(time.Duration(n * float64(time.Second)))
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return positive(t.Sub(now))
	}
	return 0, false
}

func positive(d time.Duration) (time.Duration, bool) {
	if d <= 0 {
		return 0, false
	}
	return d, true
}
