package qrapi

import "encoding/json"

// GenerateResponse is the body returned by the /qr/generate endpoint.
type GenerateResponse struct {
	// Success is false when the backend refused to issue a session.
	Success bool `json:"success"`

	// Data carries the issued session. Absent when Success is false.
	Data *GenerateData `json:"data,omitempty"`

	// Error is a human readable reason for a failed generation.
	Error string `json:"error,omitempty"`
}

// GenerateData describes a freshly issued QR session.
type GenerateData struct {
	// QRCode is a renderable image reference, usually a data URL.
	// Example: "data:image/png;base64,iVBORw0KGgo..."
	QRCode string `json:"qr_code"`

	// Token identifies the session for status polling.
	Token string `json:"token"`

	// ExpiresAt is either a lifetime in seconds, a unix timestamp, or an
	// RFC 3339 instant. Observed backends send 180.
	ExpiresAt json.RawMessage `json:"expires_at,omitempty"`

	// Status is the initial handshake state, normally "pending".
	Status string `json:"status,omitempty"`
}

// StatusResponse is the body returned by the /qr/status endpoint.
type StatusResponse struct {
	Success bool        `json:"success"`
	Data    *StatusData `json:"data,omitempty"`

	// RequiresAuth is set when the scanning device still has to authenticate.
	// Treated the same as an HTTP 401: the handshake is still in progress.
	RequiresAuth bool   `json:"requires_auth,omitempty"`
	Error        string `json:"error,omitempty"`
}

// StatusData carries the handshake state and, once confirmed, the credentials.
type StatusData struct {
	// Status is one of pending, scanned, success or expired.
	Status string `json:"status"`

	// AccessToken is present only when Status is "success".
	// Usage: "Authorization: Bearer <access_token>"
	AccessToken *string `json:"access_token,omitempty"`

	// RefreshToken may be omitted even on success, which limits how long the
	// login survives.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// NextURL is the backend's suggested post-login destination.
	NextURL *string `json:"next_url,omitempty"`
}
