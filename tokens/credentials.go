package tokens

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// Credentials are the tokens issued when a QR session is confirmed. They are
// never mutated; a new login replaces them wholesale.
type Credentials struct {
	AccessToken  string
	RefreshToken string // Empty when the backend did not issue one
}

func (c Credentials) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// Claims holds the parts of a JWT access token that are useful client side.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// Claims reads the access token without verifying it. The client has no key
// material; the values are only used for logging and to cap cookie lifetimes.
// ok is false for opaque (non-JWT) tokens.
func (c Credentials) Claims() (Claims, bool) {
	token, _, err := jwtlib.NewParser().ParseUnverified(c.AccessToken, jwtlib.MapClaims{})
	if err != nil {
		return Claims{}, false
	}
	mc, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return Claims{}, false
	}

	var claims Claims
	if sub, err := mc.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims, true
}

// OAuth2Token adapts the credentials for golang.org/x/oauth2 clients.
func (c Credentials) OAuth2Token(expiry time.Time) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
		Expiry:       expiry,
	}
}
