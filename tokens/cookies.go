package tokens

import (
	"net/http"
	"net/url"
	"time"
)

// CookieWriter receives the credential cookies.
type CookieWriter interface {
	SetCookie(cookie *http.Cookie) error
}

// JarWriter stores cookies in an http.CookieJar for the backend origin, so
// later requests from the same client carry them.
type JarWriter struct {
	Jar    http.CookieJar
	Origin *url.URL
}

func (j JarWriter) SetCookie(cookie *http.Cookie) error {
	j.Jar.SetCookies(j.Origin, []*http.Cookie{cookie})
	return nil
}

// ResponseWriter sets cookies on an outgoing HTTP response, for when the
// handshake is driven from a server-rendered page.
type ResponseWriter struct {
	W http.ResponseWriter
}

func (r ResponseWriter) SetCookie(cookie *http.Cookie) error {
	http.SetCookie(r.W, cookie)
	return nil
}

func newCookie(name, value string, ttl time.Duration, now time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		Expires:  now.Add(ttl),
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func expiredCookie(name string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}
