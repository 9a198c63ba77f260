package session

import (
	"maps"
	"slices"
	"time"
)

// Header names set on every session request.
const (
	HeaderUserAgent = "User-Agent"
	HeaderReferer   = "Referer"
	HeaderCookie    = "Cookie"
)

// Session is an authenticated identity built from a qualifying cookie
// batch. It is immutable; accessors return copies.
type Session struct {
	headers   map[string]string
	cookie    string
	cookies   []Cookie
	createdAt time.Time
}

// NewSession builds a session from cookies.
func NewSession(cookies []Cookie, userAgent, referer string, createdAt time.Time) *Session {
	cookie := CookieHeader(cookies)
	return &Session{
		headers: map[string]string{
			HeaderUserAgent: userAgent,
			HeaderReferer:   referer,
			HeaderCookie:    cookie,
		},
		cookie:    cookie,
		cookies:   slices.Clone(cookies),
		createdAt: createdAt,
	}
}

// Headers returns the request headers of the session.
func (s *Session) Headers() map[string]string {
	return maps.Clone(s.headers)
}

// CookieHeader returns the Cookie header value.
func (s *Session) CookieHeader() string {
	return s.cookie
}

// Cookies returns the cookies the session was built from.
func (s *Session) Cookies() []Cookie {
	return slices.Clone(s.cookies)
}

// CreatedAt returns when the session was built.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}
