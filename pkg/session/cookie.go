package session

import (
	"strings"
	"time"
)

// Cookie is a transient copy of a cookie held by the cookie store.
type Cookie struct {
	Name    string
	Value   string
	Domain  string
	Path    string
	Expires time.Time // zero for session cookies
}

// Same reports whether c and other name the same cookie.
// Cookies are identified by name and domain; value and expiry are ignored.
func (c Cookie) Same(other Cookie) bool {
	return c.Name == other.Name && c.Domain == other.Domain
}

// FilterDomain returns the cookies whose domain contains domain.
func FilterDomain(cookies []Cookie, domain string) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		if strings.Contains(c.Domain, domain) {
			out = append(out, c)
		}
	}
	return out
}

// CookieHeader renders cookies as a Cookie header value: "a=1;b=2;".
func CookieHeader(cookies []Cookie) string {
	var b strings.Builder
	for _, c := range cookies {
		b.WriteString(c.Name)
		b.WriteByte('=')
		b.WriteString(c.Value)
		b.WriteByte(';')
	}
	return b.String()
}
