// Package transport performs the authenticated page requests made once a
// session exists. Implement Transport to swap the HTTP stack.
package transport

import (
	"context"
	"net/http"
	"time"
)

// Transport issues GET requests with a fixed header set.
type Transport interface {
	// Get fetches url with the given headers. Network failures and non-2xx
	// responses return an error wrapping live.ErrTransport.
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}

// Response is the raw result of a request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Config holds transport configuration.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	MaxBodySize int // bytes, 0 keeps the collector default
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:   DefaultUserAgent,
		Timeout:     20 * time.Second,
		MaxBodySize: 8 << 20,
	}
}

// DefaultUserAgent matches the desktop Safari build the room pages are served to.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.4 Safari/605.1.15"
