package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/livegate/pkg/live"
	"github.com/jmylchreest/livegate/pkg/transport"
)

// Client fetches pages with a session's headers.
type Client struct {
	session   *Session
	transport transport.Transport
}

// NewClient binds s to t.
func NewClient(s *Session, t transport.Transport) *Client {
	return &Client{session: s, transport: t}
}

// Session returns the session the client was built from.
func (c *Client) Session() *Session {
	return c.session
}

// Fetch GETs url and returns the body. An empty body is live.ErrNotFound.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	resp, err := c.transport.Get(ctx, url, c.session.headers)
	if err != nil {
		if errors.Is(err, live.ErrTransport) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", live.ErrTransport, err)
	}
	if len(resp.Body) == 0 {
		return "", fmt.Errorf("%w: empty response from %s", live.ErrNotFound, url)
	}
	return string(resp.Body), nil
}
