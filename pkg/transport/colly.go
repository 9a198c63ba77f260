package transport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/livegate/internal/logger"
	"github.com/jmylchreest/livegate/pkg/live"
)

// Colly implements Transport with a fresh colly collector per request.
type Colly struct {
	config Config
}

// NewColly creates a colly-backed transport.
func NewColly(cfg Config) *Colly {
	def := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return &Colly{config: cfg}
}

// Get fetches targetURL with headers applied to the request.
func (t *Colly) Get(ctx context.Context, targetURL string, headers map[string]string) (Response, error) {
	c := colly.NewCollector(
		colly.UserAgent(t.config.UserAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(t.config.Timeout)
	if t.config.MaxBodySize > 0 {
		c.MaxBodySize = t.config.MaxBodySize
	}

	c.OnRequest(func(r *colly.Request) {
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})

	var result Response
	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		if r.Headers != nil {
			result.Header = r.Headers.Clone()
		}
		result.Body = r.Body
		logger.Debug("transport response",
			"url", targetURL,
			"status", r.StatusCode,
			"size", humanize.Bytes(uint64(len(r.Body))))
	})

	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
			result.StatusCode = status
		}
		fetchErr = fmt.Errorf("%w: GET %s (status %d): %v", live.ErrTransport, targetURL, status, err)
		logger.Debug("transport error", "url", targetURL, "status", status, "error", err)
	})

	if err := c.Visit(targetURL); err != nil {
		if fetchErr != nil {
			return result, fetchErr
		}
		return result, fmt.Errorf("%w: GET %s: %v", live.ErrTransport, targetURL, err)
	}
	if fetchErr != nil {
		return result, fetchErr
	}
	if result.Header == nil {
		result.Header = http.Header{}
	}
	return result, nil
}
