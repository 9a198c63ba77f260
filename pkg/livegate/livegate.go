package livegate

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/livegate/internal/logger"
	"github.com/jmylchreest/livegate/pkg/browser"
	"github.com/jmylchreest/livegate/pkg/decoder"
	"github.com/jmylchreest/livegate/pkg/live"
	"github.com/jmylchreest/livegate/pkg/session"
	"github.com/jmylchreest/livegate/pkg/transport"
)

// Info is the decoded descriptor of a live room.
type Info = live.Info

// Error kinds, re-exported from pkg/live for errors.Is checks.
var (
	ErrTransport          = live.ErrTransport
	ErrNotFound           = live.ErrNotFound
	ErrParse              = live.ErrParse
	ErrMapping            = live.ErrMapping
	ErrChallengeExhausted = live.ErrChallengeExhausted
	ErrAcquireTimeout     = live.ErrAcquireTimeout
	ErrSessionReset       = live.ErrSessionReset
	ErrInvalidRef         = live.ErrInvalidRef
)

// MappingError names the field that did not match the room schema.
type MappingError = live.MappingError

// Version returns the module version of the livegate library, or
// "(unknown)" when build info is unavailable.
func Version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.Main.Version
	}
	return "(unknown)"
}

// Result is the outcome of one lookup in GetMany.
type Result struct {
	URL      string
	Info     *Info
	Duration time.Duration
	Error    error
}

// Client is the main entry point. It is safe for concurrent use; callers
// arriving while no session exists share one acquisition.
type Client struct {
	engine  *session.Engine
	decoder *decoder.Decoder
	browser *browser.Browser
	config  Config
}

// New creates a client. Unless WithSurface is given it launches headless
// Chrome, which ctx bounds.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var b *browser.Browser
	surface, cookies := cfg.Surface, cfg.Cookies
	if surface == nil || cookies == nil {
		var err error
		b, err = browser.New(ctx, cfg.Browser)
		if err != nil {
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
		surface, cookies = b, b
	}

	httpTransport := cfg.HTTP
	if httpTransport == nil {
		httpTransport = transport.NewColly(cfg.Transport)
	}

	var engineOpts []session.Option
	if cfg.Observer != nil {
		engineOpts = append(engineOpts, session.WithObserver(cfg.Observer))
	}

	return &Client{
		engine:  session.New(cfg.Session, surface, cookies, httpTransport, engineOpts...),
		decoder: decoder.New(),
		browser: b,
		config:  cfg,
	}, nil
}

// GetInfo looks up a room. ref is a live.douyin.com room URL or a bare
// numeric room id.
func (c *Client) GetInfo(ctx context.Context, ref string) (*Info, error) {
	roomURL, err := live.ParseRoomURL(ref)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	html, err := c.engine.Fetch(ctx, roomURL)
	if err != nil {
		return nil, err
	}
	info, err := c.decoder.Decode(html)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", roomURL, err)
	}

	logger.Debug("room info",
		"url", roomURL,
		"title", info.Title,
		"status", info.StatusText(),
		"duration", time.Since(start).Round(time.Millisecond))
	return info, nil
}

// GetMany looks up refs with at most concurrency lookups in flight.
// Results arrive in completion order; the channel closes when all are done.
func (c *Client) GetMany(ctx context.Context, refs []string, concurrency int) <-chan *Result {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make(chan *Result, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	go func() {
		defer close(results)
		for _, ref := range refs {
			g.Go(func() error {
				start := time.Now()
				info, err := c.GetInfo(gctx, ref)
				results <- &Result{URL: ref, Info: info, Duration: time.Since(start), Error: err}
				// lookups are independent; only cancellation stops the group
				if errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
	return results
}

// Acquire returns the current session, acquiring one first if needed.
func (c *Client) Acquire(ctx context.Context) (*session.Session, error) {
	return c.engine.Acquire(ctx)
}

// Session returns the current session, or nil before the first lookup.
func (c *Client) Session() *session.Session {
	return c.engine.Session()
}

// State returns the acquisition state.
func (c *Client) State() session.State {
	return c.engine.State()
}

// Reset drops the session; the next lookup acquires a new one.
func (c *Client) Reset(ctx context.Context) error {
	return c.engine.Reset(ctx)
}

// Close releases the session and the browser.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := c.engine.Close(ctx)
	if c.browser != nil {
		err = errors.Join(err, c.browser.Close())
	}
	return err
}
