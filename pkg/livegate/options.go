// Package livegate looks up Douyin live rooms. It acquires an anti-bot
// session with a headless browser once, then fetches and decodes room
// pages with plain HTTP requests.
package livegate

import (
	"time"

	"github.com/jmylchreest/livegate/pkg/browser"
	"github.com/jmylchreest/livegate/pkg/session"
	"github.com/jmylchreest/livegate/pkg/transport"
)

// Config holds all livegate configuration.
type Config struct {
	Session   session.Config
	Browser   browser.Config
	Transport transport.Config

	// Surface and Cookies replace the headless browser when both are set.
	Surface session.Surface
	Cookies session.CookieStore

	// HTTP replaces the colly transport when set.
	HTTP transport.Transport

	Observer session.Observer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Session:   session.DefaultConfig(),
		Browser:   browser.DefaultConfig(),
		Transport: transport.DefaultConfig(),
	}
}

// Option configures livegate.
type Option func(*Config)

// WithUserAgent sets the user agent for the browser and for page requests.
func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.Session.UserAgent = ua
		c.Browser.UserAgent = ua
		c.Transport.UserAgent = ua
	}
}

// WithTimeout sets the page request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Transport.Timeout = d
	}
}

// WithAttemptTimeout bounds each session acquisition attempt. 0 disables it.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Session.AttemptTimeout = d
	}
}

// WithMaxChallenges bounds challenge reloads per attempt. 0 disables it.
func WithMaxChallenges(n int) Option {
	return func(c *Config) {
		c.Session.MaxChallenges = n
	}
}

// WithReloadInterval sets the minimum spacing between challenge reloads.
func WithReloadInterval(d time.Duration) Option {
	return func(c *Config) {
		c.Session.ReloadInterval = d
	}
}

// WithHeadless toggles headless Chrome.
func WithHeadless(headless bool) Option {
	return func(c *Config) {
		c.Browser.Headless = headless
	}
}

// WithChromePath sets the Chrome binary.
func WithChromePath(path string) Option {
	return func(c *Config) {
		c.Browser.ExecPath = path
	}
}

// WithStealth toggles the automation-fingerprint masking script.
func WithStealth(enabled bool) Option {
	return func(c *Config) {
		c.Browser.Stealth = enabled
	}
}

// WithSurface replaces the headless browser with another rendering surface
// and cookie store.
func WithSurface(surface session.Surface, cookies session.CookieStore) Option {
	return func(c *Config) {
		c.Surface = surface
		c.Cookies = cookies
	}
}

// WithTransport replaces the HTTP transport used for page requests.
func WithTransport(t transport.Transport) Option {
	return func(c *Config) {
		c.HTTP = t
	}
}

// WithObserver sets an observer for acquisition events.
func WithObserver(o session.Observer) Option {
	return func(c *Config) {
		c.Observer = o
	}
}
