package session

import (
	"time"

	"github.com/jmylchreest/livegate/pkg/transport"
)

// Config controls session acquisition.
type Config struct {
	// BootstrapURL is loaded to obtain anti-bot cookies. Any room page works,
	// including one that does not exist.
	BootstrapURL string

	// Domain filters the cookie store; a cookie qualifies when its domain
	// contains this string.
	Domain string

	// Threshold is the minimum number of qualifying cookies that marks the
	// session as authenticated.
	Threshold int

	// SuccessMarker and ChallengeMarker are matched against the document
	// title after each load.
	SuccessMarker   string
	ChallengeMarker string

	UserAgent string
	Referer   string

	// MaxChallenges bounds how many challenge pages are reloaded before the
	// attempt fails with live.ErrChallengeExhausted. 0 means unbounded.
	MaxChallenges int

	// ReloadInterval is the minimum spacing between challenge reloads.
	ReloadInterval time.Duration

	// AttemptTimeout bounds a whole acquisition attempt. 0 means unbounded.
	AttemptTimeout time.Duration
}

// DefaultConfig returns the configuration for live.douyin.com.
func DefaultConfig() Config {
	return Config{
		BootstrapURL:    "https://live.douyin.com/1145141919810",
		Domain:          "douyin",
		Threshold:       10,
		SuccessMarker:   "抖音直播",
		ChallengeMarker: "验证",
		UserAgent:       transport.DefaultUserAgent,
		Referer:         "https://live.douyin.com",
		MaxChallenges:   5,
		ReloadInterval:  time.Second,
		AttemptTimeout:  90 * time.Second,
	}
}

// withDefaults fills empty identity fields from DefaultConfig. The
// hardening limits are left alone since zero is meaningful for them.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BootstrapURL == "" {
		c.BootstrapURL = def.BootstrapURL
	}
	if c.Domain == "" {
		c.Domain = def.Domain
	}
	if c.Threshold <= 0 {
		c.Threshold = def.Threshold
	}
	if c.SuccessMarker == "" {
		c.SuccessMarker = def.SuccessMarker
	}
	if c.ChallengeMarker == "" {
		c.ChallengeMarker = def.ChallengeMarker
	}
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}
	if c.Referer == "" {
		c.Referer = def.Referer
	}
	return c
}
