// Package browser drives headless Chrome through chromedp and exposes it
// as the rendering surface and cookie store used for session acquisition.
package browser

import (
	"time"

	"github.com/jmylchreest/livegate/pkg/transport"
)

// Config holds configuration for the browser.
type Config struct {
	ExecPath  string // Chrome binary; found with FindChromePath when empty
	UserAgent string
	Headless  bool
	Stealth   bool // Inject anti-detection patches before page scripts run

	// CookiePoll fires cookie change notifications on an interval, catching
	// cookies written by page scripts that produce no network event.
	// 0 disables polling.
	CookiePoll time.Duration

	// StartTimeout bounds browser launch.
	StartTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:    transport.DefaultUserAgent,
		Headless:     true,
		Stealth:      true,
		CookiePoll:   2 * time.Second,
		StartTimeout: 30 * time.Second,
	}
}
