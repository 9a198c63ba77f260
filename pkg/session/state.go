package session

import (
	"fmt"
	"strings"
)

// State is the state of an acquisition attempt.
type State int

const (
	StateIdle State = iota
	StateNavigating
	StateChallengeRetry
	StateAwaitingCookies
	StateResolved
	StateFailed
)

var stateNames = [...]string{
	StateIdle:            "idle",
	StateNavigating:      "navigating",
	StateChallengeRetry:  "challenge_retry",
	StateAwaitingCookies: "awaiting_cookies",
	StateResolved:        "resolved",
	StateFailed:          "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateResolved || s == StateFailed
}

// step is the side effect the engine performs after a transition.
type step int

const (
	stepNone      step = iota
	stepAwait          // stop watching navigation, snapshot cookies
	stepReload         // purge cookies, reload the bootstrap page
	stepExhausted      // fail with live.ErrChallengeExhausted
	stepResolve        // build the session from the batch
)

// machine holds the transition rules of one attempt. It performs no I/O.
type machine struct {
	state      State
	challenges int

	threshold     int
	maxChallenges int
	success       string
	challenge     string
}

func newMachine(cfg Config) *machine {
	return &machine{
		state:         StateIdle,
		threshold:     cfg.Threshold,
		maxChallenges: cfg.MaxChallenges,
		success:       cfg.SuccessMarker,
		challenge:     cfg.ChallengeMarker,
	}
}

func (m *machine) start() {
	if m.state == StateIdle {
		m.state = StateNavigating
	}
}

// settled handles the title read after a load completes.
func (m *machine) settled(title string) step {
	if m.state != StateNavigating && m.state != StateChallengeRetry {
		return stepNone
	}
	switch {
	case strings.Contains(title, m.success):
		m.state = StateAwaitingCookies
		return stepAwait
	case strings.Contains(title, m.challenge):
		m.challenges++
		if m.maxChallenges > 0 && m.challenges > m.maxChallenges {
			m.state = StateFailed
			return stepExhausted
		}
		m.state = StateChallengeRetry
		return stepReload
	default:
		return stepNone
	}
}

// reloaded moves a challenged attempt back to waiting for the next load.
func (m *machine) reloaded() {
	if m.state == StateChallengeRetry {
		m.state = StateNavigating
	}
}

// cookies handles a batch of n qualifying cookies. Batches count only once
// the success title has been seen.
func (m *machine) cookies(n int) step {
	if m.state != StateAwaitingCookies || n < m.threshold {
		return stepNone
	}
	m.state = StateResolved
	return stepResolve
}

func (m *machine) fail() {
	if !m.state.Terminal() {
		m.state = StateFailed
	}
}
