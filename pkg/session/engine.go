package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/jmylchreest/livegate/internal/logger"
	"github.com/jmylchreest/livegate/pkg/live"
	"github.com/jmylchreest/livegate/pkg/transport"
)

// ErrClosed is returned by Acquire and Fetch after Close.
var ErrClosed = errors.New("session: engine closed")

const stopTimeout = 5 * time.Second

// Engine owns one authenticated session and the acquisition attempt that
// produces it. Concurrent callers share a single in-flight attempt.
type Engine struct {
	cfg       Config
	transport transport.Transport
	nav       *Navigator
	watcher   *Watcher
	observer  Observer
	limiter   *rate.Limiter
	now       func() time.Time

	// mu guards the fields below and serialises subscription changes on
	// nav and watcher.
	mu      sync.Mutex
	attempt *attempt
	session *Session
	client  *Client
	closed  bool
}

type attempt struct {
	id        string
	startedAt time.Time
	state     State // guarded by Engine.mu
	abort     context.CancelCauseFunc

	once    sync.Once
	done    chan struct{}
	session *Session
	err     error
}

func (a *attempt) finish(s *Session, err error) {
	a.once.Do(func() {
		a.session, a.err = s, err
		close(a.done)
	})
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver sets the observer notified of acquisition events.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithClock overrides the time source used for session and event stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an engine. No browser work happens until the first Acquire.
func New(cfg Config, surface Surface, store CookieStore, t transport.Transport, opts ...Option) *Engine {
	cfg = cfg.withDefaults()

	limit := rate.Inf
	if cfg.ReloadInterval > 0 {
		limit = rate.Every(cfg.ReloadInterval)
	}

	e := &Engine{
		cfg:       cfg,
		transport: t,
		nav:       NewNavigator(surface),
		watcher:   NewWatcher(store, cfg.Domain),
		observer:  nopObserver{},
		limiter:   rate.NewLimiter(limit, 1),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Acquire returns the current session, starting or joining an acquisition
// attempt when there is none. Cancelling ctx abandons the wait but leaves
// the attempt running for other callers.
func (e *Engine) Acquire(ctx context.Context) (*Session, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	if e.session != nil {
		s := e.session
		e.mu.Unlock()
		return s, nil
	}
	a := e.attempt
	if a == nil {
		a = e.startLocked()
	} else {
		logger.Debug("joining acquisition attempt", "attempt", a.id)
	}
	e.mu.Unlock()

	select {
	case <-a.done:
		return a.session, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Fetch acquires a session if needed and GETs url with it.
func (e *Engine) Fetch(ctx context.Context, url string) (string, error) {
	s, err := e.Acquire(ctx)
	if err != nil {
		return "", err
	}
	return e.clientFor(s).Fetch(ctx, url)
}

// Session returns the current session, or nil.
func (e *Engine) Session() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Client returns the client of the current session, or nil.
func (e *Engine) Client() *Client {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client
}

// State reports StateResolved while a session exists, the attempt's state
// while one runs, and StateIdle otherwise.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.session != nil:
		return StateResolved
	case e.attempt != nil:
		return e.attempt.state
	default:
		return StateIdle
	}
}

// Reset stops navigation, drops the session and cancels any in-flight
// attempt, whose waiters receive live.ErrSessionReset. The next Acquire
// starts a fresh attempt. Reset is safe to call repeatedly.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	a, err := e.resetLocked(ctx)
	e.mu.Unlock()
	e.afterReset(ctx, a)
	return err
}

// Close resets the engine and rejects further acquisitions.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	a, err := e.resetLocked(ctx)
	e.mu.Unlock()
	e.afterReset(ctx, a)
	return err
}

func (e *Engine) resetLocked(ctx context.Context) (*attempt, error) {
	a := e.attempt
	e.attempt = nil
	e.session = nil
	e.client = nil
	e.watcher.Stop()
	e.nav.Unwatch()
	if a != nil {
		a.abort(live.ErrSessionReset)
	}
	return a, e.nav.Stop(ctx)
}

func (e *Engine) afterReset(ctx context.Context, a *attempt) {
	ev := Event{Kind: EventReset, State: StateIdle}
	if a != nil {
		a.finish(nil, live.ErrSessionReset)
		ev.Attempt = a.id
		ev.Elapsed = e.now().Sub(a.startedAt)
		logger.Debug("acquisition attempt reset", "attempt", a.id)
	}
	ev.At = e.now()
	e.observer.OnEvent(ctx, ev)
}

func (e *Engine) clientFor(s *Session) *Client {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil && e.client.session == s {
		return e.client
	}
	return NewClient(s, e.transport)
}

// startLocked creates an attempt and subscribes to the surface and cookie
// store before handing the attempt to its goroutine.
func (e *Engine) startLocked() *attempt {
	base, abort := context.WithCancelCause(context.Background())
	ctx, cancel := base, context.CancelFunc(func() {})
	if e.cfg.AttemptTimeout > 0 {
		ctx, cancel = context.WithTimeoutCause(base, e.cfg.AttemptTimeout, live.ErrAcquireTimeout)
	}

	a := &attempt{
		id:        ulid.Make().String(),
		startedAt: e.now(),
		state:     StateIdle,
		abort:     abort,
		done:      make(chan struct{}),
	}
	e.attempt = a
	e.watcher.Start()
	e.nav.Watch()

	go func() {
		defer abort(nil)
		defer cancel()
		e.run(ctx, a)
	}()
	return a
}

// run is the event loop of one attempt. It alone drives the attempt's
// machine; titles and cookie batches are handled in arrival order.
func (e *Engine) run(ctx context.Context, a *attempt) {
	log := logger.With("attempt", a.id)
	m := newMachine(e.cfg)
	m.start()
	e.setState(a, m.state, log)
	e.emit(ctx, a, Event{Kind: EventStarted})

	if err := e.watcher.Purge(ctx); err != nil {
		log.Warn("cookie purge failed", "error", err)
	}
	if err := e.nav.Navigate(ctx, e.cfg.BootstrapURL); err != nil {
		e.fail(ctx, a, m, e.loadError(ctx, err), log)
		return
	}

	for {
		select {
		case <-ctx.Done():
			e.fail(ctx, a, m, context.Cause(ctx), log)
			return

		case title := <-e.nav.Titles():
			log.Debug("page settled", "title", title, "state", m.state)
			e.emit(ctx, a, Event{Kind: EventSettled, Title: title})

			switch m.settled(title) {
			case stepAwait:
				e.setState(a, m.state, log)
				e.ifCurrent(a, e.nav.Unwatch)
				cookies, err := e.watcher.Snapshot(ctx)
				if err != nil {
					log.Debug("cookie snapshot failed", "error", err)
					continue
				}
				if e.offer(ctx, a, m, cookies, log) {
					return
				}

			case stepReload:
				e.setState(a, m.state, log)
				log.Info("anti-bot challenge, reloading", "title", title, "challenges", m.challenges)
				e.emit(ctx, a, Event{Kind: EventChallenge, Title: title})
				if err := e.reload(ctx, log); err != nil {
					e.fail(ctx, a, m, err, log)
					return
				}
				m.reloaded()
				e.setState(a, m.state, log)

			case stepExhausted:
				e.fail(ctx, a, m, fmt.Errorf("%w: gave up after %d reloads", live.ErrChallengeExhausted, m.challenges-1), log)
				return
			}

		case batch := <-e.watcher.Batches():
			if e.offer(ctx, a, m, batch, log) {
				return
			}
		}
	}
}

// offer hands a cookie batch to the machine and resolves the attempt when
// it qualifies.
func (e *Engine) offer(ctx context.Context, a *attempt, m *machine, cookies []Cookie, log *slog.Logger) bool {
	log.Debug("cookie batch", "cookies", len(cookies), "state", m.state)
	e.emit(ctx, a, Event{Kind: EventCookies, Cookies: len(cookies)})
	if m.cookies(len(cookies)) != stepResolve {
		return false
	}
	e.resolve(ctx, a, cookies, log)
	return true
}

func (e *Engine) resolve(ctx context.Context, a *attempt, cookies []Cookie, log *slog.Logger) {
	s := NewSession(cookies, e.cfg.UserAgent, e.cfg.Referer, e.now())

	e.mu.Lock()
	current := e.attempt == a
	if current {
		a.state = StateResolved
		e.attempt = nil
		e.session = s
		e.client = NewClient(s, e.transport)
		e.watcher.Stop()
		e.nav.Unwatch()
		e.stopNavigation(ctx, log)
	}
	e.mu.Unlock()

	if !current {
		a.finish(nil, live.ErrSessionReset)
		return
	}
	log.Info("session ready", "cookies", len(cookies), "elapsed", e.now().Sub(a.startedAt).Round(time.Millisecond))
	e.emit(ctx, a, Event{Kind: EventReady, State: StateResolved, Cookies: len(cookies)})
	a.finish(s, nil)
}

func (e *Engine) fail(ctx context.Context, a *attempt, m *machine, err error, log *slog.Logger) {
	m.fail()

	e.mu.Lock()
	current := e.attempt == a
	if current {
		a.state = StateFailed
		e.attempt = nil
		e.watcher.Stop()
		e.nav.Unwatch()
		e.stopNavigation(ctx, log)
	}
	e.mu.Unlock()

	if current {
		log.Warn("session acquisition failed", "error", err)
		e.emit(ctx, a, Event{Kind: EventFailed, State: StateFailed, Err: err})
	}
	a.finish(nil, err)
}

// reload purges cookies and reloads the bootstrap page, no faster than
// the configured reload interval.
func (e *Engine) reload(ctx context.Context, log *slog.Logger) error {
	if err := e.watcher.Purge(ctx); err != nil {
		log.Warn("cookie purge failed", "error", err)
	}
	if err := e.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		// the limiter refuses waits that would outlast the deadline
		return fmt.Errorf("%w: %v", live.ErrAcquireTimeout, err)
	}
	if err := e.nav.Navigate(ctx, e.cfg.BootstrapURL); err != nil {
		return e.loadError(ctx, err)
	}
	return nil
}

func (e *Engine) loadError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	if errors.Is(err, live.ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: load %s: %v", live.ErrTransport, e.cfg.BootstrapURL, err)
}

// stopNavigation stops the surface even when ctx has expired. Callers hold e.mu.
func (e *Engine) stopNavigation(ctx context.Context, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	if err := e.nav.Stop(ctx); err != nil {
		log.Debug("stop loading failed", "error", err)
	}
}

func (e *Engine) ifCurrent(a *attempt, fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.attempt == a {
		fn()
	}
}

func (e *Engine) setState(a *attempt, s State, log *slog.Logger) {
	e.mu.Lock()
	prev := a.state
	a.state = s
	e.mu.Unlock()
	if prev != s {
		log.Debug("state transition", "from", prev, "to", s)
	}
}

func (e *Engine) emit(ctx context.Context, a *attempt, ev Event) {
	ev.Attempt = a.id
	if ev.State == 0 {
		e.mu.Lock()
		ev.State = a.state
		e.mu.Unlock()
	}
	ev.At = e.now()
	ev.Elapsed = ev.At.Sub(a.startedAt)
	e.observer.OnEvent(ctx, ev)
}
