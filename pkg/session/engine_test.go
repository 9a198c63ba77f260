package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/livegate/pkg/live"
)

const successTitle = "抖音直播"

type harness struct {
	t       *testing.T
	surface *fakeSurface
	store   *fakeStore
	tr      *fakeTransport
	rec     *recorder
	engine  *Engine
}

type result struct {
	session *Session
	err     error
}

func newHarness(t *testing.T, cfg Config, initial ...Cookie) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		surface: newFakeSurface(),
		store:   newFakeStore(initial...),
		tr:      &fakeTransport{},
		rec:     &recorder{},
	}
	h.engine = New(cfg, h.surface, h.store, h.tr, WithObserver(h.rec))
	t.Cleanup(func() { _ = h.engine.Close(context.Background()) })
	return h
}

func (h *harness) acquireAsync() <-chan result {
	ch := make(chan result, 1)
	go func() {
		s, err := h.engine.Acquire(context.Background())
		ch <- result{s, err}
	}()
	return ch
}

func (h *harness) await(ch <-chan result) result {
	h.t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(waitFor):
		h.t.Fatal("timed out waiting for Acquire")
		return result{}
	}
}

func (h *harness) waitLoads(n int) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return h.surface.loadCount() == n }, waitFor, tick,
		"expected %d loads", n)
}

func (h *harness) waitState(s State) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return h.engine.State() == s }, waitFor, tick,
		"expected state %s", s)
}

// settle fires a load completion and waits until the engine has handled it.
func (h *harness) settle(title string) {
	h.t.Helper()
	before := h.rec.count(EventSettled)
	h.surface.settle(title)
	require.Eventually(h.t, func() bool { return h.rec.count(EventSettled) > before }, waitFor, tick,
		"title %q not handled", title)
}

// waitCookies waits for a cookie batch of n qualifying cookies to be seen.
func (h *harness) waitCookies(n int) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		ev, ok := h.rec.last(EventCookies)
		return ok && ev.Cookies == n
	}, waitFor, tick, "expected a batch of %d cookies", n)
}

// resolve runs a clean acquisition to completion.
func (h *harness) resolve() *Session {
	h.t.Helper()
	ch := h.acquireAsync()
	loads := h.surface.loadCount()
	h.waitLoads(loads + 1)
	h.settle(successTitle)
	h.store.set(makeCookies(10, ".douyin.com")...)
	r := h.await(ch)
	require.NoError(h.t, r.err)
	require.NotNil(h.t, r.session)
	return r.session
}

func TestEngine_SingleFlight(t *testing.T) {
	h := newHarness(t, testConfig())

	const callers = 8
	results := make([]result, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := h.engine.Acquire(context.Background())
			results[i] = result{s, err}
		}()
	}

	h.waitLoads(1)
	h.settle(successTitle)
	h.store.set(makeCookies(12, ".douyin.com")...)
	wg.Wait()

	first := results[0].session
	require.NotNil(t, first)
	for i, r := range results {
		require.NoError(t, r.err, "caller %d", i)
		assert.Same(t, first, r.session, "caller %d got a different session", i)
	}
	assert.Equal(t, 1, h.surface.loadCount(), "navigations")
	assert.Equal(t, 1, h.surface.subscribeCount(), "load subscriptions")
	assert.Equal(t, 1, h.store.subscribeCount(), "cookie subscriptions")
	assert.Equal(t, 1, h.rec.count(EventStarted))
	assert.Equal(t, 1, h.rec.count(EventReady))
}

func TestEngine_IdempotentSession(t *testing.T) {
	h := newHarness(t, testConfig())
	s := h.resolve()

	for range 3 {
		got, err := h.engine.Acquire(context.Background())
		require.NoError(t, err)
		assert.Same(t, s, got)
	}

	assert.Equal(t, 1, h.surface.loadCount())
	assert.Equal(t, 1, h.store.subscribeCount())
	assert.False(t, h.engine.watcher.Started())
	assert.False(t, h.surface.watching())
	assert.Equal(t, StateResolved, h.engine.State())
	assert.Same(t, s, h.engine.Session())
	require.NotNil(t, h.engine.Client())
	assert.Same(t, s, h.engine.Client().Session())
}

func TestEngine_SessionHeaders(t *testing.T) {
	h := newHarness(t, testConfig())
	s := h.resolve()

	headers := s.Headers()
	assert.Equal(t, DefaultConfig().UserAgent, headers[HeaderUserAgent])
	assert.Equal(t, "https://live.douyin.com", headers[HeaderReferer])
	assert.Equal(t, "c0=v0;c1=v1;c2=v2;c3=v3;c4=v4;c5=v5;c6=v6;c7=v7;c8=v8;c9=v9;", headers[HeaderCookie])
	assert.Equal(t, headers[HeaderCookie], s.CookieHeader())
	assert.Len(t, s.Cookies(), 10)
	assert.False(t, s.CreatedAt().IsZero())

	headers[HeaderCookie] = "tampered"
	assert.NotEqual(t, "tampered", s.Headers()[HeaderCookie])
}

func TestEngine_ThresholdGate(t *testing.T) {
	h := newHarness(t, testConfig())
	ch := h.acquireAsync()

	h.waitLoads(1)
	h.settle(successTitle)
	h.waitState(StateAwaitingCookies)

	// nine qualifying cookies plus unrelated ones
	batch := append(makeCookies(9, ".douyin.com"), makeCookies(5, ".example.com")...)
	h.store.set(batch...)
	h.waitCookies(9)

	assert.Nil(t, h.engine.Session())
	assert.Equal(t, StateAwaitingCookies, h.engine.State())

	h.store.set(makeCookies(10, "live.douyin.com")...)
	r := h.await(ch)
	require.NoError(t, r.err)
	assert.Len(t, r.session.Cookies(), 10)

	// later changes never produce a second session
	h.store.set(makeCookies(20, ".douyin.com")...)
	assert.Equal(t, 1, h.rec.count(EventReady))
	assert.Same(t, r.session, h.engine.Session())
}

func TestEngine_ChallengeLoop(t *testing.T) {
	stale := makeCookies(3, ".douyin.com")
	h := newHarness(t, testConfig(), append(stale, Cookie{Name: "x", Value: "1", Domain: ".example.com"})...)
	ch := h.acquireAsync()

	h.waitLoads(1)
	assert.Equal(t, 3, h.store.deletedCount(), "stale cookies purged before navigating")

	h.settle("checking…")
	assert.Equal(t, 1, h.surface.loadCount())
	assert.Equal(t, StateNavigating, h.engine.State())

	// cookies set by the challenge page
	h.store.set(makeCookies(3, ".douyin.com")...)
	h.waitCookies(3)

	h.settle("验证…")
	h.waitLoads(2)
	assert.Equal(t, 6, h.store.deletedCount(), "challenge cookies purged before reload")
	assert.Equal(t, 1, h.rec.count(EventChallenge))
	assert.True(t, h.surface.watching())

	h.settle(successTitle + "…")
	h.waitState(StateAwaitingCookies)
	assert.False(t, h.surface.watching(), "navigation watch should stop on success")

	h.store.set(makeCookies(10, ".douyin.com")...)
	r := h.await(ch)
	require.NoError(t, r.err)

	assert.Equal(t, 2, h.surface.loadCount(), "exactly one reload")
	assert.Equal(t, 1, h.rec.count(EventChallenge))
	assert.Equal(t, 1, h.rec.count(EventReady))
}

func TestEngine_CookiesDuringChallengeDiscarded(t *testing.T) {
	h := newHarness(t, testConfig())
	ch := h.acquireAsync()

	h.waitLoads(1)
	h.settle("验证")
	h.waitLoads(2)

	// a full batch while the reload is still pending verification
	h.store.set(makeCookies(12, ".douyin.com")...)
	h.waitCookies(12)
	assert.Nil(t, h.engine.Session())
	assert.Equal(t, 0, h.rec.count(EventReady))

	// the snapshot taken on success picks the cookies up
	h.settle(successTitle)
	r := h.await(ch)
	require.NoError(t, r.err)
	assert.Len(t, r.session.Cookies(), 12)
}

func TestEngine_CookiesAfterSuccessAccepted(t *testing.T) {
	h := newHarness(t, testConfig())
	ch := h.acquireAsync()

	h.waitLoads(1)
	h.settle("验证")
	h.waitLoads(2)
	h.settle(successTitle)
	h.waitState(StateAwaitingCookies)
	h.waitCookies(0)

	h.store.set(makeCookies(11, ".douyin.com")...)
	r := h.await(ch)
	require.NoError(t, r.err)
	assert.Len(t, r.session.Cookies(), 11)
}

func TestEngine_ChallengeExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.MaxChallenges = 2
	h := newHarness(t, cfg)
	ch := h.acquireAsync()

	h.waitLoads(1)
	h.settle("验证")
	h.waitLoads(2)
	h.settle("验证")
	h.waitLoads(3)
	h.surface.settle("验证")

	r := h.await(ch)
	require.ErrorIs(t, r.err, live.ErrChallengeExhausted)
	assert.Nil(t, r.session)
	assert.Equal(t, 3, h.surface.loadCount())
	assert.Equal(t, StateIdle, h.engine.State())
	assert.False(t, h.engine.watcher.Started())
	assert.False(t, h.surface.watching())
	assert.Equal(t, 0, h.store.subscribed())

	ev, ok := h.rec.last(EventFailed)
	require.True(t, ok)
	assert.ErrorIs(t, ev.Err, live.ErrChallengeExhausted)
}

func TestEngine_LoadErrorThenRetry(t *testing.T) {
	h := newHarness(t, testConfig())
	h.surface.setLoadErr(errors.New("net::ERR_NAME_NOT_RESOLVED"))

	_, err := h.engine.Acquire(context.Background())
	require.ErrorIs(t, err, live.ErrTransport)
	assert.Contains(t, err.Error(), "ERR_NAME_NOT_RESOLVED")
	assert.Equal(t, StateIdle, h.engine.State())
	assert.False(t, h.engine.watcher.Started())

	h.surface.setLoadErr(nil)
	s := h.resolve()
	assert.NotNil(t, s)
	assert.Equal(t, 2, h.surface.loadCount())
	assert.Equal(t, 2, h.rec.count(EventStarted))
}

func TestEngine_AttemptTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.AttemptTimeout = 50 * time.Millisecond
	h := newHarness(t, cfg)

	_, err := h.engine.Acquire(context.Background())
	require.ErrorIs(t, err, live.ErrAcquireTimeout)
	assert.Equal(t, StateIdle, h.engine.State())
	assert.Equal(t, 0, h.store.subscribed())
}

func TestEngine_CallerCancelDoesNotCancelAttempt(t *testing.T) {
	h := newHarness(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := h.engine.Acquire(ctx)
		errc <- err
	}()
	h.waitLoads(1)
	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, StateNavigating, h.engine.State())

	// a new caller joins the same attempt
	ch := h.acquireAsync()
	h.settle(successTitle)
	h.store.set(makeCookies(10, ".douyin.com")...)
	r := h.await(ch)
	require.NoError(t, r.err)
	assert.Equal(t, 1, h.surface.loadCount())
	assert.Equal(t, 1, h.rec.count(EventStarted))
}

func TestEngine_ResetDuringAttempt(t *testing.T) {
	h := newHarness(t, testConfig())
	ch := h.acquireAsync()
	h.waitLoads(1)

	require.NoError(t, h.engine.Reset(context.Background()))
	r := h.await(ch)
	require.ErrorIs(t, r.err, live.ErrSessionReset)

	assert.False(t, h.engine.watcher.Started())
	assert.False(t, h.surface.watching())
	assert.Equal(t, 0, h.store.subscribed())
	assert.Nil(t, h.engine.Session())
	assert.Equal(t, StateIdle, h.engine.State())

	// a title from the abandoned load is ignored
	h.surface.settle(successTitle)
	assert.Equal(t, 0, h.rec.count(EventSettled))

	require.NoError(t, h.engine.Reset(context.Background()), "reset is idempotent")

	s := h.resolve()
	assert.NotNil(t, s)
	assert.Equal(t, 2, h.surface.loadCount())
	assert.Equal(t, 2, h.rec.count(EventStarted))
}

func TestEngine_ResetAfterSession(t *testing.T) {
	h := newHarness(t, testConfig())
	first := h.resolve()

	require.NoError(t, h.engine.Reset(context.Background()))
	assert.Nil(t, h.engine.Session())
	assert.Nil(t, h.engine.Client())
	assert.Equal(t, StateIdle, h.engine.State())

	second := h.resolve()
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, h.surface.loadCount())
	assert.Equal(t, 1, h.rec.count(EventReset))
	assert.Equal(t, 2, h.rec.count(EventReady))
}

func TestEngine_Close(t *testing.T) {
	h := newHarness(t, testConfig())
	require.NoError(t, h.engine.Close(context.Background()))
	require.NoError(t, h.engine.Close(context.Background()))

	_, err := h.engine.Acquire(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, h.surface.loadCount())
}

func TestEngine_Fetch(t *testing.T) {
	h := newHarness(t, testConfig())
	s := h.resolve()

	h.tr.body = "<html>room</html>"
	body, err := h.engine.Fetch(context.Background(), "https://live.douyin.com/123")
	require.NoError(t, err)
	assert.Equal(t, "<html>room</html>", body)
	assert.Equal(t, s.CookieHeader(), h.tr.headers[HeaderCookie])
	assert.Equal(t, "https://live.douyin.com", h.tr.headers[HeaderReferer])

	h.tr.body = ""
	_, err = h.engine.Fetch(context.Background(), "https://live.douyin.com/123")
	require.ErrorIs(t, err, live.ErrNotFound)

	h.tr.err = errors.New("connection refused")
	_, err = h.engine.Fetch(context.Background(), "https://live.douyin.com/123")
	require.ErrorIs(t, err, live.ErrTransport)
	assert.Contains(t, err.Error(), "connection refused")
}
