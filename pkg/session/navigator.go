package session

import (
	"context"
	"sync"
	"time"

	"github.com/jmylchreest/livegate/internal/logger"
)

const (
	titleScript  = "document.title"
	titleTimeout = 10 * time.Second
)

// Navigator drives a Surface and reports the document title once per
// completed load. A new Navigate supersedes a pending one, and a later
// settle supersedes an earlier one whose title has not been read yet.
type Navigator struct {
	surface Surface

	mu     sync.Mutex
	ctx    context.Context
	gen    uint64 // bumped by Navigate and Stop
	seq    uint64 // bumped by each settle
	active bool
	cancel func()
	titles chan string
}

// NewNavigator creates a navigator over surface.
func NewNavigator(surface Surface) *Navigator {
	return &Navigator{
		surface: surface,
		ctx:     context.Background(),
		titles:  make(chan string, 1),
	}
}

// Titles delivers one title per settled load while watching.
func (n *Navigator) Titles() <-chan string {
	return n.titles
}

// Watch subscribes to load completion. Calling it twice is a no-op.
func (n *Navigator) Watch() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		return
	}
	n.cancel = n.surface.OnLoadSettled(n.onSettled)
}

// Unwatch drops the load subscription. Calling it when not watching is a no-op.
func (n *Navigator) Unwatch() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel == nil {
		return
	}
	n.cancel()
	n.cancel = nil
}

// Watching reports whether a load subscription is active.
func (n *Navigator) Watching() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cancel != nil
}

// Navigate loads url. ctx also bounds the title read that follows.
func (n *Navigator) Navigate(ctx context.Context, url string) error {
	n.mu.Lock()
	if err := ctx.Err(); err != nil {
		n.mu.Unlock()
		return err
	}
	n.gen++
	n.active = true
	n.ctx = ctx
	n.drain()
	n.mu.Unlock()

	logger.Debug("navigating", "url", url)
	if err := n.surface.Load(ctx, url); err != nil {
		n.mu.Lock()
		n.active = false
		n.mu.Unlock()
		return err
	}
	return nil
}

// Stop cancels any pending navigation and discards unread titles.
func (n *Navigator) Stop(ctx context.Context) error {
	n.mu.Lock()
	n.gen++
	n.active = false
	n.drain()
	n.mu.Unlock()
	return n.surface.StopLoading(ctx)
}

func (n *Navigator) onSettled() {
	n.mu.Lock()
	if !n.active || n.cancel == nil {
		n.mu.Unlock()
		return
	}
	n.seq++
	gen, seq, ctx := n.gen, n.seq, n.ctx
	n.mu.Unlock()

	go n.readTitle(ctx, gen, seq)
}

func (n *Navigator) readTitle(ctx context.Context, gen, seq uint64) {
	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	title, err := n.surface.EvaluateScript(ctx, titleScript)
	if err != nil {
		logger.Debug("title read failed", "error", err)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if gen != n.gen || seq != n.seq || !n.active || n.cancel == nil {
		return
	}
	n.drain()
	n.titles <- title
}

// drain empties the title buffer. Callers hold n.mu.
func (n *Navigator) drain() {
	select {
	case <-n.titles:
	default:
	}
}
