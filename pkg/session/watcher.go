package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmylchreest/livegate/internal/logger"
)

const snapshotTimeout = 10 * time.Second

// Watcher follows a CookieStore and publishes the cookies of one domain
// each time the store changes. Only the most recent unread batch is kept.
type Watcher struct {
	store  CookieStore
	domain string

	mu      sync.Mutex
	started bool
	gen     uint64
	cancel  func()
	batches chan []Cookie
}

// NewWatcher creates a watcher for cookies whose domain contains domain.
func NewWatcher(store CookieStore, domain string) *Watcher {
	return &Watcher{
		store:   store,
		domain:  domain,
		batches: make(chan []Cookie, 1),
	}
}

// Batches delivers qualifying cookie sets while started.
func (w *Watcher) Batches() <-chan []Cookie {
	return w.batches
}

// Start subscribes to store changes. Starting twice is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.gen++
	w.drain()
	w.cancel = w.store.OnChange(w.changed)
}

// Stop unsubscribes. Stopping when not started is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.started = false
	w.gen++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.drain()
}

// Started reports whether the watcher is subscribed.
func (w *Watcher) Started() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

// Snapshot returns the store's current cookies for the domain.
func (w *Watcher) Snapshot(ctx context.Context) ([]Cookie, error) {
	all, err := w.store.GetAllCookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	return FilterDomain(all, w.domain), nil
}

// Purge deletes every cookie of the domain from the store.
func (w *Watcher) Purge(ctx context.Context) error {
	cookies, err := w.Snapshot(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, c := range cookies {
		if err := w.store.DeleteCookie(ctx, c); err != nil {
			errs = append(errs, fmt.Errorf("delete cookie %s: %w", c.Name, err))
		}
	}
	logger.Debug("purged cookies", "domain", w.domain, "count", len(cookies), "errors", len(errs))
	return errors.Join(errs...)
}

func (w *Watcher) changed() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	gen := w.gen
	w.mu.Unlock()

	go w.publish(gen)
}

func (w *Watcher) publish(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	cookies, err := w.Snapshot(ctx)
	if err != nil {
		logger.Debug("cookie snapshot failed", "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started || gen != w.gen {
		return
	}
	w.drain()
	w.batches <- cookies
}

// drain empties the batch buffer. Callers hold w.mu.
func (w *Watcher) drain() {
	select {
	case <-w.batches:
	default:
	}
}
