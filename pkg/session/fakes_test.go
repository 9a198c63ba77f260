package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jmylchreest/livegate/pkg/transport"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ReloadInterval = 0
	cfg.AttemptTimeout = 5 * time.Second
	return cfg
}

// fakeSurface records calls and lets tests fire load completions.
type fakeSurface struct {
	mu         sync.Mutex
	title      string
	loads      []string
	stops      int
	evals      int
	subscribes int
	handlers   map[int]func()
	nextID     int
	loadErr    error
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{handlers: make(map[int]func())}
}

func (f *fakeSurface) Load(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, url)
	return f.loadErr
}

func (f *fakeSurface) StopLoading(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeSurface) OnLoadSettled(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.subscribes++
	f.handlers[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}
}

func (f *fakeSurface) EvaluateScript(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	return f.title, nil
}

// settle sets the document title and fires every load handler.
func (f *fakeSurface) settle(title string) {
	f.mu.Lock()
	f.title = title
	handlers := make([]func(), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}

func (f *fakeSurface) setLoadErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadErr = err
}

func (f *fakeSurface) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loads)
}

func (f *fakeSurface) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes
}

func (f *fakeSurface) watching() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers) > 0
}

func (f *fakeSurface) evalCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evals
}

// fakeStore is an in-memory cookie store.
type fakeStore struct {
	mu         sync.Mutex
	cookies    []Cookie
	deleted    int
	subscribes int
	handlers   map[int]func()
	nextID     int
	getErr     error
}

func newFakeStore(cookies ...Cookie) *fakeStore {
	return &fakeStore{cookies: cookies, handlers: make(map[int]func())}
}

func (f *fakeStore) GetAllCookies(context.Context) ([]Cookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return slices.Clone(f.cookies), nil
}

func (f *fakeStore) DeleteCookie(_ context.Context, c Cookie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookies = slices.DeleteFunc(f.cookies, c.Same)
	f.deleted++
	return nil
}

func (f *fakeStore) OnChange(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.subscribes++
	f.handlers[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}
}

// set replaces the store contents and notifies subscribers.
func (f *fakeStore) set(cookies ...Cookie) {
	f.mu.Lock()
	f.cookies = slices.Clone(cookies)
	handlers := make([]func(), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}

func (f *fakeStore) deletedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleted
}

func (f *fakeStore) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes
}

func (f *fakeStore) subscribed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func makeCookies(n int, domain string) []Cookie {
	out := make([]Cookie, n)
	for i := range out {
		out[i] = Cookie{Name: fmt.Sprintf("c%d", i), Value: fmt.Sprintf("v%d", i), Domain: domain, Path: "/"}
	}
	return out
}

// fakeTransport returns a canned response and records request headers.
type fakeTransport struct {
	mu      sync.Mutex
	body    string
	err     error
	headers map[string]string
	urls    []string
}

func (f *fakeTransport) Get(_ context.Context, url string, headers map[string]string) (transport.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	f.headers = headers
	if f.err != nil {
		return transport.Response{}, f.err
	}
	return transport.Response{StatusCode: 200, Body: []byte(f.body)}, nil
}

// recorder collects observer events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) last(kind EventKind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return Event{}, false
}
