package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/livegate/internal/logger"
	"github.com/jmylchreest/livegate/pkg/live"
	"github.com/jmylchreest/livegate/pkg/session"
)

// ErrClosed is returned by operations on a closed Browser.
var ErrClosed = errors.New("browser: closed")

// Browser is one headless Chrome tab. It implements session.Surface and
// session.CookieStore.
type Browser struct {
	config Config

	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc

	settled listeners
	changed listeners

	closeOnce sync.Once
	done      chan struct{}
}

var (
	_ session.Surface     = (*Browser)(nil)
	_ session.CookieStore = (*Browser)(nil)
)

// New launches Chrome and opens a tab with page and network events enabled.
func New(ctx context.Context, cfg Config) (*Browser, error) {
	def := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.StartTimeout == 0 {
		cfg.StartTimeout = def.StartTimeout
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	b := &Browser{
		config:      cfg,
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		done:        make(chan struct{}),
	}
	chromedp.ListenTarget(tabCtx, b.dispatch)

	// The first Run allocates the browser and ties it to the context it is
	// given, so it runs on tabCtx itself and launch limits cancel the tab.
	timer := time.AfterFunc(cfg.StartTimeout, cancelTab)
	stop := context.AfterFunc(ctx, cancelTab)
	err := chromedp.Run(tabCtx)
	timer.Stop()
	stop()
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	actions := []chromedp.Action{page.Enable(), network.Enable()}
	if cfg.Stealth {
		actions = append(actions, injectStealthScript())
	}
	startCtx, cancel := context.WithTimeout(ctx, cfg.StartTimeout)
	defer cancel()
	if err := b.run(startCtx, actions...); err != nil {
		b.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	if cfg.CookiePoll > 0 {
		go b.poll(cfg.CookiePoll)
	}

	logger.Debug("browser started",
		"headless", cfg.Headless,
		"stealth", cfg.Stealth,
		"cookie_poll", cfg.CookiePoll)
	return b, nil
}

// Close shuts the tab and the browser process down.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		b.cancelTab()
		b.cancelAlloc()
	})
	return nil
}

// Load navigates the tab to url. Navigation errors reported by Chrome,
// such as DNS failures, are transport errors.
func (b *Browser) Load(ctx context.Context, url string) error {
	return b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errText, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return fmt.Errorf("%w: navigate %s: %s", live.ErrTransport, url, errText)
		}
		return nil
	}))
}

// StopLoading stops any pending navigation.
func (b *Browser) StopLoading(ctx context.Context) error {
	return b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.StopLoading().Do(ctx)
	}))
}

// OnLoadSettled calls fn whenever the main frame fires its load event.
func (b *Browser) OnLoadSettled(fn func()) func() {
	return b.settled.add(fn)
}

// EvaluateScript evaluates js and returns strings as-is and other values
// formatted with fmt.
func (b *Browser) EvaluateScript(ctx context.Context, js string) (string, error) {
	var res any
	if err := b.run(ctx, chromedp.Evaluate(js, &res)); err != nil {
		return "", err
	}
	return resultString(res), nil
}

// GetAllCookies returns every cookie in the browser.
func (b *Browser) GetAllCookies(ctx context.Context) ([]session.Cookie, error) {
	var cookies []*network.Cookie
	err := b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	out := make([]session.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, toCookie(c))
	}
	return out, nil
}

// DeleteCookie removes c from the browser.
func (b *Browser) DeleteCookie(ctx context.Context, c session.Cookie) error {
	return b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		p := network.DeleteCookies(c.Name).WithDomain(c.Domain)
		if c.Path != "" {
			p = p.WithPath(c.Path)
		}
		return p.Do(ctx)
	}))
}

// OnChange calls fn when cookies may have changed: on Set-Cookie response
// headers, on page load and on each poll tick.
func (b *Browser) OnChange(fn func()) func() {
	return b.changed.add(fn)
}

// dispatch runs on chromedp's event goroutine and must not block.
func (b *Browser) dispatch(ev any) {
	switch ev := ev.(type) {
	case *page.EventLoadEventFired:
		b.settled.fire()
		b.changed.fire()
	case *network.EventResponseReceivedExtraInfo:
		if hasSetCookie(ev.Headers) {
			b.changed.fire()
		}
	}
}

func (b *Browser) poll(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.changed.fire()
		}
	}
}

// run executes actions on the tab, bounded by both ctx and the tab's life.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}

	runCtx, cancel := context.WithCancel(b.tabCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func toCookie(c *network.Cookie) session.Cookie {
	out := session.Cookie{
		Name:   c.Name,
		Value:  c.Value,
		Domain: c.Domain,
		Path:   c.Path,
	}
	if !c.Session && c.Expires > 0 {
		sec := int64(c.Expires)
		nsec := int64((c.Expires - float64(sec)) * 1e9)
		out.Expires = time.Unix(sec, nsec).UTC()
	}
	return out
}

func hasSetCookie(h network.Headers) bool {
	for k := range h {
		if strings.EqualFold(k, "set-cookie") {
			return true
		}
	}
	return false
}

func resultString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// listeners is a set of callbacks registered through an On* method.
type listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]func()
}

func (l *listeners) add(fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func())
	}
	id := l.next
	l.next++
	l.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.fns, id)
		})
	}
}

func (l *listeners) fire() {
	l.mu.Lock()
	fns := make([]func(), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (l *listeners) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}
