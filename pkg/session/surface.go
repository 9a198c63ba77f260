package session

import "context"

// Surface is a rendering surface that can load pages and evaluate scripts
// against the loaded document. pkg/browser provides a headless Chrome one.
type Surface interface {
	// Load starts navigating to url. It returns once the navigation is
	// committed; completion is reported through OnLoadSettled.
	Load(ctx context.Context, url string) error

	// StopLoading cancels any pending navigation.
	StopLoading(ctx context.Context) error

	// OnLoadSettled registers fn to be called each time a load fully
	// completes. fn must not block. The returned func unregisters it.
	OnLoadSettled(fn func()) (cancel func())

	// EvaluateScript evaluates js in the current document and returns the
	// result as a string.
	EvaluateScript(ctx context.Context, js string) (string, error)
}

// CookieStore is the cookie jar behind a Surface.
type CookieStore interface {
	GetAllCookies(ctx context.Context) ([]Cookie, error)
	DeleteCookie(ctx context.Context, c Cookie) error

	// OnChange registers fn to be called when cookies may have changed.
	// fn must not block. The returned func unregisters it.
	OnChange(fn func()) (cancel func())
}
