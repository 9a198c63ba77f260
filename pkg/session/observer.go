package session

import (
	"context"
	"time"
)

// Observer receives acquisition events for observability.
// Implement this interface to feed metrics, tracing or a UI.
//
// Events are delivered synchronously from the attempt goroutine, so
// implementations should return quickly.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// EventKind identifies an acquisition event.
type EventKind string

const (
	EventStarted   EventKind = "started"   // attempt created
	EventSettled   EventKind = "settled"   // a load completed, Title set
	EventChallenge EventKind = "challenge" // challenge page seen, reloading
	EventCookies   EventKind = "cookies"   // cookie batch seen, Cookies set
	EventReady     EventKind = "ready"     // session built
	EventFailed    EventKind = "failed"    // attempt failed, Err set
	EventReset     EventKind = "reset"     // engine torn down
)

// Event describes one step of an acquisition attempt.
type Event struct {
	Kind    EventKind
	Attempt string // attempt ID, empty for resets with no attempt
	State   State

	Title   string
	Cookies int
	Err     error

	// Elapsed is the time since the attempt started.
	Elapsed time.Duration
	At      time.Time
}

// ObserverFunc is a convenience type for using a function as an Observer.
type ObserverFunc func(ctx context.Context, event Event)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(ctx context.Context, event Event) {
	f(ctx, event)
}

// MultiObserver dispatches every event to several observers.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver creates an observer that dispatches to observers.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	return &MultiObserver{observers: observers}
}

// OnEvent dispatches the event to all registered observers.
func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}

// Add adds an observer. It is not safe to call concurrently with OnEvent.
func (m *MultiObserver) Add(obs Observer) {
	m.observers = append(m.observers, obs)
}

type nopObserver struct{}

func (nopObserver) OnEvent(context.Context, Event) {}
