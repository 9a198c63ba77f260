// Package metrics exposes session acquisition and room lookup metrics in
// Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmylchreest/livegate/pkg/live"
	"github.com/jmylchreest/livegate/pkg/session"
)

const namespace = "livegate"

// Observer records acquisition events. It implements session.Observer.
type Observer struct {
	reg *prometheus.Registry

	events        *prometheus.CounterVec
	failures      *prometheus.CounterVec
	acquisition   prometheus.Histogram
	sessionActive prometheus.Gauge
	state         *prometheus.GaugeVec

	lookups        *prometheus.CounterVec
	lookupDuration prometheus.Histogram
}

// New creates an Observer backed by its own registry, so several observers
// can coexist in one process.
func New() *Observer {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	o := &Observer{
		reg: reg,
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Acquisition events by kind.",
		}, []string{"kind"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "failures_total",
			Help:      "Failed acquisition attempts by reason.",
		}, []string{"reason"}),
		acquisition: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "acquisition_seconds",
			Help:      "Time from attempt start to a ready session.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90, 120},
		}),
		sessionActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "1 while a ready session is held.",
		}),
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "Current acquisition state, 1 for the active state.",
		}, []string{"state"}),
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "room",
			Name:      "lookups_total",
			Help:      "Room info lookups by result.",
		}, []string{"result"}),
		lookupDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "room",
			Name:      "lookup_seconds",
			Help:      "Room info lookup latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	o.setState(session.StateIdle)
	return o
}

// OnEvent implements session.Observer.
func (o *Observer) OnEvent(_ context.Context, ev session.Event) {
	o.events.WithLabelValues(string(ev.Kind)).Inc()
	o.setState(ev.State)

	switch ev.Kind {
	case session.EventReady:
		o.acquisition.Observe(ev.Elapsed.Seconds())
		o.sessionActive.Set(1)
	case session.EventFailed:
		o.failures.WithLabelValues(Reason(ev.Err)).Inc()
		o.sessionActive.Set(0)
	case session.EventReset:
		o.sessionActive.Set(0)
	}
}

// ObserveLookup records one room lookup.
func (o *Observer) ObserveLookup(err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = Reason(err)
	}
	o.lookups.WithLabelValues(result).Inc()
	o.lookupDuration.Observe(d.Seconds())
}

// Registry returns the registry the metrics are registered with.
func (o *Observer) Registry() *prometheus.Registry {
	return o.reg
}

// Handler serves the metrics in the Prometheus exposition format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.reg, promhttp.HandlerOpts{})
}

func (o *Observer) setState(current session.State) {
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		o.state.WithLabelValues(s.String()).Set(v)
	}
}

var states = []session.State{
	session.StateIdle,
	session.StateNavigating,
	session.StateChallengeRetry,
	session.StateAwaitingCookies,
	session.StateResolved,
	session.StateFailed,
}

// Reason maps an error onto a short, bounded label value.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, live.ErrAcquireTimeout):
		return "timeout"
	case errors.Is(err, live.ErrChallengeExhausted):
		return "challenge_exhausted"
	case errors.Is(err, live.ErrSessionReset):
		return "reset"
	case errors.Is(err, live.ErrInvalidRef):
		return "invalid_ref"
	case errors.Is(err, live.ErrNotFound):
		return "not_found"
	case errors.Is(err, live.ErrParse):
		return "parse"
	case errors.Is(err, live.ErrMapping):
		return "mapping"
	case errors.Is(err, live.ErrTransport):
		return "transport"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
