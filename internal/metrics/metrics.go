// Package metrics keeps process counters and timers in expvar maps so they
// are served by the /debug/vars endpoint.
package metrics

import (
	"expvar"
	"time"
)

// Registry implements ports.Metrics on top of expvar.
type Registry struct {
	counters *expvar.Map
	timers   *expvar.Map
}

// NewRegistry returns an unpublished registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: new(expvar.Map).Init(),
		timers:   new(expvar.Map).Init(),
	}
}

// IncCounter adds one to the named counter, creating it on first use.
func (r *Registry) IncCounter(name string) {
	r.counters.Add(name, 1)
}

// ObserveDuration records one timing sample as a count and a running sum.
func (r *Registry) ObserveDuration(name string, d time.Duration) {
	r.timers.Add(name+"_count", 1)
	r.timers.AddFloat(name+"_seconds_sum", d.Seconds())
}

// Counter returns the current value of a counter, or 0 if it was never incremented.
func (r *Registry) Counter(name string) int64 {
	v, ok := r.counters.Get(name).(*expvar.Int)
	if !ok {
		return 0
	}
	return v.Value()
}

// TimerCount returns how many samples were observed for the named timer.
func (r *Registry) TimerCount(name string) int64 {
	v, ok := r.timers.Get(name + "_count").(*expvar.Int)
	if !ok {
		return 0
	}
	return v.Value()
}

// Publish exposes the registry under prefix_counters and prefix_timers.
// expvar panics on duplicate names, so call it once per process.
func (r *Registry) Publish(prefix string) {
	expvar.Publish(prefix+"_counters", r.counters)
	expvar.Publish(prefix+"_timers", r.timers)
}

type discard struct{}

func (discard) IncCounter(string)                     {}
func (discard) ObserveDuration(string, time.Duration) {}

// Discard drops every sample.
var Discard discard
