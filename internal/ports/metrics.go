package ports

import "time"

// Metrics records named counters and timers.
type Metrics interface {
	IncCounter(name string)
	ObserveDuration(name string, d time.Duration)
}
