package resolver

import (
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultFetchTimeout bounds one bundle attempt
	DefaultFetchTimeout = 5 * time.Minute
	// DefaultConcurrency is the number of artifacts of one bundle fetched at once
	DefaultConcurrency = 4
)

// Metrics receives coordinator events. Outcomes and kinds are plain
// strings so that implementations need not import this package.
type Metrics interface {
	ObserveFetch(kind string, err error, elapsed time.Duration)
	ObserveResolution(outcome string)
	ObserveSharedWait()
}

// Resolution outcomes reported to Metrics
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

type noopMetrics struct{}

func (noopMetrics) ObserveFetch(string, error, time.Duration) {}
func (noopMetrics) ObserveResolution(string)                  {}
func (noopMetrics) ObserveSharedWait()                        {}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTrust sets the trust context consulted when activating native libraries
func WithTrust(t TrustContext) Option {
	return func(c *Coordinator) { c.trust = t }
}

// WithFetchTimeout bounds each bundle attempt. Zero or less disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// WithConcurrency limits concurrent artifact fetches per bundle
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}
