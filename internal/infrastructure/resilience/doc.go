/*
Package resilience provides circuit breaker implementation for graceful degradation.

# Overview

Artifact hosts get one breaker each through Set. A host that keeps failing
is skipped for Timeout instead of being hammered by every bundle retry.

# Features

- Three-state circuit breaker (Closed, Open, Half-Open)
- Configurable failure thresholds, timeouts and error classification
- Caller cancellation is never counted as a failure
- Injectable clock
- State change callbacks

# Usage

	breakers := resilience.NewSet(resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	err := breakers.Execute(ctx, req.URL.Host, func(ctx context.Context) error {
		return download(ctx, req)
	})

# States

- Closed: Normal operation, requests pass through
- Open: Service unavailable, requests fail immediately
- Half-Open: Testing if service recovered, limited requests allowed

# Pattern

The circuit breaker transitions between states based on success/failure rates:

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
