// Package resolver turns code-unit requests into fetched bundles.
//
// A Coordinator owns one download record per bundle and guarantees that a
// bundle's artifacts are fetched at most once per attempt, no matter how
// many goroutines ask for it. Callers that find a bundle in flight wait on
// that attempt instead of starting another.
//
// Record states:
//   - NotStarted: never referenced
//   - InFlight: an attempt is running; new callers join it
//   - Done: terminal, locations are cached
//   - Failed: the next request retries, unless the failure is fatal
//
// Fetches run detached from the requesting context and are bounded by the
// fetch timeout, so a caller that gives up waiting never fails the fetch
// for the others.
//
// Example Usage:
//
//	c, err := resolver.New(ctx, set, nil, fetcher, resolver.WithLogger(logger))
//	if err != nil {
//		logger.Warn("Eager bundles failed", zap.Error(err))
//	}
//	paths, err := c.ResolveAndFetch(ctx, "com.acme.ui.Widget")
//	if errors.Is(err, resolver.ErrNotFound) {
//		// load from the default code source
//	}
package resolver
