/*
Package monitoring provides Prometheus metrics for the launcher.

# Overview

Metrics live on the registry passed to NewMetrics, or on a fresh one, and
never on the global default registerer.

# Features

- Artifact fetches by kind and outcome, with a duration histogram
- Resolution outcomes (hit, miss, error)
- Requests that joined an in-flight bundle fetch
- Live bundles per download state, read at scrape time
- Status server request metrics through a Gin middleware

# Usage

	metrics := monitoring.NewMetrics(nil)
	coord, err := resolver.New(ctx, set, nil, fetcher, resolver.WithMetrics(metrics))
	_ = metrics.TrackBundles(coord.StateCounts)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
*/
package monitoring
