// Package main is the entry point for the partloader command.
//
// Usage:
//
//	# Download eager bundles and show their state
//	./partloader preload app.yaml
//
//	# Resolve code units, downloading lazy bundles on demand
//	./partloader resolve app.yaml com.acme.reports.Report
//
//	# Serve /bundles, /resolve and /metrics (development logs)
//	./partloader serve app.yaml --dev --addr :8090
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown of serve
package main
