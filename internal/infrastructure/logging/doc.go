// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components receive a named *zap.Logger from Component; a launcher run
// tags its logger with WithLaunch so that all entries of one run share a
// launch field.
//
// Example Usage:
//
//	logger := logging.NewDefault().WithLaunch(id.NewLaunchID())
//	logger.Info("Preloading", zap.String("descriptor", path))
//	coordLog := logger.Component("resolver")
package logging
