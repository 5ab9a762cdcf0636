// Package app assembles a launch from a descriptor file.
//
// Open loads the descriptor and its extensions, detects the platform,
// builds the bundle set and code index, and starts a coordinator with the
// configured fetchers. Eager bundles begin downloading immediately.
//
// Example Usage:
//
//	l, err := app.Open(ctx, "app.yaml", app.Options{})
//	if l == nil {
//		log.Fatal(err)
//	}
//	defer l.Close(ctx)
//	locs, err := l.Coordinator().ResolveAndFetch(ctx, "com.acme.reports.Report")
package app
