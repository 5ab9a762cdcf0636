// Package fetch provides the artifact fetchers used by the resolver.
//
// HTTP downloads into a content-addressed cache directory through the
// resilient client, File serves local paths in place, and Mux routes an
// artifact to one of them by the scheme of its location.
//
//	mux := fetch.NewMux().
//		Handle("http", httpFetcher).
//		Handle("https", httpFetcher).
//		Handle("file", fetch.File{VerifyContent: true})
//
// Artifacts with a digest ("sha256:...") are verified after download; the
// digest covers the stored bytes, so for .gz and .zst locations the
// inflated file.
package fetch
