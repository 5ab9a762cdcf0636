// Package server is the launcher's optional status endpoint.
//
// Routes:
//   - GET  /healthz
//   - GET  /bundles                 every bundle with its download state
//   - POST /bundles/:name/download  fetch a bundle of the main descriptor
//   - GET  /resolve/:unit           resolve and fetch a code unit
//   - GET  /metrics                 Prometheus exposition
package server
