// Package api hosts the read-only HTTP server over the metadata snapshot.
// Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/profiles?team=&limit=&offset= lists records by name.
//   - GET /v1/profiles/{name} returns one record.
//   - GET /v1/profiles/{name}/pdf streams the rendered document.
package api
