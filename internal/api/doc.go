// Package api hosts the HTTP server, middleware, and REST handlers of the
// connector. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/connector/cortex/status and /health for the composite signals.
//   - /api/connector/cortex/job/... and /analyzer/... for routed operations.
package api
