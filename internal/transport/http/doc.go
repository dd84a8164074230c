// Package http exposes the population analysis engine over a small JSON API:
// POST /api/analyze runs a full population analysis over uploaded subject
// data, GET /api/health reports liveness, and GET /metrics serves Prometheus
// instrumentation.
package http
