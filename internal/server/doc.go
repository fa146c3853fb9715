// Package server hosts the HTTP surfaces of the service: the JSON API
// server, the Google account connect flow, health endpoints for
// Kubernetes probes, and the Prometheus metrics server on its own
// port. It also owns the ServerContext, which caches per-account
// Google clients and carries the shutdown flag.
package server
