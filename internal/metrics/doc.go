// Package metrics exposes the relay's Prometheus collectors and the HTTP
// endpoint that serves them.
package metrics
