// Package health serves the standard gRPC health checking protocol for the
// relay. The status follows the poll loop: SERVING after a clean cycle,
// NOT_SERVING after a failed one.
package health
