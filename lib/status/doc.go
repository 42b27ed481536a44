// Package status defines the closed set of error kinds used across the
// session engine. Every public operation returns a plain error value that
// wraps one of the package's sentinels, so callers can branch on the kind
// of failure (connection, unsupported, not found, programming, transport)
// with errors.Is while still seeing a human-readable message.
package status
