package pool

import "errors"

var (
	// ErrPoolExhausted is returned by Borrow when the backend is at
	// max_connections and nothing is available. Recoverable: callers back
	// off and retry, or skip the cycle.
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrNotConfigured is returned when a backend has no pool configuration
	// or no registered factory. Fatal to that backend.
	ErrNotConfigured = errors.New("no pool configuration for backend")
)
