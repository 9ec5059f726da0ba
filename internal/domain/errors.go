package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions in the offlinesync domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("offlinesync: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("offlinesync: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("offlinesync: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("offlinesync: invalid configuration")

	// ErrNotOpen is returned when the durable store is used before Open or after Close.
	ErrNotOpen = errors.New("offlinesync: store not open")

	// ErrNotFound is returned when a record or queue item does not exist.
	ErrNotFound = errors.New("offlinesync: not found")

	// ErrNoCachedData is returned for an offline GET with nothing cached.
	ErrNoCachedData = errors.New("offlinesync: offline and no cached data available")

	// ErrOffline is returned for a mutation attempted offline without queueing.
	ErrOffline = errors.New("offlinesync: offline")
)

// StorageError reports a failure of the durable store itself. Quota
// exhaustion is never retryable and must be surfaced to the user.
type StorageError struct {
	Op    string
	Quota bool
	Err   error
}

func (e *StorageError) Error() string {
	if e.Quota {
		return fmt.Sprintf("offlinesync: storage quota exceeded during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("offlinesync: storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsQuotaExceeded reports whether err is a storage quota failure.
func IsQuotaExceeded(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Quota
}

// HTTPError is a completed HTTP exchange with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

// NetworkError is a failure to complete an HTTP exchange at all
// (DNS, connection refused, reset, timeout).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network: " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is a transport-level failure.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// StatusCode extracts the HTTP status from err, or 0 if err is not an HTTPError.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
