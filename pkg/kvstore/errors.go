package kvstore

import "errors"

var (
	// ErrNotFound indicates the key holds no live value (missing or expired).
	ErrNotFound = errors.New("kvstore: key not found")

	// ErrUnavailable indicates the backend could not be reached or timed out.
	ErrUnavailable = errors.New("kvstore: backend unavailable")

	// ErrFailedToParseConnString indicates a malformed connection URL.
	ErrFailedToParseConnString = errors.New("kvstore: failed to parse connection string")

	// ErrNotReady indicates the backend did not become ready within the
	// configured connect timeout.
	ErrNotReady = errors.New("kvstore: backend did not become ready in time")
)
