package session

import "errors"

var (
	// ErrEmptyUserID indicates Login was called without a user id.
	ErrEmptyUserID = errors.New("session: user id is empty")

	// ErrInvalidConfig indicates the filter configuration failed validation.
	ErrInvalidConfig = errors.New("session: invalid configuration")

	// ErrReservedSeparator indicates a key component contains the reserved
	// '$' separator.
	ErrReservedSeparator = errors.New("session: key component contains reserved separator")

	// ErrEmptyKeyComponent indicates a key component is empty.
	ErrEmptyKeyComponent = errors.New("session: key component is empty")
)
