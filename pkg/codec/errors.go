package codec

import "errors"

var (
	// ErrUnknownCodec indicates the requested codec name is not registered.
	ErrUnknownCodec = errors.New("codec: unknown codec")

	// ErrSerialization indicates a value could not be encoded or decoded.
	ErrSerialization = errors.New("codec: serialization failed")
)
