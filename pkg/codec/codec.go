package codec

import (
	"fmt"
	"sync"
)

// Codec is an opaque value <-> byte-string mapping used to persist session
// attribute and metadata records.
type Codec interface {
	// Marshal encodes a value into a byte string.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes a byte string into the provided destination,
	// which must be a non-nil pointer.
	Unmarshal(data []byte, dest any) error
}

// DefaultName is the codec used when configuration does not name one.
const DefaultName = "json"

var registry = struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}{
	codecs: map[string]Codec{
		"json": JSON{},
		"gob":  Gob{},
	},
}

// Register makes a codec resolvable by name. Registering an empty name or a
// nil codec is a programming error and panics; overwriting an existing name
// is allowed so applications can replace the built-ins.
func Register(name string, c Codec) {
	if name == "" || c == nil {
		panic("codec: Register requires a name and a non-nil codec")
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.codecs[name] = c
}

// Resolve returns the codec registered under name.
func Resolve(name string) (Codec, error) {
	if name == "" {
		name = DefaultName
	}
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	c, ok := registry.codecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	return c, nil
}
