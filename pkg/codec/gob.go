package codec

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"reflect"
)

// Gob encodes values with encoding/gob. Unlike JSON it preserves Go types
// across a round trip, but every concrete type stored through it must be
// registered with RegisterGobType in each process that reads or writes it.
type Gob struct{}

// gobEnvelope carries the value as an interface so the dynamic type travels
// on the wire and decoding into an any destination works.
type gobEnvelope struct {
	V any
}

func (Gob) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gobEnvelope{V: v}); err != nil {
		return nil, errors.Join(ErrSerialization, err)
	}
	return buf.Bytes(), nil
}

func (Gob) Unmarshal(data []byte, dest any) error {
	var env gobEnvelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return errors.Join(ErrSerialization, err)
	}

	if d, ok := dest.(*any); ok {
		*d = env.V
		return nil
	}

	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.Join(ErrSerialization, errors.New("destination must be a non-nil pointer"))
	}
	val := reflect.ValueOf(env.V)
	if !val.IsValid() || !val.Type().AssignableTo(rv.Elem().Type()) {
		return errors.Join(ErrSerialization,
			fmt.Errorf("cannot assign %T to %s", env.V, rv.Elem().Type()))
	}
	rv.Elem().Set(val)
	return nil
}

// RegisterGobType registers a concrete attribute value type with the gob
// runtime. Call it at init time for every type stored via the "gob" codec.
func RegisterGobType(v any) {
	gob.Register(v)
}
