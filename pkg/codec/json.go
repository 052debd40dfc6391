package codec

import (
	"encoding/json"
	"errors"
)

// JSON encodes values with encoding/json. Round-tripped values follow the
// usual JSON type mapping: numbers come back as float64, objects as
// map[string]any.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrSerialization, err)
	}
	return data, nil
}

func (JSON) Unmarshal(data []byte, dest any) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Join(ErrSerialization, err)
	}
	return nil
}
