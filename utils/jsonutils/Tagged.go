// Package jsonutils implements JSON helpers shared by configuration
// types that are serialized along with the name of their concrete type
package jsonutils

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Tagged is the JSON layout of a type-tagged value:
//
//	{"Type": "Adam", "Config": {"StepSize": 0.001, ...}}
type Tagged struct {
	Type   string
	Config json.RawMessage
}

// UnmarshalTagged decodes a type-tagged value. The Type field selects
// the concrete type to decode Config into from types. The returned
// value is of the registered concrete (non-pointer) type.
func UnmarshalTagged(data []byte, types map[string]reflect.Type) (
	interface{}, string, error) {
	var tagged Tagged
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, "", fmt.Errorf("unmarshalTagged: %v", err)
	}

	ty, ok := types[tagged.Type]
	if !ok {
		return nil, "", fmt.Errorf("unmarshalTagged: unknown type %q",
			tagged.Type)
	}

	value := reflect.New(ty)
	if len(tagged.Config) > 0 && string(tagged.Config) != "null" {
		if err := json.Unmarshal(tagged.Config, value.Interface()); err != nil {
			return nil, "", fmt.Errorf("unmarshalTagged: %v: %v",
				tagged.Type, err)
		}
	}

	return value.Elem().Interface(), tagged.Type, nil
}

// MarshalTagged encodes config along with the name of its type
func MarshalTagged(typeName string, config interface{}) ([]byte, error) {
	raw, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshalTagged: %v", err)
	}
	return json.Marshal(Tagged{Type: typeName, Config: raw})
}
