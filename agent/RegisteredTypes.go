package agent

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/samuelfneumann/qnet/utils/jsonutils"
)

// Type represents a specific type of an agent Config.
// Config's with this type can create Agents of the corresponding type.
type Type string

const (
	EGreedyDeepQMLP      Type = "EGreedyDeepQ-MLP"
	EGreedyDRQNRecurrent Type = "EGreedyDRQN-Recurrent"
)

// Registered types with the package. Once a Type has been registered
// with this map, a TypedConfigList with that type can be deserialized.
//
// No Type's are registered with this package upon initialization.
// Each agent package registers its own Type to avoid circular imports.
var registeredTypes = make(map[string]reflect.Type)

// Register registers an agent's Type with a concrete ConfigList type
// so that upon deserialization of a TypedConfigList, ConfigLists of
// type agentType are deserialized into the concrete type of configs.
func Register(agentType Type, configs ConfigList) {
	registeredTypes[string(agentType)] = reflect.TypeOf(configs)
}

// TypedConfigList implements functionality for typing a ConfigList.
// In this way, a ConfigList can explicitly have its type stored so
// that when deserializing the ConfigList, we can deserialize it into
// its concrete type without knowing beforehand or declaring beforehand
// a variable of its concrete type.
type TypedConfigList struct {
	Type
	ConfigList
}

// NewTypedConfigList types the argument ConfigList and returns it
// as a TypedConfigList which explicitly holds its Type.
func NewTypedConfigList(c ConfigList) TypedConfigList {
	return TypedConfigList{Type: c.Type(), ConfigList: c}
}

// MarshalJSON implements the json.Marshaler interface
func (t TypedConfigList) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       Type
		ConfigList ConfigList
	}{t.Type, t.ConfigList})
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (t *TypedConfigList) UnmarshalJSON(data []byte) error {
	var tagged struct {
		Type       string
		ConfigList json.RawMessage
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}

	rewrapped, err := json.Marshal(jsonutils.Tagged{
		Type:   tagged.Type,
		Config: tagged.ConfigList,
	})
	if err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}

	value, typeName, err := jsonutils.UnmarshalTagged(rewrapped,
		registeredTypes)
	if err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}

	t.Type = Type(typeName)
	t.ConfigList = value.(ConfigList)
	return nil
}

// At returns the Config at index i in the TypedConfigList
func (t TypedConfigList) At(i int) Config {
	return ConfigAt(i, t.ConfigList)
}
