package agent

import (
	"fmt"
	"reflect"

	env "github.com/samuelfneumann/qnet/environment"
	"github.com/samuelfneumann/qnet/utils/intutils"
	"github.com/samuelfneumann/qnet/utils/logger"
)

// Config represents a configuration for creating an agent
type Config interface {
	// CreateAgent creates the agent that the config describes
	CreateAgent(e env.Environment, seed uint64, log logger.Logger) (Agent,
		error)

	// ValidAgent returns whether the argument agent is valid for the
	// Config
	ValidAgent(Agent) bool

	// Validate returns an error describing whether or not the
	// configuration is valid or not.
	Validate() error

	Type() Type
}

// ConfigList is a list of Configs stored as one slice of values per
// Config field. The list holds every combination of its field values,
// so that it describes a hyperparameter sweep.
//
// Each field of a ConfigList must be an exported slice whose elements
// have the type of the field of the same name in the Config returned
// by the Config method.
type ConfigList interface {
	// Type returns the type of Config stored in the list
	Type() Type

	// Config returns an empty Config of the type stored in the list
	Config() Config

	// Len returns the number of Configs in the list
	Len() int
}

// ListLen returns the number of Configs described by a ConfigList,
// the product of the lengths of its fields
func ListLen(list ConfigList) int {
	value := reflect.ValueOf(list)
	if value.NumField() == 0 {
		return 0
	}

	lens := make([]int, value.NumField())
	for i := range lens {
		lens[i] = value.Field(i).Len()
	}
	return intutils.Prod(lens...)
}

// ConfigAt returns the Config at index i in a ConfigList. Indices
// wrap around, so that index i and i + list.Len() refer to the same
// Config and -1 refers to the last Config. The last field of the list
// varies fastest with i.
func ConfigAt(i int, list ConfigList) Config {
	n := list.Len()
	if n == 0 {
		panic("configAt: empty config list")
	}
	i %= n
	if i < 0 {
		i += n
	}

	listValue := reflect.ValueOf(list)
	listType := listValue.Type()
	config := reflect.New(reflect.TypeOf(list.Config())).Elem()

	for f := listValue.NumField() - 1; f >= 0; f-- {
		values := listValue.Field(f)
		name := listType.Field(f).Name

		field := config.FieldByName(name)
		if !field.IsValid() {
			panic(fmt.Sprintf("configAt: %T has no field %v",
				list.Config(), name))
		}

		field.Set(values.Index(i % values.Len()))
		i /= values.Len()
	}

	return config.Interface().(Config)
}
