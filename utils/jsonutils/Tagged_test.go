package jsonutils

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y float64
}

type empty struct{}

var types = map[string]reflect.Type{
	"point": reflect.TypeOf(point{}),
	"empty": reflect.TypeOf(empty{}),
}

func TestUnmarshalTagged(t *testing.T) {
	value, name, err := UnmarshalTagged(
		[]byte(`{"Type": "point", "Config": {"X": 1, "Y": 2}}`), types)
	require.NoError(t, err)
	assert.Equal(t, "point", name)
	assert.Equal(t, point{1, 2}, value)

	value, _, err = UnmarshalTagged([]byte(`{"Type": "empty"}`), types)
	require.NoError(t, err)
	assert.Equal(t, empty{}, value)

	_, _, err = UnmarshalTagged([]byte(`{"Type": "circle"}`), types)
	assert.Error(t, err)

	_, _, err = UnmarshalTagged([]byte(`{"Type": "point", "Config": 3}`),
		types)
	assert.Error(t, err)
}

func TestMarshalTagged(t *testing.T) {
	data, err := MarshalTagged("point", point{3, 4})
	require.NoError(t, err)

	value, name, err := UnmarshalTagged(data, types)
	require.NoError(t, err)
	assert.Equal(t, "point", name)
	assert.Equal(t, point{3, 4}, value)
}
