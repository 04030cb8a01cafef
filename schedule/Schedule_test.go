package schedule

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinear(t *testing.T) {
	s, err := NewLinear(1.0, 0.1, 10)
	require.NoError(t, err)

	tests := []struct {
		step int
		want float64
	}{
		{-1, 1.0},
		{0, 1.0},
		{5, 0.55},
		{10, 0.1},
		{1000, 0.1},
	}
	for _, test := range tests {
		assert.InDelta(t, test.want, s.Value(test.step), 1e-12,
			"step %v", test.step)
	}

	_, err = NewLinear(1.0, 0.1, 0)
	assert.Error(t, err)
}

func TestExponential(t *testing.T) {
	s, err := NewExponential(1.0, 0.1, 0.5)
	require.NoError(t, err)

	assert.Equal(t, 1.0, s.Value(0))
	assert.InDelta(t, 0.55, s.Value(1), 1e-12)
	assert.InDelta(t, 0.325, s.Value(2), 1e-12)
	assert.InDelta(t, 0.1, s.Value(200), 1e-12)
	assert.GreaterOrEqual(t, s.Value(200), 0.1)

	_, err = NewExponential(1.0, 0.1, 1.5)
	assert.Error(t, err)
}

func TestConstant(t *testing.T) {
	s, err := NewConstant(0.05)
	require.NoError(t, err)
	assert.Equal(t, 0.05, s.Value(0))
	assert.Equal(t, 0.05, s.Value(1e6))
}

func TestJSON(t *testing.T) {
	var s Schedule
	data := `{"Type": "Linear", "Config": {"Start": 1, "End": 0.05, ` +
		`"Steps": 1000}}`
	require.NoError(t, json.Unmarshal([]byte(data), &s))
	assert.Equal(t, LinearConfig{1, 0.05, 1000}, s.Config)

	out, err := json.Marshal(&s)
	require.NoError(t, err)
	assert.JSONEq(t, data, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"Type": "Cosine"}`), &s))
	assert.Error(t, json.Unmarshal(
		[]byte(`{"Type": "Exponential", "Config": {"Decay": 0}}`), &s))
}
