package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	ts "github.com/samuelfneumann/qnet/timestep"
)

func TestNumActions(t *testing.T) {
	shape := mat.NewVecDense(1, nil)
	lower := mat.NewVecDense(1, []float64{0})
	upper := mat.NewVecDense(1, []float64{2})

	spec := NewSpec(shape, Action, lower, upper, Discrete)
	n, err := NumActions(spec)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	spec = NewSpec(shape, Action, lower, upper, Continuous)
	_, err = NumActions(spec)
	assert.Error(t, err)

	spec = NewSpec(shape, Observation, lower, upper, Discrete)
	_, err = NumActions(spec)
	assert.Error(t, err)

	wide := mat.NewVecDense(2, nil)
	spec = NewSpec(wide, Action, wide, wide, Discrete)
	_, err = NumActions(spec)
	assert.Error(t, err)
}

func TestNewSpecPanicsOnBounds(t *testing.T) {
	assert.Panics(t, func() {
		NewSpec(mat.NewVecDense(2, nil), Observation, mat.NewVecDense(1, nil),
			mat.NewVecDense(2, nil), Continuous)
	})
}

func TestStarters(t *testing.T) {
	bounds := []r1.Interval{{Min: -0.05, Max: 0.05}, {Min: 1, Max: 2}}
	u := NewUniformStarter(bounds, 1)
	for i := 0; i < 100; i++ {
		s := u.Start()
		require.Equal(t, 2, s.Len())
		assert.True(t, s.AtVec(0) >= -0.05 && s.AtVec(0) <= 0.05)
		assert.True(t, s.AtVec(1) >= 1 && s.AtVec(1) <= 2)
	}

	c := NewCategoricalStarter([]int{2, 5}, 1)
	for i := 0; i < 100; i++ {
		s := c.Start()
		assert.Contains(t, []float64{0, 1}, s.AtVec(0))
		assert.True(t, s.AtVec(1) >= 0 && s.AtVec(1) <= 4)
	}
}

func TestEnders(t *testing.T) {
	obs := mat.NewVecDense(2, []float64{0.5, 3})

	step := ts.New(ts.Mid, 0, 1, obs, 10)
	assert.True(t, NewStepLimit(10).End(&step))
	assert.True(t, step.Last())
	assert.Equal(t, ts.Timeout, step.EndType())

	step = ts.New(ts.Mid, 0, 1, obs, 1)
	assert.False(t, NewStepLimit(10).End(&step))
	assert.True(t, step.Mid())

	interval := NewIntervalLimit([]r1.Interval{{Min: -1, Max: 1}}, []int{1},
		ts.TerminalStateReached)
	step = ts.New(ts.Mid, 0, 1, obs, 1)
	assert.True(t, interval.End(&step))
	assert.True(t, step.Terminal())

	multi := NewMultiEnder(NewStepLimit(100), NewFunctionEnder(
		func(v *mat.VecDense) bool { return v.AtVec(0) > 0 },
		ts.TerminalStateReached,
	))
	step = ts.New(ts.Mid, 0, 1, obs, 1)
	assert.True(t, multi.End(&step))
	assert.Equal(t, ts.TerminalStateReached, step.EndType())
}
