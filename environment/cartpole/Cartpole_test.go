package cartpole

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/qnet/environment"
	ts "github.com/samuelfneumann/qnet/timestep"
)

func newCartpole(t *testing.T, steps int) (*Cartpole, ts.TimeStep) {
	bounds := []r1.Interval{
		{Min: -0.05, Max: 0.05},
		{Min: -0.05, Max: 0.05},
		{Min: -0.05, Max: 0.05},
		{Min: -0.05, Max: 0.05},
	}
	task := NewBalance(env.NewUniformStarter(bounds, 1), steps, FailAngle)
	c, step, err := New(task, 0.99)
	require.NoError(t, err)
	return c, step
}

func TestCartpoleEpisodeTerminates(t *testing.T) {
	c, step := newCartpole(t, 500)
	assert.True(t, step.First())

	n, err := env.NumActions(c.ActionSpec())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Always pushing right topples the pole well before the step limit
	right := mat.NewVecDense(1, []float64{2})
	var done bool
	for i := 0; i < 500 && !done; i++ {
		step, done, err = c.Step(right)
		require.NoError(t, err)
	}

	require.True(t, done)
	assert.True(t, step.Terminal())
	assert.Less(t, step.Number, 500)
}

func TestCartpoleTimeout(t *testing.T) {
	c, _ := newCartpole(t, 5)

	none := mat.NewVecDense(1, []float64{1})
	var step ts.TimeStep
	var done bool
	for !done {
		var err error
		step, done, err = c.Step(none)
		require.NoError(t, err)
		if !done {
			assert.Equal(t, 1.0, step.Reward)
		}
	}
	assert.Equal(t, 5, step.Number)
	assert.Equal(t, ts.Timeout, step.EndType())
}

func TestCartpoleIllegalAction(t *testing.T) {
	c, _ := newCartpole(t, 5)
	assert.Panics(t, func() { c.Step(mat.NewVecDense(1, []float64{3})) })
}

func TestNormalizeAngle(t *testing.T) {
	bounds := r1.Interval{Min: -math.Pi, Max: math.Pi}
	assert.InDelta(t, -math.Pi+0.5, normalizeAngle(math.Pi+0.5, bounds), 1e-9)
	assert.InDelta(t, math.Pi-0.5, normalizeAngle(-math.Pi-0.5, bounds), 1e-9)
	assert.Equal(t, 0.25, normalizeAngle(0.25, bounds))
}
