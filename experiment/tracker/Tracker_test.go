package tracker

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/qnet/environment/envconfig"
	"github.com/samuelfneumann/qnet/environment/tmaze"
	ts "github.com/samuelfneumann/qnet/timestep"
)

func episode(rewards ...float64) []ts.TimeStep {
	obs := mat.NewVecDense(1, nil)
	steps := []ts.TimeStep{ts.New(ts.First, 0, 1, obs, 0)}
	for i, r := range rewards {
		stepType := ts.Mid
		if i == len(rewards)-1 {
			stepType = ts.Last
		}
		steps = append(steps, ts.New(stepType, r, 1, obs, i+1))
	}
	return steps
}

func TestReturnAndEpisodeLength(t *testing.T) {
	dir := t.TempDir()
	returns := NewReturn(filepath.Join(dir, "returns.bin"))
	lengths := NewEpisodeLength(filepath.Join(dir, "lengths.bin"))

	var steps []ts.TimeStep
	steps = append(steps, episode(1, 2, 3)...)
	steps = append(steps, episode(-1, 0.5)...)
	steps = append(steps, episode(7)[:1]...)
	for _, step := range steps {
		returns.Track(step)
		lengths.Track(step)
	}

	assert.Equal(t, []float64{6, -0.5}, returns.Data())
	assert.Equal(t, []float64{3, 2}, lengths.Data())

	require.NoError(t, returns.Save())
	require.NoError(t, lengths.Save())

	data, err := LoadData(filepath.Join(dir, "returns.bin"))
	require.NoError(t, err)
	assert.Equal(t, []float64{6, -0.5}, data)

	data, err = LoadData(filepath.Join(dir, "lengths.bin"))
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 2}, data)
}

func TestReturnPanicsOnSkippedStep(t *testing.T) {
	steps := episode(1, 2, 3)
	r := NewReturn("")
	r.Track(steps[0])
	assert.Panics(t, func() { r.Track(steps[2]) })
}

func TestLoadDataErrors(t *testing.T) {
	_, err := LoadData(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)

	assert.Error(t, NewReturn(filepath.Join(t.TempDir(), "no", "such",
		"dir.bin")).Save())
}

func TestRegister(t *testing.T) {
	e, first, err := envconfig.CreateTMaze(envconfig.Cue, 1, 10, 0, 1)
	require.NoError(t, err)

	lengths := NewEpisodeLength("")
	registered := Register(lengths, e)

	// The argument is ignored in favour of the environment's timestep
	registered.Track(ts.New(ts.Last, 0, 1, first.Observation, 99))
	assert.Empty(t, lengths.Data())

	e.Step(mat.NewVecDense(1, []float64{float64(tmaze.East)}))
	e.Step(mat.NewVecDense(1, []float64{float64(tmaze.North)}))
	registered.Track(ts.TimeStep{})
	assert.Equal(t, []float64{2}, lengths.Data())
}
