package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/qnet/agent"
	_ "github.com/samuelfneumann/qnet/agent/deepq"
	env "github.com/samuelfneumann/qnet/environment"
	"github.com/samuelfneumann/qnet/environment/envconfig"
	"github.com/samuelfneumann/qnet/environment/tmaze"
	"github.com/samuelfneumann/qnet/experiment/checkpointer"
	"github.com/samuelfneumann/qnet/experiment/tracker"
	ts "github.com/samuelfneumann/qnet/timestep"
	"github.com/samuelfneumann/qnet/utils/logger"
)

// westAgent always walks west in the TMaze, so that every episode is
// cut off by the step limit
type westAgent struct {
	eval        bool
	observes    int
	steps       int
	evalSelects int
	saved       []string
}

func (w *westAgent) Step() error { w.steps++; return nil }

func (w *westAgent) Observe(mat.Vector, ts.TimeStep) error {
	if w.eval {
		return fmt.Errorf("observe: called in evaluation mode")
	}
	w.observes++
	return nil
}

func (w *westAgent) ObserveFirst(ts.TimeStep) error { return nil }
func (w *westAgent) EndEpisode()                    {}

func (w *westAgent) SelectAction(ts.TimeStep) (*mat.VecDense, error) {
	if w.eval {
		w.evalSelects++
	}
	return mat.NewVecDense(1, []float64{float64(tmaze.West)}), nil
}

func (w *westAgent) Eval()        { w.eval = true }
func (w *westAgent) Train()       { w.eval = false }
func (w *westAgent) IsEval() bool { return w.eval }

func (w *westAgent) Save(filename string) error {
	w.saved = append(w.saved, filename)
	return nil
}

func newTMaze(t *testing.T, cutoff int) env.Environment {
	t.Helper()
	e, _, err := envconfig.CreateTMaze(envconfig.Cue, 3, cutoff, 0, 0.9)
	require.NoError(t, err)
	return e
}

func TestOnlineStepLimit(t *testing.T) {
	a := &westAgent{}
	returns := tracker.NewReturn("")
	lengths := tracker.NewEpisodeLength("")

	o, err := NewOnline(newTMaze(t, 5), a, 12,
		[]tracker.Tracker{returns, lengths}, nil, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, uint(12), o.Steps())
	assert.Equal(t, uint(3), o.Episodes())
	assert.Equal(t, 12, a.observes)
	assert.Equal(t, 12, a.steps)

	// The third episode is cut off by the experiment and never finishes
	assert.InDeltaSlice(t, []float64{-0.5, -0.5}, returns.Data(), 1e-9)
	assert.Equal(t, []float64{5, 5}, lengths.Data())

	done, err := o.RunEpisode(context.Background())
	assert.True(t, done)
	assert.NoError(t, err)
}

func TestOnlineEpisodeLimit(t *testing.T) {
	a := &westAgent{}
	o, err := NewOnline(newTMaze(t, 5), a, 100, nil, nil, nil)
	require.NoError(t, err)
	o.SetMaxEpisodes(2)
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, uint(10), o.Steps())
	assert.Equal(t, uint(2), o.Episodes())
}

func TestOnlineEvaluation(t *testing.T) {
	a := &westAgent{}
	evalReturns := tracker.NewReturn("")

	o, err := NewOnline(newTMaze(t, 5), a, 100, nil, nil, nil)
	require.NoError(t, err)
	o.SetMaxEpisodes(2)
	o.SetEvaluation(1, 2, evalReturns)
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, 10, a.observes)
	assert.Equal(t, 20, a.evalSelects)
	assert.Len(t, evalReturns.Data(), 4)
	assert.False(t, a.IsEval())
}

func TestOnlineCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o, err := NewOnline(newTMaze(t, 5), &westAgent{}, 100, nil, nil, nil)
	require.NoError(t, err)
	err = o.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, uint(0), o.Steps())
}

func TestOnlineCheckpoints(t *testing.T) {
	a := &westAgent{}
	c, err := checkpointer.NewNStep(4, a,
		checkpointer.FilenameEnumerator(0, "agent", ".bin"))
	require.NoError(t, err)

	o, err := NewOnline(newTMaze(t, 5), a, 12, nil,
		[]checkpointer.Checkpointer{c}, nil)
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, []string{"agent1.bin", "agent2.bin", "agent3.bin"},
		a.saved)
}

func TestNewOnlineValidation(t *testing.T) {
	_, err := NewOnline(newTMaze(t, 5), &westAgent{}, 0, nil, nil, nil)
	assert.Error(t, err)
}

const configJSON = `{
	"Type": "OnlineExperiment",
	"MaxSteps": 30,
	"MaxEpisodes": 0,
	"EvalEvery": 2,
	"EvalEpisodes": 1,
	"EnvConf": {
		"Environment": "TMaze",
		"Task": "Cue",
		"EpisodeCutoff": 6,
		"Discount": 0.99,
		"CorridorLength": 2
	},
	"AgentConf": {
		"Type": "EGreedyDeepQ-MLP",
		"ConfigList": {
			"Layers": [[8]],
			"Biases": [[true]],
			"Activations": [["relu"]],
			"Solver": [{"Type": "Adam", "Config": {"StepSize": 0.001,
				"Epsilon": 1e-8, "Beta1": 0.9, "Beta2": 0.999, "Batch": 4}}],
			"InitWFn": [{"Type": "GlorotU", "Config": {"Gain": 1}}],
			"Epsilon": [{"Type": "Constant", "Config": {"Level": 0.1}}],
			"ExpReplay": [{"RemoveMethod": "Fifo", "SampleMethod": "Uniform",
				"RemoveSize": 1, "SampleSize": 4, "MaxReplayCapacity": 100,
				"MinReplayCapacity": 4}],
			"Tau": [1],
			"TargetUpdateInterval": [5],
			"Double": [false]
		}
	}
}`

func TestConfigCreateExp(t *testing.T) {
	var c Config
	require.NoError(t, json.Unmarshal([]byte(configJSON), &c))
	require.NoError(t, c.Validate())

	returns := tracker.NewReturn("")
	exp, a, err := c.CreateExp(0, 1, []tracker.Tracker{returns}, nil, nil,
		logger.Nop())
	require.NoError(t, err)
	defer a.(agent.Closer).Close()

	require.NoError(t, exp.Run(context.Background()))
	assert.Equal(t, uint(30), exp.(*Online).Steps())
	assert.NotEmpty(t, returns.Data())
}

func TestConfigCreateExpSavesEvalWithoutEvaluation(t *testing.T) {
	var c Config
	require.NoError(t, json.Unmarshal([]byte(configJSON), &c))
	c.EvalEvery = 0
	c.EvalEpisodes = 0
	require.NoError(t, c.Validate())

	dir := t.TempDir()
	returns := tracker.NewReturn(filepath.Join(dir, "returns.bin"))
	eval := tracker.NewReturn(filepath.Join(dir, "eval.bin"))
	exp, a, err := c.CreateExp(0, 1, []tracker.Tracker{returns},
		[]tracker.Tracker{eval}, nil, logger.Nop())
	require.NoError(t, err)
	defer a.(agent.Closer).Close()

	require.NoError(t, exp.Run(context.Background()))
	require.NoError(t, exp.Save())

	data, err := tracker.LoadData(filepath.Join(dir, "eval.bin"))
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.FileExists(t, filepath.Join(dir, "returns.bin"))
}

func TestConfigValidate(t *testing.T) {
	var c Config
	require.NoError(t, json.Unmarshal([]byte(configJSON), &c))

	bad := c
	bad.MaxSteps = 0
	assert.Error(t, bad.Validate())

	bad = c
	bad.EvalEpisodes = 0
	assert.Error(t, bad.Validate())

	bad = c
	bad.Type = "Offline"
	assert.Error(t, bad.Validate())

	bad = c
	bad.EnvConf.Environment = "Pong"
	assert.Error(t, bad.Validate())
}
