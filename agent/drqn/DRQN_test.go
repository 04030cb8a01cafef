package drqn

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/qnet/agent"
	env "github.com/samuelfneumann/qnet/environment"
	"github.com/samuelfneumann/qnet/environment/envconfig"
	"github.com/samuelfneumann/qnet/expreplay"
	"github.com/samuelfneumann/qnet/initwfn"
	"github.com/samuelfneumann/qnet/network"
	"github.com/samuelfneumann/qnet/schedule"
	"github.com/samuelfneumann/qnet/solver"
	ts "github.com/samuelfneumann/qnet/timestep"
	"github.com/samuelfneumann/qnet/utils/logger"
)

const (
	batchSize      = 2
	sequenceLength = 4
	minCapacity    = 4
)

func newConfig(t *testing.T) Config {
	t.Helper()
	adam, err := solver.NewDefaultAdam(1e-3, batchSize)
	require.NoError(t, err)
	init, err := initwfn.NewGlorotU(1.0)
	require.NoError(t, err)
	epsilon, err := schedule.NewLinear(1.0, 0.1, 100)
	require.NoError(t, err)

	return Config{
		EncoderLayers:      []int{8},
		EncoderBiases:      []bool{true},
		EncoderActivations: []*network.Activation{network.ReLU()},
		Cell:               network.LSTM,
		HiddenSize:         6,
		Solver:             adam,
		InitWFn:            init,
		Epsilon:            epsilon,
		ExpReplay: expreplay.SequenceConfig{
			SequenceLength:    sequenceLength,
			BatchSize:         batchSize,
			MaxReplayCapacity: 100,
			MinReplayCapacity: minCapacity,
		},
		BurnIn:               1,
		Tau:                  1.0,
		TargetUpdateInterval: 1,
	}
}

func newTMaze(t *testing.T) (env.Environment, ts.TimeStep) {
	t.Helper()
	e, step, err := envconfig.CreateTMaze(envconfig.Cue, 2, 10, 1, 0.99)
	require.NoError(t, err)
	return e, step
}

func interact(t *testing.T, d *DRQN, e env.Environment, step ts.TimeStep,
	steps int) {
	t.Helper()
	require.NoError(t, d.ObserveFirst(step))

	for i := 0; i < steps; i++ {
		action, err := d.SelectAction(step)
		require.NoError(t, err)

		step, _, err = e.Step(action)
		require.NoError(t, err)
		require.NoError(t, d.Observe(action, step))
		require.NoError(t, d.Step())

		if step.Last() {
			d.EndEpisode()
			step, err = e.Reset()
			require.NoError(t, err)
			require.NoError(t, d.ObserveFirst(step))
		}
	}
}

func weights(net network.NeuralNet) [][]float64 {
	var w [][]float64
	for _, node := range net.Learnables() {
		w = append(w, append([]float64(nil),
			node.Value().Data().([]float64)...))
	}
	return w
}

func TestDRQNLearns(t *testing.T) {
	for _, cell := range []network.CellType{network.LSTM, network.GRU} {
		t.Run(string(cell), func(t *testing.T) {
			e, step := newTMaze(t)
			c := newConfig(t)
			c.Cell = cell
			d, err := New(e, c, 1, logger.Nop())
			require.NoError(t, err)
			defer d.Close()

			before := weights(d.trainNet)
			interact(t, d, e, step, 30)

			assert.Equal(t, 30-minCapacity+1, d.GradientSteps())
			assert.NotEqual(t, before, weights(d.trainNet))
			assert.GreaterOrEqual(t, d.Loss(), 0.0)

			assert.Equal(t, weights(d.trainNet), weights(d.targetNet))
			assert.Equal(t, weights(d.trainNet),
				weights(d.behaviour.Network()))
		})
	}
}

func TestDRQNDoublePolyak(t *testing.T) {
	e, step := newTMaze(t)
	c := newConfig(t)
	c.Tau = 0.1
	c.Double = true
	d, err := New(e, c, 2, nil)
	require.NoError(t, err)
	defer d.Close()

	interact(t, d, e, step, 20)
	assert.Equal(t, 20-minCapacity+1, d.GradientSteps())
	assert.NotEqual(t, weights(d.trainNet), weights(d.targetNet))
}

func TestLossInputs(t *testing.T) {
	d := &DRQN{numActions: 2, batchSize: 1, sequenceLength: 3, burnIn: 1}
	batch := &expreplay.SequenceBatch{
		SequenceLength: 3,
		BatchSize:      1,
		FeatureSize:    1,
		Actions:        []float64{0, 1, 0},
		Rewards:        []float64{1, 2, 0},
		Discounts:      []float64{0.9, 0.5, 0},
		Mask:           []float64{1, 1, 0},
	}
	nextValues := []float64{0, 0, 1, 3, 5, 4, 0, 0}

	targets, weights, oneHot := d.lossInputs(batch, nextValues, nextValues)
	assert.Equal(t, []float64{0, 4.5, 0}, targets)
	assert.Equal(t, []float64{0, 1, 0}, weights)
	assert.Equal(t, []float64{0, 0, 0, 1, 0, 0}, oneHot)

	// Double Q-learning selects the next action with other values
	selectFrom := []float64{0, 0, 0, 0, 0, 1, 0, 0}
	targets, _, _ = d.lossInputs(batch, nextValues, selectFrom)
	assert.Equal(t, []float64{0, 4, 0}, targets)

	// Steps in the burn in do not contribute
	d.burnIn = 2
	_, weights, _ = d.lossInputs(batch, nextValues, nextValues)
	assert.Nil(t, weights)
}

func TestDRQNResetsStateEachEpisode(t *testing.T) {
	e, step := newTMaze(t)
	d, err := New(e, newConfig(t), 3, nil)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.ObserveFirst(step))
	_, err = d.SelectAction(step)
	require.NoError(t, err)
	assert.NotEqual(t, make([]float64, 6), d.behaviour.State().H)

	d.EndEpisode()
	require.NoError(t, d.ObserveFirst(step))
	assert.Equal(t, make([]float64, 6), d.behaviour.State().H)
	assert.Equal(t, make([]float64, 6), d.behaviour.State().C)
}

func TestDRQNEvalFreezesEpsilon(t *testing.T) {
	e, step := newTMaze(t)
	d, err := New(e, newConfig(t), 4, nil)
	require.NoError(t, err)
	defer d.Close()

	d.Eval()
	interact(t, d, e, step, 10)
	assert.Equal(t, 1.0, d.Epsilon())

	d.Train()
	interact(t, d, e, step, 10)
	assert.InDelta(t, 1.0-0.9*10/100, d.Epsilon(), 1e-12)
}

func TestDRQNObserveErrors(t *testing.T) {
	e, step := newTMaze(t)
	d, err := New(e, newConfig(t), 5, nil)
	require.NoError(t, err)
	defer d.Close()

	action := mat.NewVecDense(1, []float64{0})
	assert.Error(t, d.Observe(action, step))

	require.NoError(t, d.ObserveFirst(step))
	assert.Error(t, d.Observe(mat.NewVecDense(1, []float64{4}), step))
	assert.Error(t, d.Observe(mat.NewVecDense(2, nil), step))
}

func TestDRQNSave(t *testing.T) {
	e, step := newTMaze(t)
	d, err := New(e, newConfig(t), 6, nil)
	require.NoError(t, err)
	defer d.Close()
	interact(t, d, e, step, 10)

	path := filepath.Join(t.TempDir(), "net.bin")
	require.NoError(t, d.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	net, err := network.DecodeRecurrent(data)
	require.NoError(t, err)
	assert.Equal(t, weights(d.trainNet), weights(net))
	assert.Equal(t, sequenceLength, net.Steps())
	assert.Equal(t, network.LSTM, net.CellType())

	// The restored network computes the same action values as the
	// network it was saved from
	clone, err := d.trainNet.CloneWithBatchAndSteps(batchSize,
		sequenceLength)
	require.NoError(t, err)
	input := make([]float64, sequenceLength*batchSize*net.Features())
	for i := range input {
		input[i] = float64(i%3) - 1
	}
	for _, r := range []network.Recurrent{clone, net} {
		require.NoError(t, r.SetInput(input))
		require.NoError(t, r.SetState(r.ZeroState()))
	}
	want := forward(t, clone)
	require.Len(t, want, sequenceLength*batchSize*net.Outputs())
	assert.InDeltaSlice(t, want, forward(t, net), 1e-12)
}

func forward(t *testing.T, net network.NeuralNet) []float64 {
	t.Helper()
	vm := G.NewTapeMachine(net.Graph())
	defer vm.Close()
	require.NoError(t, vm.RunAll())
	require.NotNil(t, net.Output())
	return append([]float64(nil), net.Output().Data().([]float64)...)
}

func TestConfigValidate(t *testing.T) {
	c := newConfig(t)
	require.NoError(t, c.Validate())

	c.BurnIn = sequenceLength
	assert.Error(t, c.Validate())

	c = newConfig(t)
	c.Cell = "RNN"
	assert.Error(t, c.Validate())

	c = newConfig(t)
	c.HiddenSize = 0
	assert.Error(t, c.Validate())

	c = newConfig(t)
	c.EncoderActivations = nil
	assert.Error(t, c.Validate())

	c = newConfig(t)
	c.ExpReplay.MaxReplayCapacity = 2
	assert.Error(t, c.Validate())
}

const configListJSON = `{
	"Type": "EGreedyDRQN-Recurrent",
	"ConfigList": {
		"EncoderLayers": [[16]],
		"EncoderBiases": [[true]],
		"EncoderActivations": [["relu"]],
		"Cell": ["LSTM", "GRU"],
		"HiddenSize": [16],
		"Solver": [{"Type": "Adam", "Config": {"StepSize": 0.001,
			"Epsilon": 1e-8, "Beta1": 0.9, "Beta2": 0.999, "Batch": 8}}],
		"InitWFn": [{"Type": "GlorotU", "Config": {"Gain": 1}}],
		"Epsilon": [{"Type": "Constant", "Config": {"Level": 0.1}}],
		"ExpReplay": [{"SequenceLength": 8, "BatchSize": 8,
			"MaxReplayCapacity": 1000, "MinReplayCapacity": 8}],
		"BurnIn": [0, 2],
		"Tau": [1],
		"TargetUpdateInterval": [10],
		"Double": [false]
	}
}`

func TestTypedConfigList(t *testing.T) {
	var list agent.TypedConfigList
	require.NoError(t, json.Unmarshal([]byte(configListJSON), &list))
	assert.Equal(t, agent.EGreedyDRQNRecurrent, list.Type)
	require.Equal(t, 4, list.Len())

	want := []struct {
		cell   network.CellType
		burnIn int
	}{
		{network.LSTM, 0}, {network.LSTM, 2},
		{network.GRU, 0}, {network.GRU, 2},
	}
	for i, w := range want {
		c := list.At(i).(Config)
		assert.Equal(t, w.cell, c.Cell)
		assert.Equal(t, w.burnIn, c.BurnIn)
		assert.NoError(t, c.Validate())
	}
	assert.Equal(t, list.At(3), list.At(-1))
	assert.Equal(t, list.At(0), list.At(-4))
	assert.Equal(t, list.At(1), list.At(5))

	e, _ := newTMaze(t)
	a, err := list.At(3).(Config).CreateAgent(e, 0, nil)
	require.NoError(t, err)
	assert.True(t, list.At(3).(Config).ValidAgent(a))
	require.NoError(t, a.(*DRQN).Close())
}
