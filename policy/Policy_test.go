package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/qnet/network"
	ts "github.com/samuelfneumann/qnet/timestep"
)

// linearPolicy returns a policy over 3 actions whose action values
// are always {0, 1, 5}
func linearPolicy(t *testing.T, epsilon float64) *MultiHeadEGreedyMLP {
	t.Helper()
	net, err := network.NewMultiHeadMLP(2, 1, 3, G.NewGraph(), nil, nil,
		G.Zeroes(), nil)
	require.NoError(t, err)

	bias := tensor.New(tensor.WithShape(1, 3),
		tensor.WithBacking([]float64{0, 1, 5}))
	require.NoError(t, G.Let(net.Learnables()[1], bias))

	p, err := NewEGreedyFromNet(epsilon, net, 1)
	require.NoError(t, err)
	return p
}

func step(obs ...float64) ts.TimeStep {
	return ts.New(ts.Mid, 0, 1, mat.NewVecDense(len(obs), obs), 1)
}

func TestMultiHeadEGreedyMLPGreedy(t *testing.T) {
	p := linearPolicy(t, 0.0)
	defer p.Close()

	values, err := p.ActionValues(mat.NewVecDense(2, []float64{3, -2}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 5}, values)

	for i := 0; i < 20; i++ {
		action, err := p.SelectAction(step(0.1, 0.2))
		require.NoError(t, err)
		assert.Equal(t, 2.0, action.AtVec(0))
	}
}

func TestMultiHeadEGreedyMLPEval(t *testing.T) {
	p := linearPolicy(t, 1.0)
	defer p.Close()

	p.Eval()
	assert.True(t, p.IsEval())
	for i := 0; i < 20; i++ {
		action, err := p.SelectAction(step(0, 0))
		require.NoError(t, err)
		assert.Equal(t, 2.0, action.AtVec(0))
	}

	p.Train()
	seen := make(map[float64]bool)
	for i := 0; i < 200; i++ {
		action, err := p.SelectAction(step(0, 0))
		require.NoError(t, err)
		seen[action.AtVec(0)] = true
	}
	assert.Len(t, seen, 3)
}

func TestMultiHeadEGreedyMLPInput(t *testing.T) {
	p := linearPolicy(t, 0.0)
	defer p.Close()

	_, err := p.SelectAction(step(1, 2, 3))
	assert.Error(t, err)
}

func TestEGreedyTies(t *testing.T) {
	e, err := NewEGreedy(0, 42)
	require.NoError(t, err)

	counts := make([]int, 3)
	for i := 0; i < 1000; i++ {
		counts[e.Choose([]float64{1, 1, 0}, false)]++
	}
	assert.Zero(t, counts[2])
	assert.InDelta(t, 500, counts[0], 100)
	assert.InDelta(t, 500, counts[1], 100)
}

func TestEGreedyEpsilon(t *testing.T) {
	_, err := NewEGreedy(1.5, 0)
	assert.Error(t, err)

	e, err := NewEGreedy(0.5, 0)
	require.NoError(t, err)
	e.SetEpsilon(-0.1)
	assert.Equal(t, 0.0, e.Epsilon())
	e.SetEpsilon(0.3)
	assert.Equal(t, 0.3, e.Epsilon())
}

func TestEGreedyRecurrentState(t *testing.T) {
	net, err := network.NewRecurrent(2, 1, 1, 3, G.NewGraph(), nil, nil, nil,
		network.LSTM, 4, G.GlorotU(1.0))
	require.NoError(t, err)

	p, err := NewEGreedyRecurrent(0.1, net, 3)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, net.ZeroState(), p.State())

	_, err = p.SelectAction(step(1, -1))
	require.NoError(t, err)
	first := p.State()
	assert.NotEqual(t, net.ZeroState().H, first.H)

	// The same observation from a different state can have different
	// action values
	_, err = p.SelectAction(step(1, -1))
	require.NoError(t, err)
	assert.NotEqual(t, first.H, p.State().H)

	p.ResetState()
	assert.Equal(t, net.ZeroState(), p.State())
}

func TestEGreedyRecurrentValidation(t *testing.T) {
	net, err := network.NewRecurrent(2, 2, 1, 3, G.NewGraph(), nil, nil, nil,
		network.GRU, 4, G.GlorotU(1.0))
	require.NoError(t, err)

	_, err = NewEGreedyRecurrent(0.1, net, 3)
	assert.Error(t, err)
}
