package network

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
)

func newRecurrent(t *testing.T, cell CellType, batch, steps int) Recurrent {
	t.Helper()
	net, err := NewRecurrent(3, batch, steps, 2, G.NewGraph(), []int{4},
		[]bool{true}, []*Activation{ReLU()}, cell, 5, G.GlorotU(1.0))
	require.NoError(t, err)
	return net
}

// Unrolling over a sequence must match stepping through the sequence
// one input at a time while carrying the recurrent state
func TestRecurrentUnrollMatchesStepping(t *testing.T) {
	for _, cell := range []CellType{LSTM, GRU} {
		t.Run(string(cell), func(t *testing.T) {
			steps := 4
			unrolled := newRecurrent(t, cell, 1, steps)
			single, err := unrolled.CloneWithBatchAndSteps(1, 1)
			require.NoError(t, err)

			inputs := []float64{
				0.1, 0.2, 0.3,
				-0.5, 0.0, 1.0,
				0.7, -0.2, 0.4,
				0.0, 0.9, -0.8,
			}
			require.NoError(t, unrolled.SetInput(inputs))
			require.NoError(t, unrolled.SetState(unrolled.ZeroState()))
			want := run(t, unrolled)
			require.Len(t, want, steps*2)

			state := single.ZeroState()
			for step := 0; step < steps; step++ {
				require.NoError(t, single.SetInput(inputs[step*3:(step+1)*3]))
				require.NoError(t, single.SetState(state))
				got := run(t, single)
				assert.InDeltaSlice(t, want[step*2:(step+1)*2], got, 1e-9)
				state = single.State()
			}

			assert.InDeltaSlice(t, unrolled.State().H, state.H, 1e-9)
			if cell == LSTM {
				assert.Len(t, state.C, 5)
			} else {
				assert.Nil(t, state.C)
			}
		})
	}
}

func TestRecurrentStateMatters(t *testing.T) {
	net := newRecurrent(t, GRU, 1, 1)
	require.NoError(t, net.SetInput([]float64{0.3, 0.3, 0.3}))

	require.NoError(t, net.SetState(net.ZeroState()))
	fromZero := run(t, net)

	require.NoError(t, net.SetState(State{H: []float64{1, -1, 1, -1, 1}}))
	fromOther := run(t, net)

	assert.NotEqual(t, fromZero, fromOther)
}

func TestRecurrentGradients(t *testing.T) {
	net := newRecurrent(t, LSTM, 2, 3)
	cost := G.Must(G.Mean(G.Must(G.Square(net.Prediction()))))
	_, err := G.Grad(cost, net.Learnables()...)
	require.NoError(t, err)

	require.NoError(t, net.SetInput(make([]float64, 2*3*3)))
	vm := G.NewTapeMachine(net.Graph(), G.BindDualValues(net.Learnables()...))
	defer vm.Close()
	require.NoError(t, vm.RunAll())

	// Encoder, 4 gates of 3 weights each, and the head
	assert.Len(t, net.Learnables(), 2+12+2)
}

func TestRecurrentGobAndSet(t *testing.T) {
	net := newRecurrent(t, LSTM, 1, 2)
	other := newRecurrent(t, LSTM, 1, 2)
	require.NoError(t, other.Set(net))

	in := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	require.NoError(t, net.SetInput(in))
	require.NoError(t, other.SetInput(in))
	want := run(t, net)
	assert.InDeltaSlice(t, want, run(t, other), 1e-12)

	data, err := net.(*recurrent).GobEncode()
	require.NoError(t, err)
	decoded, err := DecodeRecurrent(data)
	require.NoError(t, err)
	assert.Equal(t, LSTM, decoded.CellType())
	require.NoError(t, decoded.SetInput(in))
	assert.InDeltaSlice(t, want, run(t, decoded), 1e-12)

	var viaGob recurrent
	require.NoError(t, viaGob.GobDecode(data))
	require.NoError(t, viaGob.SetInput(in))
	assert.InDeltaSlice(t, want, run(t, &viaGob), 1e-12)
	assert.InDeltaSlice(t, net.State().H, viaGob.State().H, 1e-12)
	assert.InDeltaSlice(t, net.State().C, viaGob.State().C, 1e-12)
}

func TestCellTypeJSON(t *testing.T) {
	var c CellType
	require.NoError(t, json.Unmarshal([]byte(`"GRU"`), &c))
	assert.Equal(t, GRU, c)
	assert.Error(t, json.Unmarshal([]byte(`"RNN"`), &c))

	_, err := NewRecurrent(1, 1, 1, 1, G.NewGraph(), nil, nil, nil, "RNN",
		1, G.Zeroes())
	assert.Error(t, err)
}
