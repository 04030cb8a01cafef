package policy

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	env "github.com/samuelfneumann/qnet/environment"
	"github.com/samuelfneumann/qnet/network"
	ts "github.com/samuelfneumann/qnet/timestep"
)

// MultiHeadEGreedyMLP implements an epsilon greedy policy using a
// feedforward neural network/MLP. Given an environment with N actions,
// the neural network will produce N outputs, each predicting the
// value of a distinct action.
//
// The policy runs its network on a single observation at a time using
// its own VM. The way to get an action from the policy is summarized
// as:
//
//	Set the input to the network:	net.SetInput(obs)
//	Predict the action values:		vm.RunAll()
//	Select an action:				EGreedy.Choose(values)
type MultiHeadEGreedyMLP struct {
	*EGreedy
	net  network.NeuralNet
	vm   G.VM
	eval bool
}

// NewMultiHeadEGreedyMLP creates and returns a new MultiHeadEGreedyMLP
// for environment e. The hiddenSizes parameter defines the number of
// nodes in each hidden layer. The biases parameter outlines which
// layers should include bias units. The activations parameter
// determines the activation function for each layer.
//
// A final linear layer is always added so that the number of network
// outputs equals the number of actions in the environment. A linear
// EGreedy policy is created by setting hiddenSizes, biases, and
// activations to empty slices.
func NewMultiHeadEGreedyMLP(epsilon float64, e env.Environment,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*network.Activation, seed uint64) (*MultiHeadEGreedyMLP,
	error) {
	numActions, err := env.NumActions(e.ActionSpec())
	if err != nil {
		return nil, fmt.Errorf("newMultiHeadEGreedyMLP: %v", err)
	}
	features := env.NumFeatures(e.ObservationSpec())

	net, err := network.NewMultiHeadMLP(features, 1, numActions,
		G.NewGraph(), hiddenSizes, biases, init, activations)
	if err != nil {
		return nil, fmt.Errorf("newMultiHeadEGreedyMLP: could not create "+
			"network: %v", err)
	}

	return NewEGreedyFromNet(epsilon, net, seed)
}

// NewEGreedyFromNet returns a MultiHeadEGreedyMLP acting with a given
// network. The network must take a batch of a single input.
func NewEGreedyFromNet(epsilon float64, net network.NeuralNet,
	seed uint64) (*MultiHeadEGreedyMLP, error) {
	if net.BatchSize() != 1 {
		return nil, fmt.Errorf("newEGreedyFromNet: policy network must "+
			"have batch size 1 but got %v", net.BatchSize())
	}

	selector, err := NewEGreedy(epsilon, seed)
	if err != nil {
		return nil, fmt.Errorf("newEGreedyFromNet: %v", err)
	}

	return &MultiHeadEGreedyMLP{
		EGreedy: selector,
		net:     net,
		vm:      G.NewTapeMachine(net.Graph()),
	}, nil
}

// Network returns the neural network function approximator that the
// policy uses.
func (m *MultiHeadEGreedyMLP) Network() network.NeuralNet {
	return m.net
}

// ActionValues returns the predicted value of each action given an
// observation
func (m *MultiHeadEGreedyMLP) ActionValues(obs *mat.VecDense) ([]float64,
	error) {
	if err := m.net.SetInput(obs.RawVector().Data); err != nil {
		return nil, fmt.Errorf("actionValues: %v", err)
	}
	defer m.vm.Reset()

	if err := m.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("actionValues: could not run network: %v",
			err)
	}

	values := m.net.Output().Data().([]float64)
	return append([]float64(nil), values...), nil
}

// SelectAction selects an action in the observation of timestep t
func (m *MultiHeadEGreedyMLP) SelectAction(t ts.TimeStep) (*mat.VecDense,
	error) {
	values, err := m.ActionValues(t.Observation)
	if err != nil {
		return nil, fmt.Errorf("selectAction: %v", err)
	}

	action := m.Choose(values, m.eval)
	return mat.NewVecDense(1, []float64{float64(action)}), nil
}

// Eval sets the policy to act greedily
func (m *MultiHeadEGreedyMLP) Eval() { m.eval = true }

// Train sets the policy to act ε-greedily
func (m *MultiHeadEGreedyMLP) Train() { m.eval = false }

// IsEval returns whether the policy is in evaluation mode
func (m *MultiHeadEGreedyMLP) IsEval() bool { return m.eval }

// Close closes the VM of the policy
func (m *MultiHeadEGreedyMLP) Close() error {
	return m.vm.Close()
}
