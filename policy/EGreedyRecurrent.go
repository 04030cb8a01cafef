package policy

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/qnet/network"
	ts "github.com/samuelfneumann/qnet/timestep"
)

// EGreedyRecurrent implements an epsilon greedy policy using a
// recurrent neural network. The network sees one observation at a
// time, and the recurrent state it ends in after each observation is
// carried over to the next action selection, so that actions depend
// on the history of observations since the state was last reset.
type EGreedyRecurrent struct {
	*EGreedy
	net   network.Recurrent
	vm    G.VM
	state network.State
	eval  bool
}

// NewEGreedyRecurrent returns a new EGreedyRecurrent acting with a
// network which takes a single input for a single time step
func NewEGreedyRecurrent(epsilon float64, net network.Recurrent,
	seed uint64) (*EGreedyRecurrent, error) {
	if net.BatchSize() != 1 || net.Steps() != 1 {
		return nil, fmt.Errorf("newEGreedyRecurrent: policy network must "+
			"have batch size and steps 1 but got (%v, %v)", net.BatchSize(),
			net.Steps())
	}

	selector, err := NewEGreedy(epsilon, seed)
	if err != nil {
		return nil, fmt.Errorf("newEGreedyRecurrent: %v", err)
	}

	return &EGreedyRecurrent{
		EGreedy: selector,
		net:     net,
		vm:      G.NewTapeMachine(net.Graph()),
		state:   net.ZeroState(),
	}, nil
}

// Network returns the recurrent network of the policy
func (r *EGreedyRecurrent) Network() network.NeuralNet {
	return r.net
}

// ResetState sets the recurrent state to zero
func (r *EGreedyRecurrent) ResetState() {
	r.state = r.net.ZeroState()
}

// State returns the current recurrent state
func (r *EGreedyRecurrent) State() network.State {
	return r.state
}

// ActionValues returns the predicted value of each action given the
// next observation and advances the recurrent state
func (r *EGreedyRecurrent) ActionValues(obs *mat.VecDense) ([]float64,
	error) {
	if err := r.net.SetInput(obs.RawVector().Data); err != nil {
		return nil, fmt.Errorf("actionValues: %v", err)
	}
	if err := r.net.SetState(r.state); err != nil {
		return nil, fmt.Errorf("actionValues: %v", err)
	}
	defer r.vm.Reset()

	if err := r.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("actionValues: could not run network: %v",
			err)
	}

	r.state = r.net.State()
	values := r.net.Output().Data().([]float64)
	return append([]float64(nil), values...), nil
}

// SelectAction selects an action given the observation of timestep t
// and the observations before it
func (r *EGreedyRecurrent) SelectAction(t ts.TimeStep) (*mat.VecDense,
	error) {
	values, err := r.ActionValues(t.Observation)
	if err != nil {
		return nil, fmt.Errorf("selectAction: %v", err)
	}

	action := r.Choose(values, r.eval)
	return mat.NewVecDense(1, []float64{float64(action)}), nil
}

// Eval sets the policy to act greedily
func (r *EGreedyRecurrent) Eval() { r.eval = true }

// Train sets the policy to act ε-greedily
func (r *EGreedyRecurrent) Train() { r.eval = false }

// IsEval returns whether the policy is in evaluation mode
func (r *EGreedyRecurrent) IsEval() bool { return r.eval }

// Close closes the VM of the policy
func (r *EGreedyRecurrent) Close() error {
	return r.vm.Close()
}
