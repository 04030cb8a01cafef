// Package deepq implements the deep Q-learning agent (DQN) with
// experience replay and a target network
package deepq

import (
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/qnet/environment"
	"github.com/samuelfneumann/qnet/expreplay"
	"github.com/samuelfneumann/qnet/network"
	"github.com/samuelfneumann/qnet/policy"
	"github.com/samuelfneumann/qnet/schedule"
	ts "github.com/samuelfneumann/qnet/timestep"
	"github.com/samuelfneumann/qnet/utils/floatutils"
	"github.com/samuelfneumann/qnet/utils/logger"
)

// DeepQ implements the deep Q-learning algorithm. Transitions are
// stored in an experience replay buffer, and at each step a batch of
// transitions is sampled to minimize the mean squared TD error
//
//	(r + γ * Q_target(s', a') - Q(s, a))²
//
// where a' is the action of maximum target network value in s', or of
// maximum learned value if using double Q-learning. The discount γ is
// 0 on transitions into terminal states.
type DeepQ struct {
	// Action selection policy, which acts with a copy of the weights
	// of trainNet
	behaviour *policy.MultiHeadEGreedyMLP
	epsilon   *schedule.Schedule

	// Network whose weights are adapted, taking in batches of inputs
	trainNet   network.NeuralNet
	trainNetVM G.VM
	solver     G.Solver

	// Network that provides the update target for a batch of inputs
	targetNet   network.NeuralNet
	targetNetVM G.VM

	// Network which selects next actions for double Q-learning
	double    bool
	nextNet   network.NeuralNet
	nextNetVM G.VM

	// Variables to track target network updates
	tau                  float64 // Polyak averaging constant
	targetUpdateInterval int     // Updates between target updates
	gradientSteps        int
	envSteps             int

	// Input nodes of the graph of trainNet. For the update
	//
	//	Q(s, a) <- Q(s, a) + α * (r + γQ(s', a') - Q(s, a)) ∇Q(s, a)
	//
	// nextStateActionValues provides Q(s', ·) computed by targetNet and
	// nextActions the one-hot encoding of a'.
	selectedActions       *G.Node
	nextStateActionValues *G.Node
	nextActions           *G.Node
	rewards               *G.Node
	discounts             *G.Node
	costVal               G.Value

	numActions int
	batchSize  int
	replay     expreplay.ExperienceReplayer

	// Previous timestep to add transitions to the replay buffer
	prevStep ts.TimeStep
	started  bool

	log logger.Logger
}

// New creates and returns a new DeepQ agent
func New(e environment.Environment, c Config, seed uint64,
	log logger.Logger) (*DeepQ, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if log == nil {
		log = logger.Nop()
	}

	numActions, err := environment.NumActions(e.ActionSpec())
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	features := environment.NumFeatures(e.ObservationSpec())
	batchSize := c.BatchSize()

	// Behaviour network for selecting actions
	behaviour, err := policy.NewMultiHeadEGreedyMLP(c.Epsilon.Value(0), e,
		c.Layers, c.Biases, c.InitWFn.InitWFn(), c.Activations, seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create behaviour policy: %v",
			err)
	}

	// Create the target network which provides the update target
	targetNet, err := behaviour.Network().CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create target network: %v",
			err)
	}

	var nextNet network.NeuralNet
	var nextNetVM G.VM
	if c.Double {
		nextNet, err = behaviour.Network().CloneWithBatch(batchSize)
		if err != nil {
			return nil, fmt.Errorf("new: could not create next action "+
				"network: %v", err)
		}
		nextNetVM = G.NewTapeMachine(nextNet.Graph())
	}

	// Create a training network which learns the weights
	trainNet, err := behaviour.Network().CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create learning network: %v",
			err)
	}
	gTrain := trainNet.Graph()

	// Create nodes to compute the update target: r + γ * Q(s', a')
	nextStateActionValues := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(batchSize, numActions), G.WithName("targetActionVals"),
		G.WithInit(G.Zeroes()))
	nextActions := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(batchSize, numActions), G.WithName("nextActions"),
		G.WithInit(G.Zeroes()))
	rewards := G.NewVector(gTrain, tensor.Float64, G.WithShape(batchSize),
		G.WithName("reward"), G.WithInit(G.Zeroes()))
	discounts := G.NewVector(gTrain, tensor.Float64, G.WithShape(batchSize),
		G.WithName("discount"), G.WithInit(G.Zeroes()))

	updateTarget := G.Must(G.HadamardProd(nextStateActionValues,
		nextActions))
	updateTarget = G.Must(G.Sum(updateTarget, 1))
	updateTarget = G.Must(G.HadamardProd(updateTarget, discounts))
	updateTarget = G.Must(G.Add(updateTarget, rewards))

	// Action selected in the previous state. This is needed to compute
	// the loss using the correct action value since the network outputs N
	// action values, one for each environmental action
	selectedActions := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(batchSize, numActions), G.WithName("actionSelected"),
		G.WithInit(G.Zeroes()))
	selectedActionsValue := G.Must(G.HadamardProd(trainNet.Prediction(),
		selectedActions))
	selectedActionsValue = G.Must(G.Sum(selectedActionsValue, 1))

	// Compute the Mean Squared TD error
	losses := G.Must(G.Sub(updateTarget, selectedActionsValue))
	losses = G.Must(G.Square(losses))
	cost := G.Must(G.Mean(losses))

	d := &DeepQ{
		behaviour:             behaviour,
		epsilon:               c.Epsilon,
		trainNet:              trainNet,
		solver:                c.Solver.Reset(),
		targetNet:             targetNet,
		targetNetVM:           G.NewTapeMachine(targetNet.Graph()),
		double:                c.Double,
		nextNet:               nextNet,
		nextNetVM:             nextNetVM,
		tau:                   c.Tau,
		targetUpdateInterval:  c.TargetUpdateInterval,
		selectedActions:       selectedActions,
		nextStateActionValues: nextStateActionValues,
		nextActions:           nextActions,
		rewards:               rewards,
		discounts:             discounts,
		numActions:            numActions,
		batchSize:             batchSize,
		log:                   log,
	}
	G.Read(cost, &d.costVal)

	if _, err := G.Grad(cost, trainNet.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: could not compute gradient: %v", err)
	}
	d.trainNetVM = G.NewTapeMachine(gTrain,
		G.BindDualValues(trainNet.Learnables()...))

	// Create the experience replay buffer. The replay buffer stores
	// actions selected as one-hot vectors
	d.replay, err = c.ExpReplay.Create(features, numActions, seed, false)
	if err != nil {
		return nil, fmt.Errorf("new: could not create experience replay "+
			"buffer: %v", err)
	}

	return d, nil
}

// ObserveFirst observes and records the first episodic timestep
func (d *DeepQ) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		d.log.Warn("observeFirst called on non-first timestep",
			"step", t.Number)
	}
	d.prevStep = t
	d.started = true
	return nil
}

// Observe observes and records any timestep other than the first
// timestep. The transition from the previously observed timestep is
// added to the replay buffer.
func (d *DeepQ) Observe(action mat.Vector, nextStep ts.TimeStep) error {
	if !d.started {
		return fmt.Errorf("observe: ObserveFirst must be called at the " +
			"start of each episode")
	}
	if action.Len() != 1 {
		d.log.Warn("value-based methods should not have multi-dimensional "+
			"actions", "actionDims", action.Len())
	}

	oneHot, err := d.oneHot(int(action.AtVec(0)))
	if err != nil {
		return fmt.Errorf("observe: %v", err)
	}

	transition := ts.NewTransition(d.prevStep, oneHot, nextStep, nil)
	if err := d.replay.Add(transition); err != nil {
		return fmt.Errorf("observe: could not add to replay buffer: %v", err)
	}

	d.prevStep = nextStep
	if !d.behaviour.IsEval() {
		d.envSteps++
		d.behaviour.SetEpsilon(d.epsilon.Value(d.envSteps))
	}
	return nil
}

func (d *DeepQ) oneHot(action int) (*mat.VecDense, error) {
	if action < 0 || action >= d.numActions {
		return nil, fmt.Errorf("illegal action %v with %v actions", action,
			d.numActions)
	}
	v := mat.NewVecDense(d.numActions, nil)
	v.SetVec(action, 1.0)
	return v, nil
}

// Step updates the weights of the Agent's Policies. No update is
// performed while the replay buffer holds too few transitions.
func (d *DeepQ) Step() error {
	S, A, R, discount, NextS, _, err := d.replay.Sample()
	if expreplay.IsNotReady(err) {
		d.log.Debug("skipping update, replay buffer not ready",
			"capacity", d.replay.Capacity())
		return nil
	} else if err != nil {
		return fmt.Errorf("step: could not sample: %v", err)
	}

	// Compute the next state-action values with the target network
	nextValues, err := run(d.targetNet, d.targetNetVM, NextS)
	if err != nil {
		return fmt.Errorf("step: target network: %v", err)
	}

	// Select the next actions either greedily with respect to the
	// target network or with respect to the learned network
	selectFrom := nextValues
	if d.double {
		if err := d.nextNet.Set(d.trainNet); err != nil {
			return fmt.Errorf("step: %v", err)
		}
		if selectFrom, err = run(d.nextNet, d.nextNetVM, NextS); err != nil {
			return fmt.Errorf("step: next action network: %v", err)
		}
	}
	nextActions := greedyOneHot(selectFrom, d.numActions)

	lets := []struct {
		node  *G.Node
		value []float64
	}{
		{d.selectedActions, A},
		{d.nextStateActionValues, nextValues},
		{d.nextActions, nextActions},
		{d.rewards, R},
		{d.discounts, discount},
	}
	for _, l := range lets {
		t := tensor.New(tensor.WithBacking(l.value),
			tensor.WithShape(l.node.Shape()...))
		if err := G.Let(l.node, t); err != nil {
			return fmt.Errorf("step: could not set %v: %v", l.node.Name(), err)
		}
	}
	if err := d.trainNet.SetInput(S); err != nil {
		return fmt.Errorf("step: could not set trainNet input: %v", err)
	}

	// Run the learning step
	if err := d.trainNetVM.RunAll(); err != nil {
		return fmt.Errorf("step: could not run learning step: %v", err)
	}
	if err := d.solver.Step(d.trainNet.Model()); err != nil {
		return fmt.Errorf("step: could not step solver: %v", err)
	}
	d.trainNetVM.Reset()
	d.gradientSteps++

	// Update the target network
	if d.gradientSteps%d.targetUpdateInterval == 0 {
		if d.tau == 1.0 {
			err = d.targetNet.Set(d.trainNet)
		} else {
			err = d.targetNet.Polyak(d.trainNet, d.tau)
		}
		if err != nil {
			return fmt.Errorf("step: could not update target network: %v",
				err)
		}
	}

	if err := d.behaviour.Network().Set(d.trainNet); err != nil {
		return fmt.Errorf("step: could not update behaviour policy: %v", err)
	}
	return nil
}

// run runs a network on a batch of inputs and returns a copy of its
// output
func run(net network.NeuralNet, vm G.VM, input []float64) ([]float64,
	error) {
	if err := net.SetInput(input); err != nil {
		return nil, err
	}
	defer vm.Reset()
	if err := vm.RunAll(); err != nil {
		return nil, err
	}
	return append([]float64(nil), net.Output().Data().([]float64)...), nil
}

// greedyOneHot returns the one-hot encoding of the first action of
// maximum value in each row of a batch of action values
func greedyOneHot(values []float64, numActions int) []float64 {
	oneHot := make([]float64, len(values))
	for i := 0; i < len(values); i += numActions {
		_, maxIndices := floatutils.MaxSlice(values[i : i+numActions])
		oneHot[i+maxIndices[0]] = 1.0
	}
	return oneHot
}

// Loss returns the mean squared TD error of the last update
func (d *DeepQ) Loss() float64 {
	if d.costVal == nil {
		return 0
	}
	return d.costVal.Data().(float64)
}

// GradientSteps returns the number of updates performed
func (d *DeepQ) GradientSteps() int {
	return d.gradientSteps
}

// SelectAction selects an action with the behaviour policy, which is
// greedy in evaluation mode
func (d *DeepQ) SelectAction(t ts.TimeStep) (*mat.VecDense, error) {
	return d.behaviour.SelectAction(t)
}

// TdError calculates the TD error of a transition under the learned
// action values. Transition actions are given either as action
// indices or one-hot vectors.
func (d *DeepQ) TdError(t ts.Transition) (float64, error) {
	values, err := d.behaviour.ActionValues(t.State)
	if err != nil {
		return 0, fmt.Errorf("tdError: %v", err)
	}
	nextValues, err := d.behaviour.ActionValues(t.NextState)
	if err != nil {
		return 0, fmt.Errorf("tdError: %v", err)
	}

	action := int(t.Action.AtVec(0))
	if t.Action.Len() == d.numActions && d.numActions > 1 {
		_, indices := floatutils.MaxSlice(t.Action.RawVector().Data)
		action = indices[0]
	}
	if action < 0 || action >= d.numActions {
		return 0, fmt.Errorf("tdError: illegal action %v", action)
	}
	return t.Reward + t.Discount*floatutils.Max(nextValues...) -
		values[action], nil
}

// Epsilon returns the current ε of the behaviour policy
func (d *DeepQ) Epsilon() float64 {
	return d.behaviour.Epsilon()
}

// Eval sets the agent into evaluation mode
func (d *DeepQ) Eval() {
	d.behaviour.Eval()
}

// Train sets the agent into training mode
func (d *DeepQ) Train() {
	d.behaviour.Train()
}

// IsEval returns whether the agent is in evaluation mode
func (d *DeepQ) IsEval() bool {
	return d.behaviour.IsEval()
}

// EndEpisode performs cleanup at the end of an episode
func (d *DeepQ) EndEpisode() {
	d.started = false
}

// Save gob encodes the learned network to a file. The network can be
// restored with network.DecodeMLP.
func (d *DeepQ) Save(filename string) error {
	encoder, ok := d.trainNet.(gob.GobEncoder)
	if !ok {
		return fmt.Errorf("save: network is not serializable")
	}

	data, err := encoder.GobEncode()
	if err != nil {
		return fmt.Errorf("save: could not encode network: %v", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	return nil
}

// Close closes all VMs of the agent
func (d *DeepQ) Close() error {
	vms := []G.VM{d.trainNetVM, d.targetNetVM, d.nextNetVM}
	for _, vm := range vms {
		if vm == nil {
			continue
		}
		if err := vm.Close(); err != nil {
			return fmt.Errorf("close: %v", err)
		}
	}
	return d.behaviour.Close()
}
