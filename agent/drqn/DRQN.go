// Package drqn implements the deep recurrent Q-learning agent (DRQN),
// which learns action values from histories of observations in
// partially observable environments
package drqn

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

// DRQN implements deep recurrent Q-learning with bootstrapped random
// updates. Sequences of consecutive transitions are sampled from a
// replay buffer and the recurrent network is unrolled over each
// sequence from a zero state. The loss is the mean squared TD error
//
//	(r_t + γ_t * Q_target(h_{t+1}, a') - Q(h_t, a_t))²
//
// over all steps of the sampled sequences which hold a transition and
// are past the burn-in steps. Burn-in steps only warm up the recurrent
// state.
type DRQN struct {
	behaviour *policy.EGreedyRecurrent
	epsilon   *schedule.Schedule

	// Network unrolled over the sampled sequences whose weights are
	// adapted
	trainNet   network.Recurrent
	trainNetVM G.VM
	solver     G.Solver

	// Network unrolled over one more step than trainNet, predicting
	// the action values of the next observation of each transition
	targetNet   network.Recurrent
	targetNetVM G.VM

	double    bool
	nextNet   network.Recurrent
	nextNetVM G.VM

	tau                  float64
	targetUpdateInterval int
	gradientSteps        int
	envSteps             int

	// Input nodes of the graph of trainNet. Targets are computed
	// outside the graph, and weights zero out padded and burn-in steps
	// and average over the remaining ones.
	selectedActions *G.Node
	targets         *G.Node
	weights         *G.Node
	costVal         G.Value

	numActions     int
	sequenceLength int
	batchSize      int
	burnIn         int
	replay         *expreplay.SequenceReplayer

	prevStep     ts.TimeStep
	started      bool
	episodeStart bool

	log logger.Logger
}

// New creates and returns a new DRQN agent
func New(e environment.Environment, c Config, seed uint64,
	log logger.Logger) (*DRQN, error) {
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
	L, B := c.ExpReplay.SequenceLength, c.BatchSize()

	// The behaviour network sees one observation at a time
	net, err := network.NewRecurrent(features, 1, 1, numActions,
		G.NewGraph(), c.EncoderLayers, c.EncoderBiases,
		c.EncoderActivations, c.Cell, c.HiddenSize, c.InitWFn.InitWFn())
	if err != nil {
		return nil, fmt.Errorf("new: could not create behaviour network: %v",
			err)
	}
	behaviour, err := policy.NewEGreedyRecurrent(c.Epsilon.Value(0), net,
		seed)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	targetNet, err := net.CloneWithBatchAndSteps(B, L+1)
	if err != nil {
		return nil, fmt.Errorf("new: could not create target network: %v",
			err)
	}

	var nextNet network.Recurrent
	var nextNetVM G.VM
	if c.Double {
		if nextNet, err = net.CloneWithBatchAndSteps(B, L+1); err != nil {
			return nil, fmt.Errorf("new: could not create next action "+
				"network: %v", err)
		}
		nextNetVM = G.NewTapeMachine(nextNet.Graph())
	}

	trainNet, err := net.CloneWithBatchAndSteps(B, L)
	if err != nil {
		return nil, fmt.Errorf("new: could not create learning network: %v",
			err)
	}
	gTrain := trainNet.Graph()

	selectedActions := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(L*B, numActions), G.WithName("actionSelected"),
		G.WithInit(G.Zeroes()))
	targets := G.NewVector(gTrain, tensor.Float64, G.WithShape(L*B),
		G.WithName("targets"), G.WithInit(G.Zeroes()))
	weights := G.NewVector(gTrain, tensor.Float64, G.WithShape(L*B),
		G.WithName("lossWeights"), G.WithInit(G.Zeroes()))

	selectedActionsValue := G.Must(G.HadamardProd(trainNet.Prediction(),
		selectedActions))
	selectedActionsValue = G.Must(G.Sum(selectedActionsValue, 1))

	losses := G.Must(G.Sub(targets, selectedActionsValue))
	losses = G.Must(G.Square(losses))
	losses = G.Must(G.HadamardProd(losses, weights))
	cost := G.Must(G.Sum(losses))

	d := &DRQN{
		behaviour:            behaviour,
		epsilon:              c.Epsilon,
		trainNet:             trainNet,
		solver:               c.Solver.Reset(),
		targetNet:            targetNet,
		targetNetVM:          G.NewTapeMachine(targetNet.Graph()),
		double:               c.Double,
		nextNet:              nextNet,
		nextNetVM:            nextNetVM,
		tau:                  c.Tau,
		targetUpdateInterval: c.TargetUpdateInterval,
		selectedActions:      selectedActions,
		targets:              targets,
		weights:              weights,
		numActions:           numActions,
		sequenceLength:       L,
		batchSize:            B,
		burnIn:               c.BurnIn,
		log:                  log,
	}
	G.Read(cost, &d.costVal)

	if _, err := G.Grad(cost, trainNet.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: could not compute gradient: %v", err)
	}
	d.trainNetVM = G.NewTapeMachine(gTrain,
		G.BindDualValues(trainNet.Learnables()...))

	d.replay, err = c.ExpReplay.Create(features, seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create experience replay "+
			"buffer: %v", err)
	}

	return d, nil
}

// ObserveFirst observes the first timestep of an episode and resets
// the recurrent state of the behaviour policy
func (d *DRQN) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		d.log.Warn("observeFirst called on non-first timestep",
			"step", t.Number)
	}
	d.behaviour.ResetState()
	d.prevStep = t
	d.started = true
	d.episodeStart = true
	return nil
}

// Observe observes and records any timestep other than the first
// timestep
func (d *DRQN) Observe(action mat.Vector, nextStep ts.TimeStep) error {
	if !d.started {
		return fmt.Errorf("observe: ObserveFirst must be called at the " +
			"start of each episode")
	}
	a := int(action.AtVec(0))
	if action.Len() != 1 || a < 0 || a >= d.numActions {
		return fmt.Errorf("observe: illegal action %v with %v actions",
			mat.Formatted(action.T()), d.numActions)
	}

	index := mat.NewVecDense(1, []float64{float64(a)})
	transition := ts.NewTransition(d.prevStep, index, nextStep, nil)
	if err := d.replay.Add(transition, d.episodeStart); err != nil {
		return fmt.Errorf("observe: could not add to replay buffer: %v", err)
	}
	d.episodeStart = false

	d.prevStep = nextStep
	if !d.behaviour.IsEval() {
		d.envSteps++
		d.behaviour.SetEpsilon(d.epsilon.Value(d.envSteps))
	}
	return nil
}

// Step performs one update on a batch of sampled sequences. No update
// is performed while the replay buffer holds too few transitions.
func (d *DRQN) Step() error {
	batch, err := d.replay.Sample()
	if expreplay.IsNotReady(err) {
		d.log.Debug("skipping update, replay buffer not ready",
			"capacity", d.replay.Capacity())
		return nil
	} else if err != nil {
		return fmt.Errorf("step: could not sample: %v", err)
	}

	nextValues, err := run(d.targetNet, d.targetNetVM, batch.Observations)
	if err != nil {
		return fmt.Errorf("step: target network: %v", err)
	}
	selectFrom := nextValues
	if d.double {
		if err := d.nextNet.Set(d.trainNet); err != nil {
			return fmt.Errorf("step: %v", err)
		}
		selectFrom, err = run(d.nextNet, d.nextNetVM, batch.Observations)
		if err != nil {
			return fmt.Errorf("step: next action network: %v", err)
		}
	}

	targets, weights, oneHot := d.lossInputs(batch, nextValues, selectFrom)
	if weights == nil {
		d.log.Debug("skipping update, no steps past burn in")
		return nil
	}

	lets := []struct {
		node  *G.Node
		value []float64
	}{
		{d.selectedActions, oneHot},
		{d.targets, targets},
		{d.weights, weights},
	}
	for _, l := range lets {
		t := tensor.New(tensor.WithBacking(l.value),
			tensor.WithShape(l.node.Shape()...))
		if err := G.Let(l.node, t); err != nil {
			return fmt.Errorf("step: could not set %v: %v", l.node.Name(), err)
		}
	}

	steps := d.sequenceLength * d.batchSize * batch.FeatureSize
	if err := d.trainNet.SetInput(batch.Observations[:steps]); err != nil {
		return fmt.Errorf("step: could not set trainNet input: %v", err)
	}
	if err := d.trainNet.SetState(d.trainNet.ZeroState()); err != nil {
		return fmt.Errorf("step: %v", err)
	}

	if err := d.trainNetVM.RunAll(); err != nil {
		return fmt.Errorf("step: could not run learning step: %v", err)
	}
	if err := d.solver.Step(d.trainNet.Model()); err != nil {
		return fmt.Errorf("step: could not step solver: %v", err)
	}
	d.trainNetVM.Reset()
	d.gradientSteps++

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

// lossInputs returns the update targets, the loss weight of each step,
// and the one-hot actions taken for a batch of sequences. Step t of
// sequence b bootstraps from row (t+1)*B + b of the next action values.
// Nil weights are returned if no step contributes to the loss.
func (d *DRQN) lossInputs(batch *expreplay.SequenceBatch, nextValues,
	selectFrom []float64) (targets, weights, oneHot []float64) {
	A, B := d.numActions, d.batchSize
	n := d.sequenceLength * B

	targets = make([]float64, n)
	weights = make([]float64, n)
	oneHot = make([]float64, n*A)

	count := 0.0
	for i := 0; i < n; i++ {
		if batch.Mask[i] == 0 || i/B < d.burnIn {
			continue
		}

		next := (i + B) * A
		_, maxIndices := floatutils.MaxSlice(selectFrom[next : next+A])
		targets[i] = batch.Rewards[i] +
			batch.Discounts[i]*nextValues[next+maxIndices[0]]
		oneHot[i*A+int(batch.Actions[i])] = 1.0
		weights[i] = 1.0
		count++
	}

	if count == 0 {
		return nil, nil, nil
	}
	for i := range weights {
		weights[i] /= count
	}
	return targets, weights, oneHot
}

// run runs a recurrent network over a batch of sequences starting from
// a zero state and returns a copy of its output
func run(net network.Recurrent, vm G.VM, input []float64) ([]float64,
	error) {
	if err := net.SetInput(input); err != nil {
		return nil, err
	}
	if err := net.SetState(net.ZeroState()); err != nil {
		return nil, err
	}
	defer vm.Reset()
	if err := vm.RunAll(); err != nil {
		return nil, err
	}
	return append([]float64(nil), net.Output().Data().([]float64)...), nil
}

// Loss returns the masked mean squared TD error of the last update
func (d *DRQN) Loss() float64 {
	if d.costVal == nil {
		return 0
	}
	return d.costVal.Data().(float64)
}

// GradientSteps returns the number of updates performed
func (d *DRQN) GradientSteps() int {
	return d.gradientSteps
}

// SelectAction selects an action given the current timestep, advancing
// the recurrent state of the behaviour policy
func (d *DRQN) SelectAction(t ts.TimeStep) (*mat.VecDense, error) {
	return d.behaviour.SelectAction(t)
}

// Epsilon returns the current ε of the behaviour policy
func (d *DRQN) Epsilon() float64 {
	return d.behaviour.Epsilon()
}

func (d *DRQN) Eval() {
	d.behaviour.Eval()
}

func (d *DRQN) Train() {
	d.behaviour.Train()
}

func (d *DRQN) IsEval() bool {
	return d.behaviour.IsEval()
}

// EndEpisode performs cleanup at the end of an episode
func (d *DRQN) EndEpisode() {
	d.started = false
}

// Save writes the learned network to a file. The network can be
// restored with network.DecodeRecurrent.
func (d *DRQN) Save(filename string) error {
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
func (d *DRQN) Close() error {
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
