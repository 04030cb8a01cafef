package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// State is the recurrent state of a batch of inputs. H is the hidden
// state, and C the cell state of an LSTM, which is nil for a GRU.
// Both are laid out as (batch, hidden size) matrices.
type State struct {
	H []float64
	C []float64
}

// Recurrent is a recurrent neural network unrolled over a fixed number
// of time steps
type Recurrent interface {
	NeuralNet

	// Steps returns the number of time steps the network is unrolled
	// over
	Steps() int

	HiddenSize() int
	CellType() CellType

	// CloneWithBatchAndSteps clones the network into a new graph with
	// a new batch size and number of time steps
	CloneWithBatchAndSteps(batch, steps int) (Recurrent, error)

	// SetState sets the state the network starts from
	SetState(State) error

	// State returns the state of the network after its last time step,
	// once a VM has run
	State() State

	// ZeroState returns an all-zero State for the network
	ZeroState() State
}

// recurrent is a recurrent network which encodes each input with a
// fully connected encoder, passes the encoding through a recurrent
// cell, and predicts outputs from the hidden state with a final linear
// layer. All weights are shared over time steps.
//
// Inputs are given time-major: the input for batch element b at time
// t is at row t*batch + b, and the prediction is laid out the same
// way with one row of outputs per (time, batch element).
type recurrent struct {
	g *G.ExprGraph

	inputs []*G.Node
	state  []*G.Node

	encoder []Layer
	cell    cell
	head    Layer

	numInputs  int
	numOutputs int
	batchSize  int
	steps      int
	hiddenSize int
	cellType   CellType

	// Data needed for gobbing
	encoderSizes       []int
	encoderBiases      []bool
	encoderActivations []*Activation

	learnables G.Nodes
	model      []G.ValueGrad

	stepPredictions []*G.Node
	prediction      *G.Node
	predVal         G.Value
	finalState      []G.Value
}

// NewRecurrent returns a new recurrent network in graph g taking
// inputs with the given number of features and predicting outputs
// values at each of steps time steps for each of batch inputs.
//
// Before the recurrent cell, inputs pass through len(encoderSizes)
// fully connected layers, where layer i has encoderSizes[i] units, a
// bias unit if encoderBiases[i], and activation encoderActivations[i].
// The recurrent cell has hiddenSize units, and init initializes all
// weights except biases.
func NewRecurrent(features, batch, steps, outputs int, g *G.ExprGraph,
	encoderSizes []int, encoderBiases []bool,
	encoderActivations []*Activation, cellType CellType, hiddenSize int,
	init G.InitWFn) (Recurrent, error) {
	err := validateLayers(encoderSizes, encoderBiases, encoderActivations)
	if err != nil {
		return nil, fmt.Errorf("newRecurrent: %v", err)
	}
	if features <= 0 || batch <= 0 || steps <= 0 || outputs <= 0 ||
		hiddenSize <= 0 {
		return nil, fmt.Errorf("newRecurrent: features (%v), batch (%v), "+
			"steps (%v), outputs (%v), and hidden size (%v) must be positive",
			features, batch, steps, outputs, hiddenSize)
	}

	encoder := addfcLayers(g, features, encoderSizes, encoderBiases,
		encoderActivations, init, "enc")

	cellInputs := features
	if len(encoderSizes) > 0 {
		cellInputs = encoderSizes[len(encoderSizes)-1]
	}
	c, err := newCell(cellType, g, cellInputs, hiddenSize, init)
	if err != nil {
		return nil, fmt.Errorf("newRecurrent: %v", err)
	}

	head := newfcLayer(g, hiddenSize, outputs, true, Identity(), init, "head")

	r := &recurrent{
		g:                  g,
		encoder:            encoder,
		cell:               c,
		head:               head,
		numInputs:          features,
		numOutputs:         outputs,
		batchSize:          batch,
		steps:              steps,
		hiddenSize:         hiddenSize,
		cellType:           cellType,
		encoderSizes:       encoderSizes,
		encoderBiases:      encoderBiases,
		encoderActivations: encoderActivations,
	}

	if err := r.unroll(); err != nil {
		return nil, fmt.Errorf("newRecurrent: %v", err)
	}
	return r, nil
}

// unroll adds the input and state nodes to the graph and computes the
// forward pass over all time steps
func (r *recurrent) unroll() error {
	r.inputs = make([]*G.Node, r.steps)
	for t := range r.inputs {
		r.inputs[t] = G.NewMatrix(
			r.g,
			tensor.Float64,
			G.WithShape(r.batchSize, r.numInputs),
			G.WithName(fmt.Sprintf("input%d", t)),
			G.WithInit(G.Zeroes()),
		)
	}

	r.state = make([]*G.Node, r.cell.stateSize())
	for i := range r.state {
		r.state[i] = G.NewMatrix(
			r.g,
			tensor.Float64,
			G.WithShape(r.batchSize, r.hiddenSize),
			G.WithName(fmt.Sprintf("state%d", i)),
			G.WithInit(G.Zeroes()),
		)
	}

	state := r.state
	r.stepPredictions = make([]*G.Node, r.steps)
	for t, x := range r.inputs {
		var err error
		for i, l := range r.encoder {
			if x, err = l.fwd(x); err != nil {
				return fmt.Errorf("unroll: encoder layer %v at step %v: %v",
					i, t, err)
			}
		}

		if state, err = r.cell.step(x, state); err != nil {
			return fmt.Errorf("unroll: step %v: %v", t, err)
		}

		if r.stepPredictions[t], err = r.head.fwd(state[0]); err != nil {
			return fmt.Errorf("unroll: output at step %v: %v", t, err)
		}
	}

	if r.steps > 1 {
		r.prediction = G.Must(G.Concat(0, r.stepPredictions...))
	} else {
		r.prediction = r.stepPredictions[0]
	}
	G.Read(r.prediction, &r.predVal)

	r.finalState = make([]G.Value, len(state))
	for i := range state {
		G.Read(state[i], &r.finalState[i])
	}
	return nil
}

// Graph returns the computational graph of the network
func (r *recurrent) Graph() *G.ExprGraph {
	return r.g
}

// Clone clones the network to a new graph
func (r *recurrent) Clone() (NeuralNet, error) {
	return r.CloneWithBatchAndSteps(r.batchSize, r.steps)
}

// CloneWithBatch clones the network to a new graph with a new batch
// size
func (r *recurrent) CloneWithBatch(batch int) (NeuralNet, error) {
	return r.CloneWithBatchAndSteps(batch, r.steps)
}

// CloneWithBatchAndSteps clones the network to a new graph with a new
// batch size and number of time steps. The weights of the clone start
// equal to the weights of the original.
func (r *recurrent) CloneWithBatchAndSteps(batch, steps int) (Recurrent,
	error) {
	if batch <= 0 || steps <= 0 {
		return nil, fmt.Errorf("cloneWithBatchAndSteps: batch (%v) and "+
			"steps (%v) must be positive", batch, steps)
	}

	g := G.NewGraph()
	encoder := make([]Layer, len(r.encoder))
	for i := range r.encoder {
		encoder[i] = r.encoder[i].CloneTo(g)
	}

	clone := &recurrent{
		g:                  g,
		encoder:            encoder,
		cell:               r.cell.cloneTo(g),
		head:               r.head.CloneTo(g),
		numInputs:          r.numInputs,
		numOutputs:         r.numOutputs,
		batchSize:          batch,
		steps:              steps,
		hiddenSize:         r.hiddenSize,
		cellType:           r.cellType,
		encoderSizes:       r.encoderSizes,
		encoderBiases:      r.encoderBiases,
		encoderActivations: r.encoderActivations,
	}

	if err := clone.unroll(); err != nil {
		return nil, fmt.Errorf("cloneWithBatchAndSteps: %v", err)
	}
	return clone, nil
}

// SetInput sets the inputs at all time steps, given time-major
func (r *recurrent) SetInput(input []float64) error {
	size := r.batchSize * r.numInputs
	if len(input) != size*r.steps {
		return fmt.Errorf("setInput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", size*r.steps, len(input))
	}

	for t, node := range r.inputs {
		// Each step gets its own backing slice so that inputs are not
		// aliased by the VM
		step := append([]float64(nil), input[t*size:(t+1)*size]...)
		if err := letMatrix(node, step); err != nil {
			return fmt.Errorf("setInput: step %v: %v", t, err)
		}
	}
	return nil
}

// SetState sets the state that the network starts from
func (r *recurrent) SetState(s State) error {
	values := [][]float64{s.H, s.C}
	for i, node := range r.state {
		if err := letMatrix(node, append([]float64(nil), values[i]...)); err != nil {
			return fmt.Errorf("setState: %v", err)
		}
	}
	return nil
}

// State returns the state of the network after its last time step
func (r *recurrent) State() State {
	var s State
	for i, v := range r.finalState {
		var data []float64
		if v != nil {
			data = append(data, v.Data().([]float64)...)
		} else {
			data = make([]float64, r.batchSize*r.hiddenSize)
		}

		if i == 0 {
			s.H = data
		} else {
			s.C = data
		}
	}
	return s
}

// ZeroState returns a State of all zeros
func (r *recurrent) ZeroState() State {
	s := State{H: make([]float64, r.batchSize*r.hiddenSize)}
	if r.cell.stateSize() > 1 {
		s.C = make([]float64, r.batchSize*r.hiddenSize)
	}
	return s
}

// Set sets the weights of the network to those of source
func (r *recurrent) Set(source NeuralNet) error {
	return set(r, source)
}

// Polyak sets the weights of the network to a Polyak average of its
// weights and those of source
func (r *recurrent) Polyak(source NeuralNet, tau float64) error {
	return polyak(r, source, tau)
}

// Learnables returns the learnable nodes of the network
func (r *recurrent) Learnables() G.Nodes {
	if r.learnables == nil {
		learnables := layerLearnables(r.encoder)
		learnables = append(learnables, r.cell.learnables()...)
		learnables = append(learnables, layerLearnables([]Layer{r.head})...)
		r.learnables = learnables
	}
	return r.learnables
}

// Model returns the learnables nodes with their gradients.
func (r *recurrent) Model() []G.ValueGrad {
	if r.model == nil {
		r.model = model(r.Learnables())
	}
	return r.model
}

// Output returns the predictions of the network at all time steps
func (r *recurrent) Output() G.Value {
	return r.predVal
}

// Prediction returns the node holding the predictions at all time
// steps, a (steps*batch, outputs) matrix
func (r *recurrent) Prediction() *G.Node {
	return r.prediction
}

// StepPrediction returns the node holding the prediction at time step
// t, a (batch, outputs) matrix
func (r *recurrent) StepPrediction(t int) *G.Node {
	return r.stepPredictions[t]
}

// BatchSize returns the batch size of inputs at each time step
func (r *recurrent) BatchSize() int {
	return r.batchSize
}

// Features returns the number of features in a single input
func (r *recurrent) Features() int {
	return r.numInputs
}

// Outputs returns the number of outputs predicted for each input
func (r *recurrent) Outputs() int {
	return r.numOutputs
}

// Steps returns the number of time steps the network is unrolled over
func (r *recurrent) Steps() int {
	return r.steps
}

// HiddenSize returns the number of units in the recurrent cell
func (r *recurrent) HiddenSize() int {
	return r.hiddenSize
}

// CellType returns the type of recurrent cell
func (r *recurrent) CellType() CellType {
	return r.cellType
}

// recurrentGob is the gob encoding of a recurrent network
type recurrentGob struct {
	Features           int
	Outputs            int
	BatchSize          int
	Steps              int
	HiddenSize         int
	CellType           CellType
	EncoderSizes       []int
	EncoderBiases      []bool
	EncoderActivations []*Activation
	Weights            [][]float64
}

// GobEncode implements the gob.GobEncoder interface
func (r *recurrent) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(recurrentGob{
		Features:           r.numInputs,
		Outputs:            r.numOutputs,
		BatchSize:          r.batchSize,
		Steps:              r.steps,
		HiddenSize:         r.hiddenSize,
		CellType:           r.cellType,
		EncoderSizes:       r.encoderSizes,
		EncoderBiases:      r.encoderBiases,
		EncoderActivations: r.encoderActivations,
		Weights:            weightValues(r.Learnables()),
	})
	if err != nil {
		return nil, fmt.Errorf("gobEncode: %v", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The decoded
// network is placed in a new computational graph.
func (r *recurrent) GobDecode(in []byte) error {
	rec, err := decodeRecurrent(in)
	if err != nil {
		return err
	}

	*r = *rec
	// The prediction read op of the new graph points at rec.predVal.
	// finalState shares its backing array with rec and needs no new read.
	G.Read(r.prediction, &r.predVal)
	return nil
}

func decodeRecurrent(in []byte) (*recurrent, error) {
	var decoded recurrentGob
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("gobDecode: %v", err)
	}

	net, err := NewRecurrent(decoded.Features, decoded.BatchSize,
		decoded.Steps, decoded.Outputs, G.NewGraph(), decoded.EncoderSizes,
		decoded.EncoderBiases, decoded.EncoderActivations, decoded.CellType,
		decoded.HiddenSize, G.Zeroes())
	if err != nil {
		return nil, fmt.Errorf("gobDecode: could not construct network: %v",
			err)
	}

	rec := net.(*recurrent)
	if err := setWeightValues(rec.Learnables(), decoded.Weights); err != nil {
		return nil, fmt.Errorf("gobDecode: %v", err)
	}
	return rec, nil
}

// DecodeRecurrent decodes a gob-encoded recurrent network
func DecodeRecurrent(data []byte) (Recurrent, error) {
	rec, err := decodeRecurrent(data)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
