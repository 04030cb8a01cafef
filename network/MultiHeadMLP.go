package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// multiHeadMLP implements a multi-layered perceptron with multiple
// output nodes, one for each value that should be predicted, such as
// the action values of each discrete action.
type multiHeadMLP struct {
	g          *G.ExprGraph
	layers     []Layer
	input      *G.Node
	numOutputs int
	numInputs  int
	batchSize  int

	// Data needed for gobbing, excluding the final linear layer
	hiddenSizes []int
	biases      []bool
	activations []*Activation

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewMultiHeadMLP creates and returns a new multi-layered perceptron
// that has multiple output nodes, The number of outputs nodes is equal
// to outputs. The graph parameter g is populated with the MLP.
//
// The MLP has number of layers equal to len(hiddenSizes) + 1. A final
// linear layer with a bias unit is always added so that the network
// predicts outputs values for each input. For index i, hiddenSizes[i]
// is the number of nodes in hidden layer i; biases[i] is true if the
// hidden layer will contain a bias unit and false otherwise; and
// activations[i] is the activation function for hidden layer i. The
// parameter init determines the weight initialization scheme.
func NewMultiHeadMLP(features, batch, outputs int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation) (NeuralNet, error) {
	if err := validateLayers(hiddenSizes, biases, activations); err != nil {
		return nil, fmt.Errorf("newMultiHeadMLP: %v", err)
	}
	if features <= 0 || batch <= 0 || outputs <= 0 {
		return nil, fmt.Errorf("newMultiHeadMLP: features (%v), batch (%v), "+
			"and outputs (%v) must be positive", features, batch, outputs)
	}

	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName("input"), G.WithInit(G.Zeroes()))

	sizes := append(append([]int{}, hiddenSizes...), outputs)
	layerBiases := append(append([]bool{}, biases...), true)
	layerActs := append(append([]*Activation{}, activations...), Identity())

	network := &multiHeadMLP{
		g:           g,
		layers:      addfcLayers(g, features, sizes, layerBiases, layerActs, init, ""),
		input:       input,
		numOutputs:  outputs,
		numInputs:   features,
		batchSize:   batch,
		hiddenSizes: hiddenSizes,
		biases:      biases,
		activations: activations,
	}

	if _, err := network.fwd(input); err != nil {
		return nil, fmt.Errorf("newMultiHeadMLP: could not compute forward "+
			"pass: %v", err)
	}
	return network, nil
}

// Graph returns the computational graph of the multiHeadMLP.
func (e *multiHeadMLP) Graph() *G.ExprGraph {
	return e.g
}

// Clone clones a multiHeadMLP
func (e *multiHeadMLP) Clone() (NeuralNet, error) {
	return e.CloneWithBatch(e.batchSize)
}

// CloneWithBatch clones a multiHeadMLP to a new graph with a new input
// batch size. The weights of the clone start equal to the weights of
// the original.
func (e *multiHeadMLP) CloneWithBatch(batchSize int) (NeuralNet, error) {
	graph := G.NewGraph()

	input := G.NewMatrix(
		graph,
		tensor.Float64,
		G.WithShape(batchSize, e.numInputs),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)

	layers := make([]Layer, len(e.layers))
	for i := range e.layers {
		layers[i] = e.layers[i].CloneTo(graph)
	}

	network := &multiHeadMLP{
		g:           graph,
		layers:      layers,
		input:       input,
		numOutputs:  e.numOutputs,
		numInputs:   e.numInputs,
		batchSize:   batchSize,
		hiddenSizes: e.hiddenSizes,
		biases:      e.biases,
		activations: e.activations,
	}
	if _, err := network.fwd(input); err != nil {
		return nil, fmt.Errorf("cloneWithBatch: could not clone: %v", err)
	}

	return network, nil
}

// BatchSize returns the batch size of inputs to the network
func (e *multiHeadMLP) BatchSize() int {
	return e.batchSize
}

// Features returns the number of features in a single observation
// vector that the network takes as input.
func (e *multiHeadMLP) Features() int {
	return e.numInputs
}

// Outputs returns the number of outputs from the network
func (e *multiHeadMLP) Outputs() int {
	return e.numOutputs
}

// SetInput sets the value of the input node before running the forward
// pass.
func (e *multiHeadMLP) SetInput(input []float64) error {
	if err := letMatrix(e.input, input); err != nil {
		return fmt.Errorf("setInput: %v", err)
	}
	return nil
}

// Set sets the weights of a multiHeadMLP to be equal to the
// weights of another multiHeadMLP
func (e *multiHeadMLP) Set(source NeuralNet) error {
	return set(e, source)
}

// Polyak sets the weights of a multiHeadMLP to be a polyak
// average between its existing weights and the weights of another
// multiHeadMLP
func (e *multiHeadMLP) Polyak(source NeuralNet, tau float64) error {
	return polyak(e, source, tau)
}

// Learnables returns the learnable nodes in a multiHeadMLP
func (e *multiHeadMLP) Learnables() G.Nodes {
	if e.learnables == nil {
		e.learnables = layerLearnables(e.layers)
	}
	return e.learnables
}

// Model returns the learnables nodes with their gradients.
func (e *multiHeadMLP) Model() []G.ValueGrad {
	if e.model == nil {
		e.model = model(e.Learnables())
	}
	return e.model
}

// fwd performs the forward pass of the multiHeadMLP on the input
// node
func (e *multiHeadMLP) fwd(input *G.Node) (*G.Node, error) {
	if features := input.Shape()[1]; features != e.numInputs {
		return nil, fmt.Errorf("fwd: invalid shape for input to neural net:"+
			" \n\twant(%v) \n\thave(%v)", e.numInputs, features)
	}

	pred := input
	var err error
	for i, l := range e.layers {
		if pred, err = l.fwd(pred); err != nil {
			return nil, fmt.Errorf("fwd: could not compute forward pass of "+
				"layer %v: %v", i, err)
		}
	}

	e.prediction = pred
	G.Read(e.prediction, &e.predVal)

	return pred, nil
}

// Output returns the output of the multiHeadMLP, a batch of outputs
// for each input.
func (e *multiHeadMLP) Output() G.Value {
	return e.predVal
}

// Prediction returns the node of the computational graph the stores
// the output of the multiHeadMLP
func (e *multiHeadMLP) Prediction() *G.Node {
	return e.prediction
}

// mlpGob is the gob encoding of a multiHeadMLP
type mlpGob struct {
	Features    int
	Outputs     int
	BatchSize   int
	HiddenSizes []int
	Biases      []bool
	Activations []*Activation
	Weights     [][]float64
}

// GobEncode implements the gob.GobEncoder interface
func (e *multiHeadMLP) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(mlpGob{
		Features:    e.numInputs,
		Outputs:     e.numOutputs,
		BatchSize:   e.batchSize,
		HiddenSizes: e.hiddenSizes,
		Biases:      e.biases,
		Activations: e.activations,
		Weights:     weightValues(e.Learnables()),
	})
	if err != nil {
		return nil, fmt.Errorf("gobEncode: %v", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The decoded
// network is placed in a new computational graph.
func (e *multiHeadMLP) GobDecode(in []byte) error {
	mlp, err := decodeMLP(in)
	if err != nil {
		return err
	}

	*e = *mlp
	// The prediction read op of the new graph points at mlp.predVal
	G.Read(e.prediction, &e.predVal)
	return nil
}

func decodeMLP(in []byte) (*multiHeadMLP, error) {
	var decoded mlpGob
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("gobDecode: %v", err)
	}

	net, err := NewMultiHeadMLP(decoded.Features, decoded.BatchSize,
		decoded.Outputs, G.NewGraph(), decoded.HiddenSizes, decoded.Biases,
		G.Zeroes(), decoded.Activations)
	if err != nil {
		return nil, fmt.Errorf("gobDecode: could not construct new MLP: %v",
			err)
	}

	mlp := net.(*multiHeadMLP)
	if err := setWeightValues(mlp.Learnables(), decoded.Weights); err != nil {
		return nil, fmt.Errorf("gobDecode: %v", err)
	}
	return mlp, nil
}

// DecodeMLP decodes a gob-encoded MLP
func DecodeMLP(data []byte) (NeuralNet, error) {
	mlp, err := decodeMLP(data)
	if err != nil {
		return nil, err
	}
	return mlp, nil
}
