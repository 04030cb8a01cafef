// Package network implements neural networks as gorgonia computational
// graphs. Networks own their input nodes and learnable weights, so
// that agents only need to set inputs, run a VM on the network's graph,
// and read the network's output.
package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// NeuralNet is a neural network in a gorgonia computational graph
type NeuralNet interface {
	// Graph returns the computational graph the network is in
	Graph() *G.ExprGraph

	// Clone clones the network into a new computational graph
	Clone() (NeuralNet, error)

	// CloneWithBatch clones the network into a new computational graph
	// with a new input batch size
	CloneWithBatch(int) (NeuralNet, error)

	BatchSize() int
	Features() int
	Outputs() int

	// SetInput sets the value of the input node(s) before running the
	// forward pass
	SetInput([]float64) error

	// Set sets the weights of the network to the weights of another
	// network with the same architecture
	Set(NeuralNet) error

	// Polyak moves the weights of the network towards the weights of
	// another network: w <- (1 - tau) * w + tau * w'
	Polyak(NeuralNet, float64) error

	Learnables() G.Nodes
	Model() []G.ValueGrad

	// Output returns the value of the prediction after a VM has run
	Output() G.Value

	// Prediction returns the node holding the network's prediction
	Prediction() *G.Node
}

// set sets the learnable weights of dest to those of source
func set(dest, source NeuralNet) error {
	sourceNodes := source.Learnables()
	nodes := dest.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("set: cannot set %v weights from %v weights",
			len(nodes), len(sourceNodes))
	}

	for i, destLearnable := range nodes {
		sourceLearnable := sourceNodes[i].Clone().(*G.Node)
		if err := G.Let(destLearnable, sourceLearnable.Value()); err != nil {
			return fmt.Errorf("set: could not set weights %v: %v",
				destLearnable.Name(), err)
		}
	}
	return nil
}

// polyak sets the learnable weights of dest to a Polyak average of
// the weights of dest and source
func polyak(dest, source NeuralNet, tau float64) error {
	if tau < 0 || tau > 1 {
		return fmt.Errorf("polyak: tau must be in [0, 1] but got %v", tau)
	}

	sourceNodes := source.Learnables()
	nodes := dest.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("polyak: cannot average %v weights with %v weights",
			len(nodes), len(sourceNodes))
	}

	for i := range nodes {
		weights := nodes[i].Value().(*tensor.Dense)
		sourceWeights := sourceNodes[i].Value().(*tensor.Dense)

		weights, err := weights.MulScalar(1-tau, true)
		if err != nil {
			return err
		}

		sourceWeights, err = sourceWeights.MulScalar(tau, true)
		if err != nil {
			return err
		}

		newWeights, err := weights.Add(sourceWeights)
		if err != nil {
			return err
		}

		if err := G.Let(nodes[i], newWeights); err != nil {
			return err
		}
	}
	return nil
}

// model returns learnables as gradient-carrying values for a solver
func model(learnables G.Nodes) []G.ValueGrad {
	m := make([]G.ValueGrad, len(learnables))
	for i, node := range learnables {
		m[i] = node
	}
	return m
}

// weightValues copies the values of all learnable nodes
func weightValues(learnables G.Nodes) [][]float64 {
	values := make([][]float64, len(learnables))
	for i, node := range learnables {
		data := node.Value().Data().([]float64)
		values[i] = append([]float64(nil), data...)
	}
	return values
}

// setWeightValues sets the values of learnable nodes
func setWeightValues(learnables G.Nodes, values [][]float64) error {
	if len(values) != len(learnables) {
		return fmt.Errorf("setWeightValues: want %v weights but got %v",
			len(learnables), len(values))
	}

	for i, node := range learnables {
		if len(values[i]) != node.Shape().TotalSize() {
			return fmt.Errorf("setWeightValues: %v has %v weights but got "+
				"%v", node.Name(), node.Shape().TotalSize(), len(values[i]))
		}
		t := tensor.New(
			tensor.WithBacking(values[i]),
			tensor.WithShape(node.Shape()...),
		)
		if err := G.Let(node, t); err != nil {
			return err
		}
	}
	return nil
}

// letMatrix sets the value of a matrix node to data
func letMatrix(node *G.Node, data []float64) error {
	if len(data) != node.Shape().TotalSize() {
		return fmt.Errorf("invalid number of inputs\n\twant(%v)\n\thave(%v)",
			node.Shape().TotalSize(), len(data))
	}
	t := tensor.New(
		tensor.WithBacking(data),
		tensor.WithShape(node.Shape()...),
	)
	return G.Let(node, t)
}
