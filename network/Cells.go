package network

import (
	"encoding/json"
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// CellType is the type of recurrent cell in a recurrent network
type CellType string

const (
	LSTM CellType = "LSTM"
	GRU  CellType = "GRU"
)

// UnmarshalJSON implements the json.Unmarshaler interface
func (c *CellType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}

	switch CellType(name) {
	case LSTM, GRU:
		*c = CellType(name)
		return nil
	}
	return fmt.Errorf("unmarshalJSON: no such cell type %q", name)
}

// cell is a recurrent cell. A cell's state is a list of nodes, the
// first of which is always the hidden state h output by the cell.
type cell interface {
	// step computes the next state of the cell given an input x
	step(x *G.Node, state []*G.Node) ([]*G.Node, error)

	// stateSize returns the number of state nodes
	stateSize() int

	cloneTo(g *G.ExprGraph) cell
	learnables() G.Nodes
}

// newCell adds the weights of a new recurrent cell to g
func newCell(t CellType, g *G.ExprGraph, in, hidden int,
	init G.InitWFn) (cell, error) {
	switch t {
	case LSTM:
		return newLSTMCell(g, in, hidden, init), nil
	case GRU:
		return newGRUCell(g, in, hidden, init), nil
	}
	return nil, fmt.Errorf("newCell: no such cell type %q", t)
}

// gate holds the weights of a single gate of a recurrent cell, which
// computes act(xW + hU + b)
type gate struct {
	w, u, b *G.Node
	act     *Activation
}

func newGate(g *G.ExprGraph, in, hidden int, init G.InitWFn,
	biasInit G.InitWFn, act *Activation, name string) *gate {
	return &gate{
		w: G.NewMatrix(g, tensor.Float64, G.WithShape(in, hidden),
			G.WithName(name+"W"), G.WithInit(init)),
		u: G.NewMatrix(g, tensor.Float64, G.WithShape(hidden, hidden),
			G.WithName(name+"U"), G.WithInit(init)),
		b: G.NewMatrix(g, tensor.Float64, G.WithShape(1, hidden),
			G.WithName(name+"B"), G.WithInit(biasInit)),
		act: act,
	}
}

func (gt *gate) fwd(x, h *G.Node) (*G.Node, error) {
	xw, err := G.Mul(x, gt.w)
	if err != nil {
		return nil, err
	}
	hu, err := G.Mul(h, gt.u)
	if err != nil {
		return nil, err
	}
	sum, err := G.Add(xw, hu)
	if err != nil {
		return nil, err
	}
	sum, err = G.BroadcastAdd(sum, gt.b, nil, []byte{0})
	if err != nil {
		return nil, err
	}
	return gt.act.fwd(sum)
}

func (gt *gate) cloneTo(g *G.ExprGraph) *gate {
	return &gate{
		w:   gt.w.CloneTo(g),
		u:   gt.u.CloneTo(g),
		b:   gt.b.CloneTo(g),
		act: gt.act,
	}
}

func (gt *gate) learnables() G.Nodes {
	return G.Nodes{gt.w, gt.u, gt.b}
}

// lstmCell is a long short-term memory cell with state (h, c):
//
//	i = σ(xWi + hUi + bi)
//	f = σ(xWf + hUf + bf)
//	o = σ(xWo + hUo + bo)
//	g = tanh(xWg + hUg + bg)
//	c' = f⊙c + i⊙g
//	h' = o⊙tanh(c')
//
// Forget gate biases start at 1.
type lstmCell struct {
	input, forget, output, candidate *gate
}

func newLSTMCell(g *G.ExprGraph, in, hidden int, init G.InitWFn) *lstmCell {
	return &lstmCell{
		input:     newGate(g, in, hidden, init, G.Zeroes(), Sigmoid(), "lstmI"),
		forget:    newGate(g, in, hidden, init, G.Ones(), Sigmoid(), "lstmF"),
		output:    newGate(g, in, hidden, init, G.Zeroes(), Sigmoid(), "lstmO"),
		candidate: newGate(g, in, hidden, init, G.Zeroes(), TanH(), "lstmG"),
	}
}

func (l *lstmCell) step(x *G.Node, state []*G.Node) ([]*G.Node, error) {
	h, c := state[0], state[1]

	i, err := l.input.fwd(x, h)
	if err != nil {
		return nil, fmt.Errorf("step: input gate: %v", err)
	}
	f, err := l.forget.fwd(x, h)
	if err != nil {
		return nil, fmt.Errorf("step: forget gate: %v", err)
	}
	o, err := l.output.fwd(x, h)
	if err != nil {
		return nil, fmt.Errorf("step: output gate: %v", err)
	}
	g, err := l.candidate.fwd(x, h)
	if err != nil {
		return nil, fmt.Errorf("step: candidate: %v", err)
	}

	nextC := G.Must(G.Add(
		G.Must(G.HadamardProd(f, c)),
		G.Must(G.HadamardProd(i, g)),
	))
	nextH := G.Must(G.HadamardProd(o, G.Must(G.Tanh(nextC))))

	return []*G.Node{nextH, nextC}, nil
}

func (l *lstmCell) stateSize() int {
	return 2
}

func (l *lstmCell) cloneTo(g *G.ExprGraph) cell {
	return &lstmCell{
		input:     l.input.cloneTo(g),
		forget:    l.forget.cloneTo(g),
		output:    l.output.cloneTo(g),
		candidate: l.candidate.cloneTo(g),
	}
}

func (l *lstmCell) learnables() G.Nodes {
	var nodes G.Nodes
	for _, gt := range []*gate{l.input, l.forget, l.output, l.candidate} {
		nodes = append(nodes, gt.learnables()...)
	}
	return nodes
}

// gruCell is a gated recurrent unit with state h:
//
//	z = σ(xWz + hUz + bz)
//	r = σ(xWr + hUr + br)
//	n = tanh(xWn + (r⊙h)Un + bn)
//	h' = n + z⊙(h - n)
type gruCell struct {
	update, reset, candidate *gate
}

func newGRUCell(g *G.ExprGraph, in, hidden int, init G.InitWFn) *gruCell {
	return &gruCell{
		update:    newGate(g, in, hidden, init, G.Zeroes(), Sigmoid(), "gruZ"),
		reset:     newGate(g, in, hidden, init, G.Zeroes(), Sigmoid(), "gruR"),
		candidate: newGate(g, in, hidden, init, G.Zeroes(), TanH(), "gruN"),
	}
}

func (gr *gruCell) step(x *G.Node, state []*G.Node) ([]*G.Node, error) {
	h := state[0]

	z, err := gr.update.fwd(x, h)
	if err != nil {
		return nil, fmt.Errorf("step: update gate: %v", err)
	}
	r, err := gr.reset.fwd(x, h)
	if err != nil {
		return nil, fmt.Errorf("step: reset gate: %v", err)
	}
	n, err := gr.candidate.fwd(x, G.Must(G.HadamardProd(r, h)))
	if err != nil {
		return nil, fmt.Errorf("step: candidate: %v", err)
	}

	nextH := G.Must(G.Add(n, G.Must(G.HadamardProd(z, G.Must(G.Sub(h, n))))))
	return []*G.Node{nextH}, nil
}

func (gr *gruCell) stateSize() int {
	return 1
}

func (gr *gruCell) cloneTo(g *G.ExprGraph) cell {
	return &gruCell{
		update:    gr.update.cloneTo(g),
		reset:     gr.reset.cloneTo(g),
		candidate: gr.candidate.cloneTo(g),
	}
}

func (gr *gruCell) learnables() G.Nodes {
	var nodes G.Nodes
	for _, gt := range []*gate{gr.update, gr.reset, gr.candidate} {
		nodes = append(nodes, gt.learnables()...)
	}
	return nodes
}
