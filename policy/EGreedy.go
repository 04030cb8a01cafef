// Package policy implements ε-greedy policies over the action values
// predicted by neural networks
package policy

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/qnet/utils/floatutils"
)

// EGreedy selects actions ε-greedily from a list of action values.
// With probability ε it selects an action uniformly at random, and
// otherwise it selects an action of maximum value, breaking ties
// uniformly at random.
type EGreedy struct {
	epsilon float64
	rng     *rand.Rand
}

// NewEGreedy returns a new EGreedy action selector
func NewEGreedy(epsilon float64, seed uint64) (*EGreedy, error) {
	if epsilon < 0 || epsilon > 1 {
		return nil, fmt.Errorf("newEGreedy: epsilon must be in [0, 1] "+
			"but got %v", epsilon)
	}
	return &EGreedy{
		epsilon: epsilon,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// SetEpsilon sets the value for epsilon in the epsilon greedy policy.
func (e *EGreedy) SetEpsilon(ε float64) {
	e.epsilon = floatutils.Clip(ε, 0, 1)
}

// Epsilon gets the value of epsilon for the policy.
func (e *EGreedy) Epsilon() float64 {
	return e.epsilon
}

// Choose selects an action given the value of each action. If greedy
// is true, the action is selected as though ε were 0.
func (e *EGreedy) Choose(actionValues []float64, greedy bool) int {
	if !greedy && e.rng.Float64() < e.epsilon {
		return e.rng.Intn(len(actionValues))
	}

	_, maxIndices := floatutils.MaxSlice(actionValues)
	return maxIndices[e.rng.Intn(len(maxIndices))]
}
