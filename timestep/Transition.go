package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transition is a single (s, a, r, γ, s', a') tuple. NextAction is
// only filled in for on-policy learners and is nil otherwise.
type Transition struct {
	State      *mat.VecDense
	Action     *mat.VecDense
	Reward     float64
	Discount   float64
	NextState  *mat.VecDense
	NextAction *mat.VecDense
}

// NewTransition creates a transition from the step taken from state t
// with action a, leading to next. If next is a terminal state, the
// discount of the transition is 0 so that no value is bootstrapped
// past it. Episodes cut off by a Timeout keep the environmental
// discount.
func NewTransition(t TimeStep, a *mat.VecDense, next TimeStep,
	nextAction *mat.VecDense) Transition {
	discount := next.Discount
	if next.Terminal() {
		discount = 0.0
	}

	return Transition{
		State:      t.Observation,
		Action:     a,
		Reward:     next.Reward,
		Discount:   discount,
		NextState:  next.Observation,
		NextAction: nextAction,
	}
}

func (t Transition) String() string {
	return fmt.Sprintf("Transition | S: %v  |  A: %v  |  R: %.2f  |  "+
		"γ: %.2f  |  S': %v", mat.Formatted(t.State.T()),
		mat.Formatted(t.Action.T()), t.Reward, t.Discount,
		mat.Formatted(t.NextState.T()))
}
