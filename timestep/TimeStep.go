// Package timestep implements timesteps of the agent-environment interaction
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes the type of step that a TimeStep can be, either the
// first environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// EndType describes why an episode ended. Only the last TimeStep of an
// episode should have an EndType other than Unknown.
type EndType int

const (
	// Unknown is the EndType of any TimeStep that did not end an episode
	Unknown EndType = iota

	// TerminalStateReached means the environment reached a true terminal
	// state, so no return follows the last step
	TerminalStateReached

	// Timeout means the episode was cut off by a step limit. The
	// underlying process did not terminate, so learners should still
	// bootstrap from the next state.
	Timeout
)

func (e EndType) String() string {
	switch e {
	case TerminalStateReached:
		return "TerminalStateReached"
	case Timeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// TimeStep packages together a single timestep in an environment
type TimeStep struct {
	StepType    StepType
	Reward      float64
	Discount    float64
	Observation *mat.VecDense
	Number      int
	endType     EndType
}

// New returns a new TimeStep with an EndType of Unknown
func New(t StepType, r, d float64, o *mat.VecDense, n int) TimeStep {
	return TimeStep{
		StepType:    t,
		Reward:      r,
		Discount:    d,
		Observation: o,
		Number:      n,
		endType:     Unknown,
	}
}

// First returns whether a TimeStep is the first in an environment
func (t *TimeStep) First() bool {
	return t.StepType == First
}

// Mid returns whether a TimeStep is a middle step in an environment
func (t *TimeStep) Mid() bool {
	return t.StepType == Mid
}

// Last returns whether a TimeStep is the last step in an environment
func (t *TimeStep) Last() bool {
	return t.StepType == Last
}

// SetEnd sets the EndType of the TimeStep. Setting an end on a TimeStep
// that is not Last panics.
func (t *TimeStep) SetEnd(e EndType) {
	if t.StepType != Last && e != Unknown {
		panic(fmt.Sprintf("setEnd: cannot set end type %v on %v step",
			e, t.StepType))
	}
	t.endType = e
}

// EndType returns the reason the episode ended at this TimeStep
func (t *TimeStep) EndType() EndType {
	return t.endType
}

// Terminal returns whether the TimeStep is a true terminal state
func (t *TimeStep) Terminal() bool {
	return t.Last() && t.endType == TerminalStateReached
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Discount: %.2f  |  " +
		"Step Number:  %v  |  End: %v"

	return fmt.Sprintf(str, t.StepType, t.Reward, t.Discount, t.Number,
		t.endType)
}
