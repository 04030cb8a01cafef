// Package tmaze implements the T-maze memory task, a partially
// observable corridor whose goal is only revealed at the first step
package tmaze

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	env "github.com/samuelfneumann/qnet/environment"
	ts "github.com/samuelfneumann/qnet/timestep"
)

const (
	ObservationDims int = 3
	StateDims       int = 3
	ActionDims      int = 1

	// Goals, which are also the arms chosen at the junction
	GoalNorth float64 = 1
	GoalSouth float64 = 2

	// State feature indices
	position int = 0
	goal     int = 1
	chosen   int = 2
)

// Actions
const (
	North int = iota
	East
	South
	West
)

// TMaze is a corridor of a given length ending in a junction with an
// arm to the north and an arm to the south. The first observation of
// each episode shows which arm holds the goal. Every later observation
// in the corridor is identical and the junction gives no hint, so an
// agent must remember the first observation to act optimally.
//
// Observations are 3-dimensional:
//
//	Location		Observation
//	Start, north	(0, 1, 1)
//	Start, south	(1, 1, 0)
//	Corridor		(1, 0, 1)
//	Junction		(0, 1, 0)
//
// Actions are discrete:
//
//	Action		Meaning
//	  0			North
//	  1			East
//	  2			South
//	  3			West
//
// The underlying state is (position, goal arm, chosen arm). Tasks see
// this state, while agents only see observations.
type TMaze struct {
	env.Task
	length   int
	discount float64
	state    *mat.VecDense
	lastStep ts.TimeStep
}

// New returns a new TMaze with a corridor of length cells before the
// junction
func New(t env.Task, length int, discount float64) (*TMaze, ts.TimeStep,
	error) {
	if length < 1 {
		return nil, ts.TimeStep{}, fmt.Errorf("new: corridor length must "+
			"be positive but got %v", length)
	}

	m := &TMaze{Task: t, length: length, discount: discount}
	step, err := m.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %v", err)
	}
	return m, step, nil
}

// Reset starts a new episode at the start of the corridor with a goal
// drawn from the Task's Starter
func (m *TMaze) Reset() (ts.TimeStep, error) {
	start := m.Start()
	if start.Len() != StateDims {
		return ts.TimeStep{}, fmt.Errorf("reset: starting state should "+
			"have %v features but got %v", StateDims, start.Len())
	}
	if g := start.AtVec(goal); g != GoalNorth && g != GoalSouth {
		return ts.TimeStep{}, fmt.Errorf("reset: illegal goal %v", g)
	}

	m.state = start
	m.lastStep = ts.New(ts.First, 0, m.discount, m.observation(), 0)
	return m.lastStep, nil
}

// Step takes one environmental step given action a
func (m *TMaze) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	if m.lastStep.Last() {
		return ts.TimeStep{}, true, fmt.Errorf("step: episode has ended")
	}
	if a.Len() != ActionDims {
		panic(fmt.Sprintf("step: actions should be %v-dimensional",
			ActionDims))
	}

	action := int(a.AtVec(0))
	pos := int(m.state.AtVec(position))
	choice := 0.0

	switch action {
	case North, South:
		if pos == m.length {
			choice = GoalNorth
			if action == South {
				choice = GoalSouth
			}
		}
	case East:
		if pos < m.length {
			pos++
		}
	case West:
		if pos > 0 {
			pos--
		}
	default:
		panic(fmt.Sprintf("step: illegal action %v ∉ (0, 1, 2, 3)", action))
	}

	nextState := mat.NewVecDense(StateDims, []float64{
		float64(pos), m.state.AtVec(goal), choice,
	})
	reward := m.GetReward(m.state, a, nextState)

	// Enders see the underlying state, agents see the observation
	nextStep := ts.New(ts.Mid, reward, m.discount, nextState,
		m.lastStep.Number+1)
	m.End(&nextStep)

	m.state = nextState
	nextStep.Observation = m.observation()
	m.lastStep = nextStep

	return nextStep, nextStep.Last(), nil
}

// observation returns the observation of the current state
func (m *TMaze) observation() *mat.VecDense {
	pos := int(m.state.AtVec(position))

	var obs []float64
	switch {
	case pos == 0 && m.state.AtVec(goal) == GoalNorth:
		obs = []float64{0, 1, 1}
	case pos == 0:
		obs = []float64{1, 1, 0}
	case pos == m.length:
		obs = []float64{0, 1, 0}
	default:
		obs = []float64{1, 0, 1}
	}
	return mat.NewVecDense(ObservationDims, obs)
}

// CurrentTimeStep returns the last TimeStep that occurred in the
// environment
func (m *TMaze) CurrentTimeStep() ts.TimeStep {
	return m.lastStep
}

// Length returns the number of corridor cells before the junction
func (m *TMaze) Length() int {
	return m.length
}

// ActionSpec returns the action specification of the environment
func (m *TMaze) ActionSpec() env.Spec {
	shape := mat.NewVecDense(ActionDims, nil)
	lowerBound := mat.NewVecDense(ActionDims, []float64{float64(North)})
	upperBound := mat.NewVecDense(ActionDims, []float64{float64(West)})

	return env.NewSpec(shape, env.Action, lowerBound, upperBound,
		env.Discrete)
}

// ObservationSpec returns the observation specification of the
// environment
func (m *TMaze) ObservationSpec() env.Spec {
	shape := mat.NewVecDense(ObservationDims, nil)
	lowerBound := mat.NewVecDense(ObservationDims, nil)
	upperBound := mat.NewVecDense(ObservationDims, []float64{1, 1, 1})

	return env.NewSpec(shape, env.Observation, lowerBound, upperBound,
		env.Discrete)
}

// DiscountSpec returns the discounting specification of the environment
func (m *TMaze) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{m.discount})
	upperBound := mat.NewVecDense(1, []float64{m.discount})

	return env.NewSpec(shape, env.Discount, lowerBound, upperBound,
		env.Continuous)
}

func (m *TMaze) String() string {
	return fmt.Sprintf("TMaze  |  Length: %v  |  Position: %v  |  Goal: %v",
		m.length, m.state.AtVec(position), m.state.AtVec(goal))
}
