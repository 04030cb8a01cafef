package tmaze

import (
	"gonum.org/v1/gonum/mat"

	env "github.com/samuelfneumann/qnet/environment"
	ts "github.com/samuelfneumann/qnet/timestep"
)

const (
	GoalReward  float64 = 4.0
	WrongReward float64 = -1.0
	StepReward  float64 = -0.1
)

// GoalStarter starts each episode at the start of the corridor with the
// goal placed in the north or south arm uniformly at random
type GoalStarter struct {
	goals *env.CategoricalStarter
}

// NewGoalStarter returns a new GoalStarter
func NewGoalStarter(seed uint64) *GoalStarter {
	return &GoalStarter{env.NewCategoricalStarter([]int{2}, seed)}
}

// Start returns a starting state
func (g *GoalStarter) Start() *mat.VecDense {
	arm := g.goals.Start().AtVec(0) + GoalNorth
	return mat.NewVecDense(StateDims, []float64{0, arm, 0})
}

// Cue is the T-maze task. Choosing the arm that was cued at the start
// of the episode gives GoalReward, choosing the other arm gives
// WrongReward, and every other step costs StepReward. Choosing either
// arm ends the episode in a terminal state. Episodes that run longer
// than a step limit end in a timeout.
type Cue struct {
	env.Starter
	stepLimit *env.StepLimit
}

// NewCue returns a new Cue task
func NewCue(s env.Starter, episodeSteps int) *Cue {
	return &Cue{s, env.NewStepLimit(episodeSteps)}
}

// GetReward returns the reward for the transition to nextState
func (c *Cue) GetReward(_, _, nextState mat.Vector) float64 {
	switch nextState.AtVec(chosen) {
	case 0:
		return StepReward
	case nextState.AtVec(goal):
		return GoalReward
	default:
		return WrongReward
	}
}

// AtGoal returns whether the cued arm was chosen in state
func (c *Cue) AtGoal(state mat.Matrix) bool {
	choice := state.At(chosen, 0)
	return choice != 0 && choice == state.At(goal, 0)
}

// End ends the episode once an arm has been chosen or the step limit is
// reached
func (c *Cue) End(t *ts.TimeStep) bool {
	if t.Observation.AtVec(chosen) != 0 {
		t.StepType = ts.Last
		t.SetEnd(ts.TerminalStateReached)
		return true
	}
	return c.stepLimit.End(t)
}

// RewardSpec returns the reward specification of the task
func (c *Cue) RewardSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{WrongReward})
	upperBound := mat.NewVecDense(1, []float64{GoalReward})

	return env.NewSpec(shape, env.Reward, lowerBound, upperBound,
		env.Continuous)
}
