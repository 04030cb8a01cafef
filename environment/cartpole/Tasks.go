package cartpole

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/qnet/environment"
	ts "github.com/samuelfneumann/qnet/timestep"
)

// FailAngle is the default angle past which the pole has fallen
const FailAngle float64 = 12 * 2 * math.Pi / 360

// Balance implements the classic control Cartpole Balance task. The
// goal of the agent is to balance the pole on the cart in an upright
// position for as long as possible.
//
// The reward is +1 for every timestep the pole stays within the fail
// angle θ of vertical. Episodes end in a terminal state when the pole
// falls past θ or the cart leaves the track, and in a timeout after a
// step limit.
type Balance struct {
	env.Starter
	enders    *env.MultiEnder
	failAngle float64
}

// NewBalance creates and returns a new Balance task
func NewBalance(s env.Starter, episodeSteps int, failAngle float64) *Balance {
	fallen := env.NewIntervalLimit(
		[]r1.Interval{
			{Min: -PositionBounds + 1e-8, Max: PositionBounds - 1e-8},
			{Min: -failAngle, Max: failAngle},
		},
		[]int{0, 2},
		ts.TerminalStateReached,
	)
	enders := env.NewMultiEnder(fallen, env.NewStepLimit(episodeSteps))

	return &Balance{s, enders, failAngle}
}

// End checks if a TimeStep is the last in an episode, adjusting it
// if so
func (b *Balance) End(t *ts.TimeStep) bool {
	return b.enders.End(t)
}

// GetReward returns the reward for an action taken in some state,
// resulting in a transition to the next state nextState.
func (b *Balance) GetReward(_, _, nextState mat.Vector) float64 {
	if b.AtGoal(nextState) {
		return 1.0
	}
	return 0.0
}

// AtGoal returns whether the pole is upright
func (b *Balance) AtGoal(state mat.Matrix) bool {
	return math.Abs(state.At(2, 0)) < b.failAngle
}

// RewardSpec returns the reward specification for the environment
func (b *Balance) RewardSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{0.0})
	upperBound := mat.NewVecDense(1, []float64{1.0})

	return env.NewSpec(shape, env.Reward, lowerBound, upperBound,
		env.Continuous)
}
