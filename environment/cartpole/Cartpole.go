// Package cartpole implements the Cartpole classic control environment
// with discrete actions
package cartpole

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/qnet/environment"
	ts "github.com/samuelfneumann/qnet/timestep"
	"github.com/samuelfneumann/qnet/utils/floatutils"
)

const (
	// Physical constants
	Gravity        float64 = 9.8
	CartMass       float64 = 1.0
	PoleMass       float64 = 0.1
	HalfPoleLength float64 = 0.5  // half of pole length
	ForceMag       float64 = 10.0 // Magnification of force applied
	Dt             float64 = 0.02 // seconds between state updates

	// Bounds (+/-) on state variables
	PositionBounds        float64 = 2.4
	SpeedBounds           float64 = math.MaxFloat64
	AngleBounds           float64 = math.Pi
	AngularVelocityBounds float64 = math.MaxFloat64

	ObservationDims   int = 4
	ActionDims        int = 1
	MinDiscreteAction int = 0
	MaxDiscreteAction int = 2
)

// Cartpole implements the classic control environment Cartpole. A pole
// is attached to a cart, which can move horizontally. Gravity pulls the
// pole downwards so that balancing it in an upright position is
// difficult.
//
// The state features are continuous and consist of the cart's x
// position and speed, as well as the pole's angle from the positive
// y-axis and the pole's angular velocity. The cart position is clipped
// to the track and its speed set to 0 at the track boundaries. The
// pole angle is normalized to (-π, π].
//
// Actions are discrete, consisting of the direction to apply
// horizontal force to the cart:
//
//	Action		Meaning
//	  0			Apply force left
//	  1			Do nothing
//	  2			Apply force right
//
// Illegal actions cause the environment to panic.
type Cartpole struct {
	env.Task
	lastStep      ts.TimeStep
	discount      float64
	positionBound r1.Interval
	angleBound    r1.Interval
}

// New constructs a new Cartpole environment
func New(t env.Task, discount float64) (*Cartpole, ts.TimeStep, error) {
	c := &Cartpole{
		Task:          t,
		discount:      discount,
		positionBound: r1.Interval{Min: -PositionBounds, Max: PositionBounds},
		angleBound:    r1.Interval{Min: -AngleBounds, Max: AngleBounds},
	}

	step, err := c.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %v", err)
	}
	return c, step, nil
}

// Reset resets the environment and returns a starting state drawn from
// the environment Starter
func (c *Cartpole) Reset() (ts.TimeStep, error) {
	state := c.Start()
	if err := c.validateState(state); err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: %v", err)
	}

	c.lastStep = ts.New(ts.First, 0, c.discount, state, 0)
	return c.lastStep, nil
}

// CurrentTimeStep returns the last TimeStep that occurred in the
// environment
func (c *Cartpole) CurrentTimeStep() ts.TimeStep {
	return c.lastStep
}

// ActionSpec returns the action specification of the environment
func (c *Cartpole) ActionSpec() env.Spec {
	shape := mat.NewVecDense(ActionDims, nil)
	lowerBound := mat.NewVecDense(ActionDims,
		[]float64{float64(MinDiscreteAction)})
	upperBound := mat.NewVecDense(ActionDims,
		[]float64{float64(MaxDiscreteAction)})

	return env.NewSpec(shape, env.Action, lowerBound, upperBound,
		env.Discrete)
}

// ObservationSpec returns the observation specification of the
// environment
func (c *Cartpole) ObservationSpec() env.Spec {
	shape := mat.NewVecDense(ObservationDims, nil)
	lowerBound := mat.NewVecDense(ObservationDims, []float64{
		c.positionBound.Min, -SpeedBounds, c.angleBound.Min,
		-AngularVelocityBounds,
	})
	upperBound := mat.NewVecDense(ObservationDims, []float64{
		c.positionBound.Max, SpeedBounds, c.angleBound.Max,
		AngularVelocityBounds,
	})

	return env.NewSpec(shape, env.Observation, lowerBound, upperBound,
		env.Continuous)
}

// DiscountSpec returns the discounting specification of the environment
func (c *Cartpole) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{c.discount})
	upperBound := mat.NewVecDense(1, []float64{c.discount})

	return env.NewSpec(shape, env.Discount, lowerBound, upperBound,
		env.Continuous)
}

// Step takes one environmental step given action a and returns the next
// timestep and a bool indicating whether or not the episode has ended.
func (c *Cartpole) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	if a.Len() != ActionDims {
		panic(fmt.Sprintf("step: actions should be %v-dimensional",
			ActionDims))
	}

	action := int(a.AtVec(0))
	if action < MinDiscreteAction || action > MaxDiscreteAction {
		panic(fmt.Sprintf("step: illegal action %v ∉ (0, 1, 2)",
			action))
	}

	// Convert action (0, 1, 2) to a direction (-1, 0, 1)
	direction := float64(action - 1)
	nextState := c.nextState(direction)

	reward := c.GetReward(c.lastStep.Observation, a, nextState)
	nextStep := ts.New(ts.Mid, reward, c.discount, nextState,
		c.lastStep.Number+1)
	c.End(&nextStep)

	c.lastStep = nextStep
	return nextStep, nextStep.Last(), nil
}

// nextState computes the next state by Euler integration after
// applying force in the given direction
func (c *Cartpole) nextState(direction float64) *mat.VecDense {
	state := c.lastStep.Observation
	x, xDot := state.AtVec(0), state.AtVec(1)
	th, thDot := state.AtVec(2), state.AtVec(3)

	force := direction * ForceMag
	cosTheta := math.Cos(th)
	sinTheta := math.Sin(th)

	totalMass := PoleMass + CartMass
	poleMassLength := PoleMass * HalfPoleLength

	temp := (force + poleMassLength*thDot*thDot*sinTheta) / totalMass
	thAcc := (Gravity*sinTheta - cosTheta*temp) / (HalfPoleLength *
		(4.0/3.0 - PoleMass*cosTheta*cosTheta/totalMass))
	xAcc := temp - poleMassLength*thAcc*cosTheta/totalMass

	x += Dt * xDot
	xDot += Dt * xAcc
	th += Dt * thDot
	thDot += Dt * thAcc

	if x <= c.positionBound.Min || x >= c.positionBound.Max {
		xDot = 0
	}
	x = floatutils.ClipInterval(x, c.positionBound)
	th = normalizeAngle(th, c.angleBound)

	return mat.NewVecDense(ObservationDims, []float64{x, xDot, th, thDot})
}

// validateState ensures that a state observation is between the
// physical bounds of the environment
func (c *Cartpole) validateState(obs mat.Vector) error {
	if obs.Len() != ObservationDims {
		return fmt.Errorf("state should have %v features but got %v",
			ObservationDims, obs.Len())
	}
	if !contains(c.positionBound, obs.AtVec(0)) {
		return fmt.Errorf("position %v is not within bounds %v",
			obs.AtVec(0), c.positionBound)
	}
	if !contains(c.angleBound, obs.AtVec(2)) {
		return fmt.Errorf("angle %v is not within bounds %v", obs.AtVec(2),
			c.angleBound)
	}
	return nil
}

func (c *Cartpole) String() string {
	msg := "Cartpole  |  Position: %v  | Speed: %v  |  Angle: %v" +
		"  |  Angular Velocity: %v"

	state := c.lastStep.Observation
	return fmt.Sprintf(msg, state.AtVec(0), state.AtVec(1), state.AtVec(2),
		state.AtVec(3))
}

func contains(i r1.Interval, v float64) bool {
	return v >= i.Min && v <= i.Max
}

// normalizeAngle wraps th into the angle bounds, which must be
// centered on 0
func normalizeAngle(th float64, bounds r1.Interval) float64 {
	if bounds.Max != -bounds.Min {
		panic("normalizeAngle: angle bounds should be centered around 0")
	}

	width := bounds.Max - bounds.Min
	for th > bounds.Max {
		th -= width
	}
	for th <= bounds.Min {
		th += width
	}
	return th
}
