package wrappers

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	env "github.com/samuelfneumann/qnet/environment"
	ts "github.com/samuelfneumann/qnet/timestep"
)

// Mask hides some features of an environment's observations, keeping
// only the features at a given set of indices. For example, masking
// Cartpole to indices (0, 2) hides the velocities, so that an agent
// must infer them from a history of positions and angles.
type Mask struct {
	env.Environment

	keep            []int
	currentTimeStep ts.TimeStep
}

// NewMask returns a new Mask environment wrapper which keeps only the
// observation features at the indices in keep, in order
func NewMask(e env.Environment, keep []int) (*Mask, ts.TimeStep, error) {
	if len(keep) == 0 {
		return nil, ts.TimeStep{}, fmt.Errorf("newMask: at least one " +
			"feature must be kept")
	}

	features := env.NumFeatures(e.ObservationSpec())
	seen := make(map[int]bool, len(keep))
	for _, i := range keep {
		if i < 0 || i >= features {
			return nil, ts.TimeStep{}, fmt.Errorf("newMask: index %v out "+
				"of range for %v features", i, features)
		}
		if seen[i] {
			return nil, ts.TimeStep{}, fmt.Errorf("newMask: index %v "+
				"repeated", i)
		}
		seen[i] = true
	}

	m := &Mask{Environment: e, keep: keep}
	step, err := m.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("newMask: %v", err)
	}
	return m, step, nil
}

// Reset resets the environment to some starting state
func (m *Mask) Reset() (ts.TimeStep, error) {
	step, err := m.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, err
	}

	step.Observation = m.observe(step.Observation)
	m.currentTimeStep = step
	return step, nil
}

// Step takes one environmental step given some action
func (m *Mask) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	step, done, err := m.Environment.Step(action)
	if err != nil {
		return ts.TimeStep{}, true, err
	}

	step.Observation = m.observe(step.Observation)
	m.currentTimeStep = step
	return step, done, nil
}

func (m *Mask) observe(obs *mat.VecDense) *mat.VecDense {
	masked := mat.NewVecDense(len(m.keep), nil)
	for i, j := range m.keep {
		masked.SetVec(i, obs.AtVec(j))
	}
	return masked
}

// CurrentTimeStep returns the current time step in the environment
func (m *Mask) CurrentTimeStep() ts.TimeStep {
	return m.currentTimeStep
}

// ObservationSpec returns the observation specification of the
// environment
func (m *Mask) ObservationSpec() env.Spec {
	spec := m.Environment.ObservationSpec()

	n := len(m.keep)
	low := mat.NewVecDense(n, nil)
	high := mat.NewVecDense(n, nil)
	for i, j := range m.keep {
		low.SetVec(i, spec.LowerBound.AtVec(j))
		high.SetVec(i, spec.UpperBound.AtVec(j))
	}

	return env.NewSpec(mat.NewVecDense(n, nil), env.Observation, low, high,
		spec.Cardinality)
}

// String returns the string representation of the environment
func (m *Mask) String() string {
	return fmt.Sprintf("Mask%v: %v", m.keep, m.Environment)
}
