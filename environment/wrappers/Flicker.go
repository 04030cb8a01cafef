// Package wrappers implements environment wrappers that change what an
// agent observes, turning fully observable environments into POMDPs
package wrappers

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	env "github.com/samuelfneumann/qnet/environment"
	ts "github.com/samuelfneumann/qnet/timestep"
)

// Flicker obscures each observation of an environment with some fixed
// probability, replacing it with a zero vector. The environment itself
// is not changed, so rewards and episode ends still follow the true
// state. A Flicker with probability 0 is equivalent to the wrapped
// environment, and a Flicker with probability 1 shows nothing.
type Flicker struct {
	env.Environment

	probability     float64
	obscure         distuv.Bernoulli
	currentTimeStep ts.TimeStep
}

// NewFlicker returns a new Flicker environment wrapper which obscures
// observations with probability p
func NewFlicker(e env.Environment, p float64, seed uint64) (*Flicker,
	ts.TimeStep, error) {
	if p < 0 || p > 1 {
		return nil, ts.TimeStep{}, fmt.Errorf("newFlicker: probability "+
			"must be in [0, 1] but got %v", p)
	}

	f := &Flicker{
		Environment: e,
		probability: p,
		obscure: distuv.Bernoulli{
			P:   p,
			Src: rand.NewSource(seed),
		},
	}

	step, err := f.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("newFlicker: %v", err)
	}
	return f, step, nil
}

// Reset resets the environment to some starting state
func (f *Flicker) Reset() (ts.TimeStep, error) {
	step, err := f.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, err
	}

	step.Observation = f.observe(step.Observation)
	f.currentTimeStep = step
	return step, nil
}

// Step takes one environmental step given some action
func (f *Flicker) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	step, done, err := f.Environment.Step(action)
	if err != nil {
		return ts.TimeStep{}, true, err
	}

	step.Observation = f.observe(step.Observation)
	f.currentTimeStep = step
	return step, done, nil
}

// observe returns the observation the agent sees
func (f *Flicker) observe(obs *mat.VecDense) *mat.VecDense {
	if f.obscure.Rand() == 1.0 {
		return mat.NewVecDense(obs.Len(), nil)
	}
	return obs
}

// CurrentTimeStep returns the current time step in the environment
func (f *Flicker) CurrentTimeStep() ts.TimeStep {
	return f.currentTimeStep
}

// Probability returns the probability of obscuring an observation
func (f *Flicker) Probability() float64 {
	return f.probability
}

// String returns the string representation of the environment
func (f *Flicker) String() string {
	return fmt.Sprintf("Flicker(%v): %v", f.probability, f.Environment)
}
