// Package envconfig provides configuration structs for configuring
// environments with default physical parameters and tasks. Environment
// configurations in this package are JSON serializable.
package envconfig

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/qnet/environment"
	"github.com/samuelfneumann/qnet/environment/cartpole"
	"github.com/samuelfneumann/qnet/environment/tmaze"
	"github.com/samuelfneumann/qnet/environment/wrappers"
	ts "github.com/samuelfneumann/qnet/timestep"
)

// EnvName stores the name of environments that can be configured with
// this package
type EnvName string

// Environments available for configuration
const (
	Cartpole EnvName = "Cartpole"
	TMaze    EnvName = "TMaze"
)

// TaskName stores the tasks that can be configured with this package.
// Not all tasks can be used with all environments:
//
//	Environment			Task
//	Cartpole			Balance
//	TMaze				Cue
type TaskName string

// Tasks available for configuration
const (
	Balance TaskName = "Balance"
	Cue     TaskName = "Cue"
)

// Config implements a specific configuration of a specific environment
// and specific task, optionally made partially observable by masking
// observation features or flickering observations.
type Config struct {
	Environment   EnvName  `validate:"required,oneof=Cartpole TMaze"`
	Task          TaskName `validate:"required,oneof=Balance Cue"`
	EpisodeCutoff uint     `validate:"gt=0"`
	Discount      float64  `validate:"gte=0,lte=1"`

	// CorridorLength is the number of corridor cells in the TMaze
	CorridorLength int `validate:"gte=0"`

	// Mask lists the observation features to keep, all if empty
	Mask []int `validate:"dive,gte=0"`

	// Flicker is the probability of obscuring each observation
	Flicker float64 `validate:"gte=0,lte=1"`
}

var validate = validator.New()

// Validate returns an error if the Config is invalid
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if c.Environment == TMaze && c.CorridorLength < 1 {
		return fmt.Errorf("validate: TMaze needs a positive corridor length")
	}
	return nil
}

// Create returns the environment described by the Config as well as
// the first timestep of the environment. Masking is applied before
// flickering.
func (c Config) Create(seed uint64) (env.Environment, ts.TimeStep, error) {
	if err := c.Validate(); err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("create: %v", err)
	}

	var e env.Environment
	var step ts.TimeStep
	var err error

	switch c.Environment {
	case Cartpole:
		e, step, err = CreateCartpole(c.Task, int(c.EpisodeCutoff), seed,
			c.Discount)

	case TMaze:
		e, step, err = CreateTMaze(c.Task, c.CorridorLength,
			int(c.EpisodeCutoff), seed, c.Discount)
	}
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("create: %v", err)
	}

	if len(c.Mask) > 0 {
		e, step, err = wrappers.NewMask(e, c.Mask)
		if err != nil {
			return nil, ts.TimeStep{}, fmt.Errorf("create: %v", err)
		}
	}

	if c.Flicker > 0 {
		e, step, err = wrappers.NewFlicker(e, c.Flicker, seed+1)
		if err != nil {
			return nil, ts.TimeStep{}, fmt.Errorf("create: %v", err)
		}
	}

	return e, step, nil
}

// CreateCartpole is a factory for creating the Cartpole environment
// with default physical parameters and default task parameters.
func CreateCartpole(taskName TaskName, cutoff int, seed uint64,
	discount float64) (env.Environment, ts.TimeStep, error) {
	bounds := r1.Interval{Min: -0.05, Max: 0.05}
	s := env.NewUniformStarter([]r1.Interval{
		bounds,
		bounds,
		bounds,
		bounds,
	}, seed)

	var task env.Task
	switch taskName {
	case Balance:
		task = cartpole.NewBalance(s, cutoff, cartpole.FailAngle)

	default:
		return nil, ts.TimeStep{}, fmt.Errorf("createCartpole: Cartpole "+
			"environment has no task %v", taskName)
	}

	return cartpole.New(task, discount)
}

// CreateTMaze is a factory for creating the TMaze environment
func CreateTMaze(taskName TaskName, length, cutoff int, seed uint64,
	discount float64) (env.Environment, ts.TimeStep, error) {
	var task env.Task
	switch taskName {
	case Cue:
		task = tmaze.NewCue(tmaze.NewGoalStarter(seed), cutoff)

	default:
		return nil, ts.TimeStep{}, fmt.Errorf("createTMaze: TMaze "+
			"environment has no task %v", taskName)
	}

	return tmaze.New(task, length, discount)
}
