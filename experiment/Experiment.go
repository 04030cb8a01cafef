// Package experiment implements functionality for running an experiment
package experiment

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/samuelfneumann/qnet/agent"
	"github.com/samuelfneumann/qnet/environment/envconfig"
	"github.com/samuelfneumann/qnet/experiment/checkpointer"
	"github.com/samuelfneumann/qnet/experiment/tracker"
	"github.com/samuelfneumann/qnet/utils/logger"
)

// Experiment runs an agent in an environment. Each TimeStep of the
// environment is sent to the Trackers of the Experiment, which cache
// data to be saved to disk with Save once the experiment has run.
//
// Run runs episodes until a step or episode limit is reached, or until
// its context is cancelled. RunEpisode runs a single episode.
type Experiment interface {
	Run(ctx context.Context) error

	// RunEpisode returns whether the experiment has finished
	RunEpisode(ctx context.Context) (bool, error)

	// Save saves all tracked data to disk
	Save() error

	// Register adds a Tracker to the (possibly already running)
	// experiment
	Register(t tracker.Tracker)
}

// Type is the type of an Experiment
type Type string

const (
	OnlineExp Type = "OnlineExperiment"
)

var validate = validator.New()

// Config represents a configuration of an experiment. The experiment
// stops once MaxSteps environment steps or MaxEpisodes episodes have
// been run, whichever comes first. A zero MaxEpisodes places no limit
// on episodes.
//
// If EvalEvery is positive, EvalEpisodes greedy evaluation episodes
// are run after every EvalEvery training episodes.
type Config struct {
	Type         Type                  `validate:"oneof=OnlineExperiment"`
	MaxSteps     uint                  `validate:"gt=0"`
	MaxEpisodes  uint                  `validate:"gte=0"`
	EvalEvery    uint                  `validate:"gte=0"`
	EvalEpisodes uint                  `validate:"required_with=EvalEvery"`
	EnvConf      envconfig.Config      `validate:"-"`
	AgentConf    agent.TypedConfigList `validate:"-"`
}

// Validate returns an error if the Config is invalid
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if err := c.EnvConf.Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if c.AgentConf.ConfigList == nil || c.AgentConf.Len() == 0 {
		return fmt.Errorf("validate: no agent configurations")
	}
	return nil
}

// CreateExp creates the experiment running the agent of the i-th
// configuration in the agent ConfigList. Evaluation returns are
// tracked by evalTrackers.
func (c Config) CreateExp(i int, seed uint64, trackers,
	evalTrackers []tracker.Tracker, check []checkpointer.Checkpointer,
	log logger.Logger) (Experiment, agent.Agent, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, fmt.Errorf("createExp: %v", err)
	}

	env, _, err := c.EnvConf.Create(seed)
	if err != nil {
		return nil, nil, fmt.Errorf("createExp: could not create "+
			"environment: %v", err)
	}

	a, err := c.AgentConf.At(i).CreateAgent(env, seed, log)
	if err != nil {
		return nil, nil, fmt.Errorf("createExp: could not create agent: %v",
			err)
	}

	switch c.Type {
	case OnlineExp:
		exp, err := NewOnline(env, a, c.MaxSteps, trackers, check, log)
		if err != nil {
			return nil, nil, fmt.Errorf("createExp: %v", err)
		}
		exp.SetMaxEpisodes(c.MaxEpisodes)
		// Evaluation trackers are saved even when evaluation never runs
		exp.SetEvaluation(c.EvalEvery, c.EvalEpisodes, evalTrackers...)
		return exp, a, nil
	}

	return nil, nil, fmt.Errorf("createExp: no such experiment type %v",
		c.Type)
}
