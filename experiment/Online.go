package experiment

import (
	"context"
	"fmt"

	"github.com/samuelfneumann/qnet/agent"
	env "github.com/samuelfneumann/qnet/environment"
	"github.com/samuelfneumann/qnet/experiment/checkpointer"
	"github.com/samuelfneumann/qnet/experiment/tracker"
	ts "github.com/samuelfneumann/qnet/timestep"
	"github.com/samuelfneumann/qnet/utils/logger"
	"github.com/samuelfneumann/qnet/utils/progressbar"
)

// Online is an Experiment that trains an agent online. On each step
// the agent selects an action, the environment steps, and the agent
// observes the resulting TimeStep and then updates.
//
// Optionally, greedy evaluation episodes are interleaved between
// training episodes. Evaluation episodes do not count towards the step
// or episode limits and the agent does not learn from them.
type Online struct {
	environment env.Environment
	agent       agent.Agent

	maxSteps     uint
	maxEpisodes  uint
	currentSteps uint
	episodes     uint

	evalEvery    uint
	evalEpisodes uint
	evalTrackers []tracker.Tracker

	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer
	progress      *progressbar.ManualProgressBar
	log           logger.Logger
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The steps parameter determines how
// many timesteps the experiment is run for.
func NewOnline(e env.Environment, a agent.Agent, steps uint,
	t []tracker.Tracker, c []checkpointer.Checkpointer,
	log logger.Logger) (*Online, error) {
	if steps == 0 {
		return nil, fmt.Errorf("newOnline: step limit must be positive")
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Online{
		environment:   e,
		agent:         a,
		maxSteps:      steps,
		trackers:      t,
		checkpointers: c,
		log:           log,
	}, nil
}

// SetMaxEpisodes sets the maximum number of training episodes to run.
// Zero means no limit.
func (o *Online) SetMaxEpisodes(episodes uint) {
	o.maxEpisodes = episodes
}

// SetEvaluation runs episodes greedy evaluation episodes after every
// every training episodes, tracked with trackers
func (o *Online) SetEvaluation(every, episodes uint,
	trackers ...tracker.Tracker) {
	o.evalEvery = every
	o.evalEpisodes = episodes
	o.evalTrackers = trackers
}

// AddCheckpointer adds a Checkpointer to the experiment
func (o *Online) AddCheckpointer(c checkpointer.Checkpointer) {
	o.checkpointers = append(o.checkpointers, c)
}

// SetProgressBar sets a progress bar which is advanced on each
// training step
func (o *Online) SetProgressBar(p *progressbar.ManualProgressBar) {
	o.progress = p
}

// Register registers a tracker.Tracker with the experiment
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// Steps returns the number of training steps taken
func (o *Online) Steps() uint {
	return o.currentSteps
}

// Episodes returns the number of training episodes started
func (o *Online) Episodes() uint {
	return o.episodes
}

func (o *Online) done() bool {
	return o.currentSteps >= o.maxSteps ||
		(o.maxEpisodes > 0 && o.episodes >= o.maxEpisodes)
}

// RunEpisode runs a single training episode, followed by evaluation
// episodes if they are due. It returns whether the experiment has
// finished.
func (o *Online) RunEpisode(ctx context.Context) (bool, error) {
	if o.done() {
		return true, nil
	}

	step, err := o.environment.Reset()
	if err != nil {
		return true, fmt.Errorf("runEpisode: could not reset: %v", err)
	}
	if err := o.agent.ObserveFirst(step); err != nil {
		return true, fmt.Errorf("runEpisode: %v", err)
	}
	o.episodes++
	track(o.trackers, step)

	episodeReturn := 0.0
	for !step.Last() && o.currentSteps < o.maxSteps {
		if err := ctx.Err(); err != nil {
			return true, err
		}
		o.currentSteps++

		action, err := o.agent.SelectAction(step)
		if err != nil {
			return true, fmt.Errorf("runEpisode: %v", err)
		}
		if step, _, err = o.environment.Step(action); err != nil {
			return true, fmt.Errorf("runEpisode: %v", err)
		}
		episodeReturn += step.Reward
		track(o.trackers, step)

		if err := o.agent.Observe(action, step); err != nil {
			return true, fmt.Errorf("runEpisode: %v", err)
		}
		if err := o.agent.Step(); err != nil {
			return true, fmt.Errorf("runEpisode: %v", err)
		}

		if err := o.checkpoint(step); err != nil {
			return true, fmt.Errorf("runEpisode: %v", err)
		}
		if o.progress != nil {
			o.progress.Increment()
			o.progress.Display()
		}
	}
	o.agent.EndEpisode()

	o.log.Info("episode finished", "episode", o.episodes,
		"length", step.Number, "return", episodeReturn,
		"steps", o.currentSteps, "completed", step.Last())

	if o.evalEvery > 0 && o.episodes%o.evalEvery == 0 {
		if err := o.evaluate(ctx); err != nil {
			return true, fmt.Errorf("runEpisode: %v", err)
		}
	}

	return o.done(), nil
}

// evaluate runs the evaluation episodes with the agent acting greedily
func (o *Online) evaluate(ctx context.Context) error {
	o.agent.Eval()
	defer o.agent.Train()

	for i := uint(0); i < o.evalEpisodes; i++ {
		step, err := o.environment.Reset()
		if err != nil {
			return fmt.Errorf("evaluate: could not reset: %v", err)
		}
		if err := o.agent.ObserveFirst(step); err != nil {
			return fmt.Errorf("evaluate: %v", err)
		}
		track(o.evalTrackers, step)

		episodeReturn := 0.0
		for !step.Last() {
			if err := ctx.Err(); err != nil {
				return err
			}

			action, err := o.agent.SelectAction(step)
			if err != nil {
				return fmt.Errorf("evaluate: %v", err)
			}
			if step, _, err = o.environment.Step(action); err != nil {
				return fmt.Errorf("evaluate: %v", err)
			}
			episodeReturn += step.Reward
			track(o.evalTrackers, step)
		}
		o.agent.EndEpisode()

		o.log.Info("evaluation episode finished", "episode", o.episodes,
			"length", step.Number, "return", episodeReturn)
	}
	return nil
}

// Run runs the experiment until it is finished or ctx is cancelled
func (o *Online) Run(ctx context.Context) error {
	for {
		done, err := o.RunEpisode(ctx)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if done {
			return nil
		}
	}
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() error {
	for _, trackers := range [][]tracker.Tracker{o.trackers, o.evalTrackers} {
		for _, t := range trackers {
			if err := t.Save(); err != nil {
				return fmt.Errorf("save: %v", err)
			}
		}
	}
	return nil
}

func (o *Online) checkpoint(step ts.TimeStep) error {
	for _, c := range o.checkpointers {
		if err := c.Checkpoint(step); err != nil {
			return err
		}
	}
	return nil
}

// track sends a timestep to each tracker
func track(trackers []tracker.Tracker, t ts.TimeStep) {
	for _, tr := range trackers {
		tr.Track(t)
	}
}
