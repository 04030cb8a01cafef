package tracker

import (
	"github.com/samuelfneumann/qnet/environment"
	"github.com/samuelfneumann/qnet/timestep"
)

// registeredTracker tracks the most recent TimeStep of a registered
// Environment instead of the TimeStep it is given.
//
// An experiment run on an Environment wrapper sends the wrapper's
// TimeSteps to its Trackers. Registering the wrapped Environment with
// a Tracker lets the Tracker see the unmodified TimeSteps instead, for
// example the true observations under a Flicker wrapper.
type registeredTracker struct {
	Tracker
	env environment.Environment
}

// Register returns a Tracker which tracks data from env only.
//
// Note: the underlying concrete type of t is lost when registering.
func Register(t Tracker, env environment.Environment) Tracker {
	return &registeredTracker{t, env}
}

// Track calls Track() on the embedded Tracker using the current
// TimeStep of the registered Environment. The argument is ignored.
func (r *registeredTracker) Track(timestep.TimeStep) {
	r.Tracker.Track(r.env.CurrentTimeStep())
}
