// Package checkpointer implements functionality for periodically
// saving objects during an experiment
package checkpointer

import ts "github.com/samuelfneumann/qnet/timestep"

// Serializable is an object that can be saved to a file
type Serializable interface {
	Save(filename string) error
}

// Checkpointer checkpoints serializable objects based on the
// TimeSteps of an experiment
type Checkpointer interface {
	Checkpoint(ts.TimeStep) error
}
