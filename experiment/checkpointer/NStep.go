package checkpointer

import (
	"fmt"

	ts "github.com/samuelfneumann/qnet/timestep"
)

// nStep implements checkpointing every N environment steps
type nStep struct {
	interval int
	steps    int
	object   Serializable

	// filename returns the name of the file to save the object in. Use
	// FilenameEnumerator to save each checkpoint in a file with an
	// incremented suffix (file1.bin, file2.bin, ...) or FileTimer to
	// suffix each file with the time it was saved.
	filename func() string
}

// NewNStep returns a checkpointer that checkpoints every n calls to
// Checkpoint with a non-first TimeStep
func NewNStep(n int, object Serializable,
	filename func() string) (Checkpointer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("newNStep: interval must be positive but "+
			"got %v", n)
	}
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}, nil
}

// Checkpoint counts an environment step and saves the tracked object
// if the step count is a multiple of the interval
func (n *nStep) Checkpoint(t ts.TimeStep) error {
	if t.First() {
		return nil
	}

	n.steps++
	if n.steps%n.interval == 0 {
		if err := n.object.Save(n.filename()); err != nil {
			return fmt.Errorf("checkpoint: %v", err)
		}
	}
	return nil
}
