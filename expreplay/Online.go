package expreplay

import (
	"fmt"

	ts "github.com/samuelfneumann/qnet/timestep"
)

// onlineCache implements an experience replay buffer for sampling
// completely online. It holds only the most recent transition, which
// every Sample returns.
type onlineCache struct {
	storage
	full bool
}

func newOnline(featureSize, actionSize int,
	includeNextAction bool) *onlineCache {
	return &onlineCache{
		storage: newStorage(1, featureSize, actionSize, includeNextAction),
	}
}

// Add replaces the stored transition with t
func (o *onlineCache) Add(t ts.Transition) error {
	if err := o.validate(t); err != nil {
		return fmt.Errorf("add: %v", err)
	}
	o.store(0, t)
	o.full = true
	return nil
}

// Sample returns the most recent transition
func (o *onlineCache) Sample() ([]float64, []float64, []float64, []float64,
	[]float64, []float64, error) {
	if !o.full {
		err := &ExpReplayError{Op: "sample", Err: errEmptyCache}
		return nil, nil, nil, nil, nil, nil, err
	}

	s, a, r, d, ns, na := o.gather([]int{0})
	return s, a, r, d, ns, na, nil
}

// Capacity returns the current number of elements in the cache
func (o *onlineCache) Capacity() int {
	if o.full {
		return 1
	}
	return 0
}

// MaxCapacity returns the maximum number of elements in the cache
func (o *onlineCache) MaxCapacity() int {
	return 1
}

// MinCapacity returns the minimum number of elements required in the
// cache before sampling is allowed
func (o *onlineCache) MinCapacity() int {
	return 1
}

// BatchSize returns the number of samples sampled using Sample()
func (o *onlineCache) BatchSize() int {
	return 1
}
