package expreplay

import (
	"fmt"

	ts "github.com/samuelfneumann/qnet/timestep"
)

// ring implements an ExperienceReplayer where transitions are evicted
// first-in-first-out, one at a time. This is the most common use of
// experience replay. Once full, each Add overwrites the oldest
// transition in place.
type ring struct {
	storage

	// next is the slot that the next transition is written to
	next   int
	isFull bool

	sampler Selector

	minCapacity int
	maxCapacity int
}

func newRing(sampler Selector, minCapacity, maxCapacity, featureSize,
	actionSize int, includeNextAction bool) *ring {
	return &ring{
		storage: newStorage(maxCapacity, featureSize, actionSize,
			includeNextAction),
		sampler:     sampler,
		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
	}
}

// sampleFrom returns the slots to sample from
func (r *ring) sampleFrom() []int {
	slots := make([]int, r.Capacity())
	for i := range slots {
		slots[i] = i
	}
	return slots
}

// insertOrder returns at most n in-use slots, oldest first
func (r *ring) insertOrder(n int) []int {
	capacity := r.Capacity()
	if n > capacity {
		n = capacity
	}

	oldest := 0
	if r.isFull {
		oldest = r.next
	}

	order := make([]int, n)
	for i := range order {
		order[i] = (oldest + i) % r.maxCapacity
	}
	return order
}

// Add adds a transition to the ring, overwriting the oldest transition
// if the ring is full
func (r *ring) Add(t ts.Transition) error {
	if err := r.validate(t); err != nil {
		return fmt.Errorf("add: %v", err)
	}

	r.store(r.next, t)

	r.next = (r.next + 1) % r.maxCapacity
	if r.next == 0 {
		r.isFull = true
	}
	return nil
}

// Sample samples and returns a batch of transitions from the replay
// buffer
func (r *ring) Sample() ([]float64, []float64, []float64, []float64,
	[]float64, []float64, error) {
	if err := checkSample(r.Capacity(), r.minCapacity); err != nil {
		return nil, nil, nil, nil, nil, nil, err
	}

	s, a, rew, d, ns, na := r.gather(r.sampler.choose(r))
	return s, a, rew, d, ns, na, nil
}

// Capacity returns the current number of elements in the ring
func (r *ring) Capacity() int {
	if r.isFull {
		return r.maxCapacity
	}
	return r.next
}

// MaxCapacity returns the maximum number of elements that are allowed
// in the ring
func (r *ring) MaxCapacity() int {
	return r.maxCapacity
}

// MinCapacity returns the minimum number of elements required in the
// ring before sampling is allowed
func (r *ring) MinCapacity() int {
	return r.minCapacity
}

// BatchSize returns the number of samples sampled using Sample()
func (r *ring) BatchSize() int {
	return r.sampler.BatchSize()
}

func (r *ring) String() string {
	return fmt.Sprintf("ring | Capacity: %v/%v  |  Next: %v", r.Capacity(),
		r.maxCapacity, r.next)
}
