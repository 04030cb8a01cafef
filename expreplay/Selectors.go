package expreplay

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// SelectorType determines which Selector is used to remove or sample
// data from a buffer
type SelectorType string

const (
	Uniform SelectorType = "Uniform"
	Fifo    SelectorType = "Fifo"
)

func (s SelectorType) valid() bool {
	return s == Uniform || s == Fifo
}

// indexer is a buffer that Selectors can choose slots from
type indexer interface {
	// sampleFrom returns the slots holding data
	sampleFrom() []int

	// insertOrder returns at most n slots holding data, oldest first
	insertOrder(n int) []int
}

// Selector implements functionality for choosing how data should be
// sampled and/or removed from an experience replay buffer
type Selector interface {
	// choose selects the slots of the buffer to sample or remove
	choose(b indexer) []int

	// BatchSize returns the number of elements that will be selected
	BatchSize() int
}

// CreateSelector is a factory for Selectors
func CreateSelector(t SelectorType, batchSize int, seed uint64) Selector {
	switch t {
	case Uniform:
		return NewUniformSelector(batchSize, seed)

	case Fifo:
		return NewFifoSelector(batchSize)
	}

	panic(fmt.Sprintf("createSelector: no such selector %v", t))
}

// uniformSelector is a Selector which selects data from an experience
// replay buffer uniformly randomly with replacement
type uniformSelector struct {
	samples int
	rng     *rand.Rand
}

// NewUniformSelector returns a new Selector which selects data uniformly
// randomly from an experience replay buffer
func NewUniformSelector(samples int, seed uint64) Selector {
	return &uniformSelector{
		samples: samples,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// BatchSize gets the number of samples selected at a time
func (u *uniformSelector) BatchSize() int {
	return u.samples
}

func (u *uniformSelector) choose(b indexer) []int {
	slots := b.sampleFrom()
	selected := make([]int, u.samples)
	for i := range selected {
		selected[i] = slots[u.rng.Intn(len(slots))]
	}
	return selected
}

// fifoSelector is a Selector which selects the oldest data in an
// experience replay buffer
type fifoSelector struct {
	samples int
}

// NewFifoSelector returns a new Selector which selects the oldest data
// in an experience replay buffer
func NewFifoSelector(samples int) Selector {
	return &fifoSelector{samples: samples}
}

// BatchSize gets the number of samples selected at a time
func (f *fifoSelector) BatchSize() int {
	return f.samples
}

func (f *fifoSelector) choose(b indexer) []int {
	return b.insertOrder(f.samples)
}
