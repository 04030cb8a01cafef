// Package expreplay implements bounded experience replay buffers.
// Buffers hold at most a fixed number of transitions, evicting old
// transitions to make room for new ones, and sample batches of
// transitions for learners.
package expreplay

import (
	"container/list"
	"fmt"

	ts "github.com/samuelfneumann/qnet/timestep"
)

// ExperienceReplayer implements an experience replay buffer
type ExperienceReplayer interface {
	// Add adds a transition to the buffer
	Add(t ts.Transition) error

	// Sample samples a batch of experience from the buffer and returns
	// the batch of states, actions, rewards, discounts, next states,
	// and next actions, each flattened into a []float64. Next actions
	// are nil unless the buffer stores them.
	Sample() ([]float64, []float64, []float64, []float64, []float64,
		[]float64, error)

	// Capacity returns the current number of samples in the buffer
	Capacity() int

	// MaxCapacity returns the maximum allowable samples in the buffer
	MaxCapacity() int

	// MinCapacity returns the number of samples required to be in
	// the buffer before the buffer can be sampled
	MinCapacity() int

	// BatchSize returns the number of samples returned by Sample()
	BatchSize() int
}

// Config implements a specific configuration of an ExperienceReplayer
type Config struct {
	RemoveMethod      SelectorType
	SampleMethod      SelectorType
	RemoveSize        int
	SampleSize        int
	MaxReplayCapacity int
	MinReplayCapacity int
}

// Validate returns an error if the Config describes an illegal buffer
func (c Config) Validate() error {
	if c.MinReplayCapacity <= 0 {
		return fmt.Errorf("validate: min capacity must be > 0")
	}
	if c.MaxReplayCapacity < c.MinReplayCapacity {
		return fmt.Errorf("validate: max capacity (%v) must be >= min "+
			"capacity (%v)", c.MaxReplayCapacity, c.MinReplayCapacity)
	}
	if c.SampleSize <= 0 || c.RemoveSize <= 0 {
		return fmt.Errorf("validate: sample and remove sizes must be > 0")
	}
	if c.SampleSize > c.MaxReplayCapacity {
		return fmt.Errorf("validate: cannot have batch size (%v) > max "+
			"buffer capacity (%v)", c.SampleSize, c.MaxReplayCapacity)
	}
	if c.RemoveSize > c.MaxReplayCapacity {
		return fmt.Errorf("validate: cannot remove (%v) more than max "+
			"buffer capacity (%v)", c.RemoveSize, c.MaxReplayCapacity)
	}
	if c.SampleMethod == Fifo && c.MinReplayCapacity < c.SampleSize {
		return fmt.Errorf("validate: FIFO sampling needs min capacity (%v) "+
			">= batch size (%v)", c.MinReplayCapacity, c.SampleSize)
	}
	if !c.RemoveMethod.valid() || !c.SampleMethod.valid() {
		return fmt.Errorf("validate: unknown selector in (%v, %v)",
			c.RemoveMethod, c.SampleMethod)
	}
	return nil
}

// Create creates and returns the ExperienceReplayer with the specified
// Config. Next actions are only stored if includeNextAction is true.
func (c Config) Create(featureSize, actionSize int, seed uint64,
	includeNextAction bool) (ExperienceReplayer, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}

	remover := CreateSelector(c.RemoveMethod, c.RemoveSize, seed)
	sampler := CreateSelector(c.SampleMethod, c.SampleSize, seed+1)

	return New(remover, sampler, c.MinReplayCapacity, c.MaxReplayCapacity,
		featureSize, actionSize, includeNextAction)
}

// New creates and returns a new ExperienceReplayer. The remover and
// sampler paramters are Selectors which determine how data is removed
// and sampled from the replay buffer. The featureSize and actionSize
// parameters define the size of the feature and action vectors.
//
// If minCapacity == maxCapacity == 1, the buffer only ever holds the
// most recent transition, reducing experience replay to online
// learning. If the remover is a FIFO remover of a single transition,
// the buffer is a ring which overwrites its oldest transition.
func New(remover, sampler Selector, minCapacity, maxCapacity, featureSize,
	actionSize int, includeNextAction bool) (ExperienceReplayer, error) {
	if minCapacity <= 0 {
		return nil, fmt.Errorf("new: minCapacity must be > 0")
	}
	if maxCapacity < minCapacity {
		return nil, fmt.Errorf("new: maxCapacity must be >= minCapacity")
	}
	if maxCapacity < sampler.BatchSize() {
		return nil, fmt.Errorf("new: cannot have batch size (%v) > max "+
			"buffer capacity (%v)", sampler.BatchSize(), maxCapacity)
	}
	if featureSize <= 0 || actionSize <= 0 {
		return nil, fmt.Errorf("new: feature size (%v) and action size (%v) "+
			"must be > 0", featureSize, actionSize)
	}

	if minCapacity == 1 && maxCapacity == 1 {
		return newOnline(featureSize, actionSize, includeNextAction), nil
	}

	if _, ok := remover.(*fifoSelector); ok && remover.BatchSize() == 1 {
		return newRing(sampler, minCapacity, maxCapacity, featureSize,
			actionSize, includeNextAction), nil
	}

	return newCache(remover, sampler, minCapacity, maxCapacity, featureSize,
		actionSize, includeNextAction), nil
}

// storage holds the flattened transitions of a buffer, one slot per
// transition
type storage struct {
	includeNextAction bool
	featureSize       int
	actionSize        int

	stateCache      []float64
	actionCache     []float64
	rewardCache     []float64
	discountCache   []float64
	nextStateCache  []float64
	nextActionCache []float64
}

func newStorage(slots, featureSize, actionSize int,
	includeNextAction bool) storage {
	s := storage{
		includeNextAction: includeNextAction,
		featureSize:       featureSize,
		actionSize:        actionSize,

		stateCache:     make([]float64, slots*featureSize),
		nextStateCache: make([]float64, slots*featureSize),
		actionCache:    make([]float64, slots*actionSize),
		rewardCache:    make([]float64, slots),
		discountCache:  make([]float64, slots),
	}
	if includeNextAction {
		s.nextActionCache = make([]float64, slots*actionSize)
	}
	return s
}

// validate checks that a transition fits in the storage
func (s *storage) validate(t ts.Transition) error {
	if t.State.Len() != s.featureSize || t.NextState.Len() != s.featureSize {
		return fmt.Errorf("invalid feature size \n\twant(%v)\n\thave(%v)",
			s.featureSize, t.State.Len())
	}
	if t.Action.Len() != s.actionSize {
		return fmt.Errorf("invalid action size \n\twant(%v)\n\thave(%v)",
			s.actionSize, t.Action.Len())
	}
	if s.includeNextAction {
		if t.NextAction == nil || t.NextAction.Len() != s.actionSize {
			return fmt.Errorf("invalid next action for action size %v",
				s.actionSize)
		}
	}
	return nil
}

// store copies a transition into a slot
func (s *storage) store(slot int, t ts.Transition) {
	stateInd := slot * s.featureSize
	copy(s.stateCache[stateInd:stateInd+s.featureSize],
		t.State.RawVector().Data)
	copy(s.nextStateCache[stateInd:stateInd+s.featureSize],
		t.NextState.RawVector().Data)

	actionInd := slot * s.actionSize
	copy(s.actionCache[actionInd:actionInd+s.actionSize],
		t.Action.RawVector().Data)
	if s.includeNextAction {
		copy(s.nextActionCache[actionInd:actionInd+s.actionSize],
			t.NextAction.RawVector().Data)
	}

	s.rewardCache[slot] = t.Reward
	s.discountCache[slot] = t.Discount
}

// gather copies the transitions at the given slots into batches
func (s *storage) gather(slots []int) ([]float64, []float64, []float64,
	[]float64, []float64, []float64) {
	n := len(slots)
	stateBatch := make([]float64, n*s.featureSize)
	nextStateBatch := make([]float64, n*s.featureSize)
	actionBatch := make([]float64, n*s.actionSize)
	rewardBatch := make([]float64, n)
	discountBatch := make([]float64, n)

	var nextActionBatch []float64
	if s.includeNextAction {
		nextActionBatch = make([]float64, n*s.actionSize)
	}

	for i, slot := range slots {
		batchInd, expInd := i*s.featureSize, slot*s.featureSize
		copy(stateBatch[batchInd:batchInd+s.featureSize],
			s.stateCache[expInd:expInd+s.featureSize])
		copy(nextStateBatch[batchInd:batchInd+s.featureSize],
			s.nextStateCache[expInd:expInd+s.featureSize])

		batchInd, expInd = i*s.actionSize, slot*s.actionSize
		copy(actionBatch[batchInd:batchInd+s.actionSize],
			s.actionCache[expInd:expInd+s.actionSize])
		if s.includeNextAction {
			copy(nextActionBatch[batchInd:batchInd+s.actionSize],
				s.nextActionCache[expInd:expInd+s.actionSize])
		}

		rewardBatch[i] = s.rewardCache[slot]
		discountBatch[i] = s.discountCache[slot]
	}

	return stateBatch, actionBatch, rewardBatch, discountBatch,
		nextStateBatch, nextActionBatch
}

// checkSample returns an error if a buffer with the given capacities
// cannot be sampled
func checkSample(capacity, minCapacity int) error {
	if capacity == 0 {
		return &ExpReplayError{Op: "sample", Err: errEmptyCache}
	}
	if capacity < minCapacity {
		return &ExpReplayError{Op: "sample", Err: errInsufficientSamples}
	}
	return nil
}

// cache implements an ExperienceReplayer which removes data with any
// Selector. Slots are recycled as data is removed.
type cache struct {
	storage

	// The slots of the cache that are empty and have no data
	emptySlots []int

	// The slots of the cache that have data
	inUseSlots []int

	// orderOfInsert holds in-use slots from oldest to newest
	orderOfInsert *list.List

	remover Selector
	sampler Selector

	minCapacity int
	maxCapacity int
}

func newCache(remover, sampler Selector, minCapacity, maxCapacity,
	featureSize, actionSize int, includeNextAction bool) *cache {
	emptySlots := make([]int, maxCapacity)
	for i := range emptySlots {
		emptySlots[i] = maxCapacity - 1 - i
	}

	return &cache{
		storage: newStorage(maxCapacity, featureSize, actionSize,
			includeNextAction),
		emptySlots:    emptySlots,
		inUseSlots:    make([]int, 0, maxCapacity),
		orderOfInsert: list.New(),
		remover:       remover,
		sampler:       sampler,
		minCapacity:   minCapacity,
		maxCapacity:   maxCapacity,
	}
}

// sampleFrom returns the slots to sample from
func (c *cache) sampleFrom() []int {
	return c.inUseSlots
}

// insertOrder returns at most n in-use slots, oldest first
func (c *cache) insertOrder(n int) []int {
	order := make([]int, 0, n)
	for e := c.orderOfInsert.Front(); e != nil && len(order) < n; e = e.Next() {
		order = append(order, e.Value.(int))
	}
	return order
}

// remove evicts the data chosen by the remover
func (c *cache) remove() {
	for _, slot := range c.remover.choose(c) {
		for i := range c.inUseSlots {
			if c.inUseSlots[i] == slot {
				last := len(c.inUseSlots) - 1
				c.inUseSlots[i] = c.inUseSlots[last]
				c.inUseSlots = c.inUseSlots[:last]
				c.emptySlots = append(c.emptySlots, slot)
				break
			}
		}

		for e := c.orderOfInsert.Front(); e != nil; e = e.Next() {
			if e.Value.(int) == slot {
				c.orderOfInsert.Remove(e)
				break
			}
		}
	}
}

// Add adds a transition to the cache, first evicting data if the cache
// is full
func (c *cache) Add(t ts.Transition) error {
	if err := c.validate(t); err != nil {
		return fmt.Errorf("add: %v", err)
	}

	if c.Capacity() >= c.maxCapacity {
		c.remove()
	}

	last := len(c.emptySlots) - 1
	slot := c.emptySlots[last]
	c.emptySlots = c.emptySlots[:last]
	c.inUseSlots = append(c.inUseSlots, slot)
	c.orderOfInsert.PushBack(slot)

	c.store(slot, t)
	return nil
}

// Sample samples and returns a batch of transitions from the replay
// buffer
func (c *cache) Sample() ([]float64, []float64, []float64, []float64,
	[]float64, []float64, error) {
	if err := checkSample(c.Capacity(), c.minCapacity); err != nil {
		return nil, nil, nil, nil, nil, nil, err
	}

	s, a, r, d, ns, na := c.gather(c.sampler.choose(c))
	return s, a, r, d, ns, na, nil
}

// Capacity returns the current number of elements in the cache
func (c *cache) Capacity() int {
	return len(c.inUseSlots)
}

// MaxCapacity returns the maximum number of elements that are allowed
// in the cache
func (c *cache) MaxCapacity() int {
	return c.maxCapacity
}

// MinCapacity returns the minimum number of elements required in the
// cache before sampling is allowed
func (c *cache) MinCapacity() int {
	return c.minCapacity
}

// BatchSize returns the number of samples sampled using Sample()
func (c *cache) BatchSize() int {
	return c.sampler.BatchSize()
}

func (c *cache) String() string {
	return fmt.Sprintf("cache | Capacity: %v/%v  |  In Use: %v",
		c.Capacity(), c.maxCapacity, c.inUseSlots)
}
