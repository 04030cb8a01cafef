package expreplay

import (
	"fmt"

	"golang.org/x/exp/rand"

	ts "github.com/samuelfneumann/qnet/timestep"
)

// SequenceConfig implements a specific configuration of a
// SequenceReplayer
type SequenceConfig struct {
	SequenceLength    int
	BatchSize         int
	MaxReplayCapacity int
	MinReplayCapacity int
}

// Validate returns an error if the SequenceConfig describes an illegal
// buffer
func (c SequenceConfig) Validate() error {
	if c.SequenceLength <= 0 {
		return fmt.Errorf("validate: sequence length must be > 0")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("validate: batch size must be > 0")
	}
	if c.MinReplayCapacity <= 0 {
		return fmt.Errorf("validate: min capacity must be > 0")
	}
	if c.MaxReplayCapacity < c.MinReplayCapacity {
		return fmt.Errorf("validate: max capacity (%v) must be >= min "+
			"capacity (%v)", c.MaxReplayCapacity, c.MinReplayCapacity)
	}
	if c.MaxReplayCapacity < c.SequenceLength {
		return fmt.Errorf("validate: max capacity (%v) must be >= sequence "+
			"length (%v)", c.MaxReplayCapacity, c.SequenceLength)
	}
	return nil
}

// Create returns the SequenceReplayer described by the config
func (c SequenceConfig) Create(featureSize int,
	seed uint64) (*SequenceReplayer, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}
	return NewSequenceReplayer(c.SequenceLength, c.BatchSize,
		c.MinReplayCapacity, c.MaxReplayCapacity, featureSize, seed)
}

// SequenceBatch is a batch of sequences of consecutive transitions
// from single episodes. All data is laid out time-major: the entry for
// step t of sequence b is at index t*BatchSize + b, times the feature
// size for observations.
type SequenceBatch struct {
	SequenceLength int
	BatchSize      int
	FeatureSize    int

	// Observations holds SequenceLength+1 steps of observations, so
	// that step t+1 holds the next observation of transition t
	Observations []float64

	// Actions holds the index of the action taken at each step
	Actions   []float64
	Rewards   []float64
	Discounts []float64

	// Mask is 1 for steps holding a transition and 0 for padding
	Mask []float64

	// Lengths holds the number of real transitions in each sequence
	Lengths []int
}

// ObservationsAt returns the batch of observations at step t
func (s *SequenceBatch) ObservationsAt(t int) []float64 {
	size := s.BatchSize * s.FeatureSize
	return s.Observations[t*size : (t+1)*size]
}

// SequenceReplayer is an experience replay buffer for recurrent
// learners. It stores transitions in a FIFO ring along with the episode
// each belongs to, and samples sequences of consecutive transitions
// which begin at uniformly random stored transitions.
//
// A sequence never spans two episodes and never runs past the most
// recent transition. Sequences cut short are padded with zeros and
// masked out.
type SequenceReplayer struct {
	storage

	sequenceLength int
	batchSize      int
	minCapacity    int
	maxCapacity    int

	episodes []int
	episode  int
	next     int
	isFull   bool

	rng *rand.Rand
}

// NewSequenceReplayer returns a new SequenceReplayer. Actions must be
// discrete and are stored as a single action index.
func NewSequenceReplayer(sequenceLength, batchSize, minCapacity,
	maxCapacity, featureSize int, seed uint64) (*SequenceReplayer, error) {
	if sequenceLength <= 0 || batchSize <= 0 {
		return nil, fmt.Errorf("newSequenceReplayer: sequence length and " +
			"batch size must be > 0")
	}
	if minCapacity <= 0 || maxCapacity < minCapacity {
		return nil, fmt.Errorf("newSequenceReplayer: illegal capacities "+
			"(min: %v, max: %v)", minCapacity, maxCapacity)
	}
	if featureSize <= 0 {
		return nil, fmt.Errorf("newSequenceReplayer: feature size must "+
			"be > 0 but got %v", featureSize)
	}

	return &SequenceReplayer{
		storage:        newStorage(maxCapacity, featureSize, 1, false),
		sequenceLength: sequenceLength,
		batchSize:      batchSize,
		minCapacity:    minCapacity,
		maxCapacity:    maxCapacity,
		episodes:       make([]int, maxCapacity),
		episode:        -1,
		rng:            rand.New(rand.NewSource(seed)),
	}, nil
}

// Add adds a transition to the buffer. The episodeStart argument
// must be true for the first transition of each episode.
func (s *SequenceReplayer) Add(t ts.Transition, episodeStart bool) error {
	if err := s.validate(t); err != nil {
		return fmt.Errorf("add: %v", err)
	}
	if episodeStart || s.episode < 0 {
		s.episode++
	}

	s.store(s.next, t)
	s.episodes[s.next] = s.episode

	s.next = (s.next + 1) % s.maxCapacity
	if s.next == 0 {
		s.isFull = true
	}
	return nil
}

// Sample samples a batch of sequences from the buffer
func (s *SequenceReplayer) Sample() (*SequenceBatch, error) {
	if err := checkSample(s.Capacity(), s.minCapacity); err != nil {
		return nil, err
	}

	L, B, F := s.sequenceLength, s.batchSize, s.featureSize
	batch := &SequenceBatch{
		SequenceLength: L,
		BatchSize:      B,
		FeatureSize:    F,
		Observations:   make([]float64, (L+1)*B*F),
		Actions:        make([]float64, L*B),
		Rewards:        make([]float64, L*B),
		Discounts:      make([]float64, L*B),
		Mask:           make([]float64, L*B),
		Lengths:        make([]int, B),
	}

	for b := 0; b < B; b++ {
		slots := s.sequenceFrom(s.rng.Intn(s.Capacity()))
		batch.Lengths[b] = len(slots)

		for t, slot := range slots {
			i := t*B + b
			copy(batch.Observations[i*F:(i+1)*F],
				s.stateCache[slot*F:(slot+1)*F])
			batch.Actions[i] = s.actionCache[slot]
			batch.Rewards[i] = s.rewardCache[slot]
			batch.Discounts[i] = s.discountCache[slot]
			batch.Mask[i] = 1.0
		}

		// The observation after the last transition
		last := slots[len(slots)-1]
		i := len(slots)*B + b
		copy(batch.Observations[i*F:(i+1)*F],
			s.nextStateCache[last*F:(last+1)*F])
	}

	return batch, nil
}

// sequenceFrom returns the slots of at most sequenceLength consecutive
// transitions of a single episode, beginning at the start-th oldest
// transition
func (s *SequenceReplayer) sequenceFrom(start int) []int {
	oldest := 0
	if s.isFull {
		oldest = s.next
	}
	slot := (oldest + start) % s.maxCapacity
	episode := s.episodes[slot]

	slots := make([]int, 0, s.sequenceLength)
	for i := start; i < s.Capacity() && len(slots) < s.sequenceLength; i++ {
		slot := (oldest + i) % s.maxCapacity
		if s.episodes[slot] != episode {
			break
		}
		slots = append(slots, slot)
	}
	return slots
}

// Capacity returns the current number of transitions in the buffer
func (s *SequenceReplayer) Capacity() int {
	if s.isFull {
		return s.maxCapacity
	}
	return s.next
}

// MaxCapacity returns the maximum number of transitions in the buffer
func (s *SequenceReplayer) MaxCapacity() int {
	return s.maxCapacity
}

// MinCapacity returns the minimum number of transitions required in
// the buffer before sampling is allowed
func (s *SequenceReplayer) MinCapacity() int {
	return s.minCapacity
}

// BatchSize returns the number of sequences sampled using Sample()
func (s *SequenceReplayer) BatchSize() int {
	return s.batchSize
}

// SequenceLength returns the number of transitions in each sampled
// sequence
func (s *SequenceReplayer) SequenceLength() int {
	return s.sequenceLength
}
