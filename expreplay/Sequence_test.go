package expreplay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceStaysInEpisode(t *testing.T) {
	conf := SequenceConfig{
		SequenceLength:    4,
		BatchSize:         16,
		MaxReplayCapacity: 20,
		MinReplayCapacity: 1,
	}
	s, err := conf.Create(1, 1)
	require.NoError(t, err)

	_, err = s.Sample()
	assert.True(t, IsEmptyBuffer(err))

	// Episode A holds transitions 0..2 and episode B transitions 10..15
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Add(transition(float64(i), 1), i == 0))
	}
	for i := 10; i < 16; i++ {
		require.NoError(t, s.Add(transition(float64(i), 1), i == 10))
	}

	for n := 0; n < 20; n++ {
		batch, err := s.Sample()
		require.NoError(t, err)

		for b := 0; b < batch.BatchSize; b++ {
			length := batch.Lengths[b]
			require.True(t, length >= 1 && length <= 4)

			first := batch.Observations[b]
			for step := 0; step < batch.SequenceLength; step++ {
				i := step*batch.BatchSize + b
				if step < length {
					assert.Equal(t, 1.0, batch.Mask[i])
					assert.Equal(t, first+float64(step), batch.Observations[i])
					assert.Equal(t, batch.Observations[i], batch.Actions[i])
				} else {
					assert.Equal(t, 0.0, batch.Mask[i])
					assert.Equal(t, 0.0, batch.Rewards[i])
				}
			}

			// The observation after the last transition is its next state
			last := batch.ObservationsAt(length)[b]
			assert.Equal(t, first+float64(length), last)

			if first < 10 {
				assert.LessOrEqual(t, first+float64(length), 3.0,
					"sequence crossed into the next episode")
			}
		}
	}
}

func TestSequenceWrapsAround(t *testing.T) {
	s, err := NewSequenceReplayer(3, 8, 1, 5, 1, 3)
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		require.NoError(t, s.Add(transition(float64(i), 1), i == 0))
	}
	assert.Equal(t, 5, s.Capacity())

	batch, err := s.Sample()
	require.NoError(t, err)
	for b := 0; b < batch.BatchSize; b++ {
		first := batch.Observations[b]
		assert.GreaterOrEqual(t, first, 7.0, "evicted transition sampled")
		assert.LessOrEqual(t, first+float64(batch.Lengths[b]), 12.0,
			"sequence ran past the newest transition")
	}
}

func TestSequenceConfigValidate(t *testing.T) {
	assert.Error(t, SequenceConfig{0, 1, 10, 1}.Validate())
	assert.Error(t, SequenceConfig{4, 0, 10, 1}.Validate())
	assert.Error(t, SequenceConfig{4, 1, 3, 1}.Validate())
	assert.Error(t, SequenceConfig{4, 1, 10, 11}.Validate())
	assert.NoError(t, SequenceConfig{4, 1, 10, 10}.Validate())
}
