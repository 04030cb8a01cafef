package floatutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxSlice(t *testing.T) {
	max, indices := MaxSlice([]float64{1, 3, 2, 3})
	assert.Equal(t, 3.0, max)
	assert.Equal(t, []int{1, 3}, indices)

	max, indices = MaxSlice([]float64{5, 1})
	assert.Equal(t, 5.0, max)
	assert.Equal(t, []int{0}, indices)
}

func TestClip(t *testing.T) {
	assert.Equal(t, 1.0, Clip(3, -1, 1))
	assert.Equal(t, -1.0, Clip(-3, -1, 1))
	assert.Equal(t, 0.5, Clip(0.5, -1, 1))
}

func TestMovingAverage(t *testing.T) {
	avg := MovingAverage([]float64{2, 4, 6, 8}, 2)
	assert.Equal(t, []float64{2, 3, 5, 7}, avg)

	assert.Equal(t, []float64{1, 3}, MovingAverage([]float64{1, 3}, 0))
}
