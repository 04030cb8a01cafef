package plotter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovingAverage(t *testing.T) {
	tests := []struct {
		name   string
		data   []float64
		window int
		want   []float64
	}{
		{"window 1", []float64{1, 2, 3}, 1, []float64{1, 2, 3}},
		{"window 2", []float64{1, 3, 5, 7}, 2, []float64{1, 2, 4, 6}},
		{"window past end", []float64{2, 4}, 5, []float64{2, 3}},
		{"empty", nil, 3, []float64{}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			avg, err := MovingAverage(test.data, test.window)
			require.NoError(t, err)
			assert.InDeltaSlice(t, test.want, avg, 1e-12)
		})
	}

	_, err := MovingAverage([]float64{1}, 0)
	assert.Error(t, err)
}

func TestSaveLearningCurve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curve.png")
	series := map[string][]float64{
		"dqn":  {1, 2, 3, 4, 5},
		"drqn": {5, 4, 3, 2, 1},
	}
	require.NoError(t, SaveLearningCurve(series, 2, "Return", path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, SaveLearningCurve(series, 0, "Return", path))
}
