// Package plotter plots learning curves from data saved by experiment
// trackers
package plotter

import (
	"fmt"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/samuelfneumann/qnet/utils/floatutils"
)

// MovingAverage returns the trailing moving average of data over
// windows of window elements. Element i of the result averages data
// from max(0, i-window+1) to i inclusive.
func MovingAverage(data []float64, window int) ([]float64, error) {
	if window <= 0 {
		return nil, fmt.Errorf("movingAverage: window must be positive "+
			"but got %v", window)
	}

	return floatutils.MovingAverage(data, window), nil
}

// LearningCurve returns a plot with one line per series, where each
// line is the moving average of the series over window episodes.
// Lines are added in order of series name.
func LearningCurve(series map[string][]float64, window int,
	yLabel string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Learning Curve"
	p.X.Label.Text = "Episode"
	p.Y.Label.Text = yLabel

	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		avg, err := MovingAverage(series[name], window)
		if err != nil {
			return nil, fmt.Errorf("learningCurve: %v", err)
		}
		if len(avg) == 0 {
			continue
		}

		points := make(plotter.XYs, len(avg))
		for j, v := range avg {
			points[j] = plotter.XY{X: float64(j), Y: v}
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			return nil, fmt.Errorf("learningCurve: %v: %v", name, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	return p, nil
}

// SaveLearningCurve plots a learning curve and saves it to path. The
// image format is determined by the extension of path.
func SaveLearningCurve(series map[string][]float64, window int,
	yLabel, path string) error {
	p, err := LearningCurve(series, window, yLabel)
	if err != nil {
		return fmt.Errorf("saveLearningCurve: %v", err)
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("saveLearningCurve: %v", err)
	}
	return nil
}
