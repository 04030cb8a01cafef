package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samuelfneumann/qnet/experiment/plotter"
	"github.com/samuelfneumann/qnet/experiment/tracker"
)

func plotCommand() *cobra.Command {
	var dataFiles []string
	var window int
	var out, yLabel string

	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Plot learning curves from saved tracker data",
		RunE: func(cmd *cobra.Command, args []string) error {
			series := make(map[string][]float64, len(dataFiles))
			for _, file := range dataFiles {
				data, err := tracker.LoadData(file)
				if err != nil {
					return fmt.Errorf("plot: %v", err)
				}
				series[seriesName(file)] = data
			}
			if err := plotter.SaveLearningCurve(series, window, yLabel,
				out); err != nil {
				return fmt.Errorf("plot: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "saved", out)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&dataFiles, "data", "d", nil, "Tracker data files to plot")
	cmd.Flags().IntVarP(&window, "window", "w", 10, "Episodes in the moving average")
	cmd.Flags().StringVarP(&out, "out", "o", "curve.png", "Image file to save the plot in")
	cmd.Flags().StringVar(&yLabel, "label", "Return", "Label of the y axis")
	cmd.MarkFlagRequired("data")
	return cmd
}

// seriesName names a data file by its directory and base name without
// extension, e.g. results/dqn/returns.bin gives dqn/returns
func seriesName(file string) string {
	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	dir := filepath.Base(filepath.Dir(file))
	if dir == "." || dir == string(filepath.Separator) {
		return base
	}
	return dir + "/" + base
}
