package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/samuelfneumann/qnet/examples"
	"github.com/samuelfneumann/qnet/experiment/plotter"
)

func exampleCommand() *cobra.Command {
	var steps uint
	var plotPath string
	var window int

	cmd := &cobra.Command{
		Use:       "example [" + strings.Join(examples.Names(), "|") + "]",
		Short:     "Run an example experiment",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: examples.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return fmt.Errorf("example: %v", err)
			}

			name := args[0]
			returns, evalReturns, err := examples.Run(cmd.Context(), name,
				steps, seed, log)
			if err != nil {
				return fmt.Errorf("example: %v", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%v: %v training episodes\n", name, len(returns))
			if len(evalReturns) > 0 {
				fmt.Fprintf(out, "mean greedy return: %.2f\n",
					stat.Mean(evalReturns, nil))
			}

			if plotPath != "" {
				series := map[string][]float64{"train": returns}
				if len(evalReturns) > 0 {
					series["eval"] = evalReturns
				}
				if err := plotter.SaveLearningCurve(series, window, "Return",
					plotPath); err != nil {
					return fmt.Errorf("example: %v", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().UintVar(&steps, "steps", 20_000, "Number of training steps")
	cmd.Flags().StringVar(&plotPath, "plot", "", "Save a learning curve to this file")
	cmd.Flags().IntVarP(&window, "window", "w", 10, "Episodes in the moving average")
	return cmd
}
