package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/samuelfneumann/qnet/agent"
	"github.com/samuelfneumann/qnet/experiment"
	"github.com/samuelfneumann/qnet/experiment/checkpointer"
	"github.com/samuelfneumann/qnet/experiment/tracker"
	"github.com/samuelfneumann/qnet/utils/logger"
	"github.com/samuelfneumann/qnet/utils/progressbar"
)

func runCommand() *cobra.Command {
	var configPath, outDir string
	var index, checkpointEvery int
	var progress bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one configuration of an experiment sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			if index < 0 {
				return fmt.Errorf("run: index must be non-negative but "+
					"got %v", index)
			}
			data, err := os.ReadFile(configPath)
			if err != nil {
				return fmt.Errorf("run: %v", err)
			}
			var conf experiment.Config
			if err := json.Unmarshal(data, &conf); err != nil {
				return fmt.Errorf("run: could not parse config: %v", err)
			}
			if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
				return fmt.Errorf("run: %v", err)
			}

			log, err := newLogger()
			if err != nil {
				return fmt.Errorf("run: %v", err)
			}
			return runExperiment(cmd, conf, index, outDir, checkpointEvery,
				progress, log)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Experiment configuration file")
	cmd.Flags().IntVarP(&index, "index", "i", 0, "Index of the agent configuration in the sweep")
	cmd.Flags().StringVarP(&outDir, "out", "o", "results", "Directory to save data in")
	cmd.Flags().IntVar(&checkpointEvery, "checkpoint-every", 0, "Save the agent every N steps, never if 0")
	cmd.Flags().BoolVar(&progress, "progress", false, "Display a progress bar")
	cmd.MarkFlagRequired("config")
	return cmd
}

func runExperiment(cmd *cobra.Command, conf experiment.Config, index int,
	outDir string, checkpointEvery int, progress bool,
	log logger.Logger) error {
	trackers := []tracker.Tracker{
		tracker.NewReturn(filepath.Join(outDir, "returns.bin")),
		tracker.NewEpisodeLength(filepath.Join(outDir, "lengths.bin")),
	}
	evalTrackers := []tracker.Tracker{
		tracker.NewReturn(filepath.Join(outDir, "eval.bin")),
	}

	exp, a, err := conf.CreateExp(index, seed, trackers, evalTrackers, nil,
		log)
	if err != nil {
		return fmt.Errorf("run: %v", err)
	}
	if closer, ok := a.(agent.Closer); ok {
		defer closer.Close()
	}
	online := exp.(*experiment.Online)

	if checkpointEvery > 0 {
		saver, ok := a.(agent.Saver)
		if !ok {
			return fmt.Errorf("run: agent cannot be checkpointed")
		}
		c, err := checkpointer.NewNStep(checkpointEvery, saver,
			checkpointer.FilenameEnumerator(0,
				filepath.Join(outDir, "agent"), ".bin"))
		if err != nil {
			return fmt.Errorf("run: %v", err)
		}
		online.AddCheckpointer(c)
	}

	var bar *progressbar.ManualProgressBar
	if progress {
		bar = progressbar.NewManualProgressBar(cmd.OutOrStdout(), 50,
			int(conf.MaxSteps))
		online.SetProgressBar(bar)
	}

	log.Info("starting experiment", "index", index, "seed", seed,
		"agent", conf.AgentConf.Type)
	runErr := online.Run(cmd.Context())
	if bar != nil {
		bar.Finish()
	}

	// Data gathered before an interruption is still saved
	if err := online.Save(); err != nil {
		return fmt.Errorf("run: %v", err)
	}
	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}
	log.Info("experiment finished", "steps", online.Steps(),
		"episodes", online.Episodes())
	return nil
}
