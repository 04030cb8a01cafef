package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	_ "github.com/samuelfneumann/qnet/agent/deepq"
	_ "github.com/samuelfneumann/qnet/agent/drqn"
	"github.com/samuelfneumann/qnet/utils/logger"
)

var (
	seed     uint64
	logLevel string
	logFile  string
)

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "qnet",
		Short:         "Train deep Q-learning agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Uint64Var(&seed, "seed", 0, "Seed for all randomness")
	root.PersistentFlags().StringVar(&logLevel, "log-level", logger.LevelInfo, "Log level (debug, info, warning, error)")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "Log to a rotating JSON file instead of the console")

	root.AddCommand(runCommand())
	root.AddCommand(plotCommand())
	root.AddCommand(exampleCommand())
	return root
}

// newLogger returns the logger described by the persistent flags
func newLogger() (logger.Logger, error) {
	s := logger.Settings{Level: logLevel, Type: logger.TypeConsole}
	if logFile != "" {
		s.Type = logger.TypeFile
		s.FilePath = logFile
	}
	return logger.New(s)
}

// main entry point to all experiments
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
