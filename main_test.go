package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/qnet/experiment/tracker"
)

const configJSON = `{
	"Type": "OnlineExperiment",
	"MaxSteps": 40,
	"EnvConf": {
		"Environment": "TMaze",
		"Task": "Cue",
		"EpisodeCutoff": 8,
		"Discount": 0.99,
		"CorridorLength": 2
	},
	"AgentConf": {
		"Type": "EGreedyDRQN-Recurrent",
		"ConfigList": {
			"EncoderLayers": [[]],
			"EncoderBiases": [[]],
			"EncoderActivations": [[]],
			"Cell": ["GRU"],
			"HiddenSize": [4],
			"Solver": [{"Type": "Vanilla", "Config": {"StepSize": 0.01,
				"Batch": 2}}],
			"InitWFn": [{"Type": "GlorotU", "Config": {"Gain": 1}}],
			"Epsilon": [{"Type": "Constant", "Config": {"Level": 0.5}}],
			"ExpReplay": [{"SequenceLength": 4, "BatchSize": 2,
				"MaxReplayCapacity": 100, "MinReplayCapacity": 8}],
			"BurnIn": [1],
			"Tau": [0.5],
			"TargetUpdateInterval": [1],
			"Double": [true]
		}
	}
}`

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := rootCommand()
	root.SetOut(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func TestRunAndPlot(t *testing.T) {
	dir := t.TempDir()
	config := filepath.Join(dir, "exp.json")
	require.NoError(t, os.WriteFile(config, []byte(configJSON), 0644))

	out := filepath.Join(dir, "drqn")
	execute(t, "run", "--config", config, "--out", out, "--seed", "3",
		"--checkpoint-every", "20", "--log-level", "error")

	lengths, err := tracker.LoadData(filepath.Join(out, "lengths.bin"))
	require.NoError(t, err)
	assert.NotEmpty(t, lengths)
	for _, name := range []string{"returns.bin", "eval.bin", "agent1.bin",
		"agent2.bin"} {
		assert.FileExists(t, filepath.Join(out, name))
	}

	curve := filepath.Join(dir, "curve.png")
	stdout := execute(t, "plot", "--data", filepath.Join(out, "returns.bin"),
		"--window", "2", "--out", curve)
	assert.Contains(t, stdout, curve)
	assert.FileExists(t, curve)
}

func TestRunRejectsNegativeIndex(t *testing.T) {
	dir := t.TempDir()
	config := filepath.Join(dir, "exp.json")
	require.NoError(t, os.WriteFile(config, []byte(configJSON), 0644))

	root := rootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--config", config, "--index=-1",
		"--out", filepath.Join(dir, "out")})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")
	assert.NoDirExists(t, filepath.Join(dir, "out"))
}

func TestSeriesName(t *testing.T) {
	assert.Equal(t, "dqn/returns", seriesName("results/dqn/returns.bin"))
	assert.Equal(t, "returns", seriesName("returns.bin"))
}
