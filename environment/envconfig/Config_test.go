package envconfig

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	env "github.com/samuelfneumann/qnet/environment"
	"github.com/samuelfneumann/qnet/environment/wrappers"
)

func TestCreateFromJSON(t *testing.T) {
	data := []byte(`{
		"Environment": "Cartpole",
		"Task": "Balance",
		"EpisodeCutoff": 500,
		"Discount": 0.99,
		"Mask": [0, 2],
		"Flicker": 0.25
	}`)

	var c Config
	require.NoError(t, json.Unmarshal(data, &c))

	e, step, err := c.Create(1)
	require.NoError(t, err)
	assert.True(t, step.First())
	assert.IsType(t, &wrappers.Flicker{}, e)
	assert.Equal(t, 2, env.NumFeatures(e.ObservationSpec()))
}

func TestCreateTMaze(t *testing.T) {
	c := Config{
		Environment:    TMaze,
		Task:           Cue,
		EpisodeCutoff:  50,
		Discount:       0.98,
		CorridorLength: 5,
	}

	e, _, err := c.Create(3)
	require.NoError(t, err)
	n, err := env.NumActions(e.ActionSpec())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		conf Config
	}{
		{"unknown env", Config{Environment: "Acrobot", Task: Balance,
			EpisodeCutoff: 1, Discount: 1}},
		{"zero cutoff", Config{Environment: Cartpole, Task: Balance,
			Discount: 1}},
		{"discount", Config{Environment: Cartpole, Task: Balance,
			EpisodeCutoff: 1, Discount: 1.5}},
		{"flicker", Config{Environment: Cartpole, Task: Balance,
			EpisodeCutoff: 1, Discount: 1, Flicker: 2}},
		{"corridor", Config{Environment: TMaze, Task: Cue,
			EpisodeCutoff: 1, Discount: 1}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Error(t, test.conf.Validate())
		})
	}

	_, _, err := Config{Environment: Cartpole, Task: Cue, EpisodeCutoff: 1,
		Discount: 1}.Create(1)
	assert.Error(t, err, "cartpole has no cue task")
}
