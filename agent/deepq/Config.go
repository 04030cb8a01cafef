package deepq

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/samuelfneumann/qnet/agent"
	env "github.com/samuelfneumann/qnet/environment"
	"github.com/samuelfneumann/qnet/expreplay"
	"github.com/samuelfneumann/qnet/initwfn"
	"github.com/samuelfneumann/qnet/network"
	"github.com/samuelfneumann/qnet/schedule"
	"github.com/samuelfneumann/qnet/solver"
	"github.com/samuelfneumann/qnet/utils/logger"
)

func init() {
	// Register ConfigList type so that it can be typed using
	// agent.TypedConfigList to help with serialization/deserialization.
	agent.Register(agent.EGreedyDeepQMLP, ConfigList{})
}

var validate = validator.New()

// ConfigList implements a list of Config's in a more efficient manner
// than simply using a slice of Config's.
type ConfigList struct {
	Layers      [][]int                 // Layer sizes in neural net
	Biases      [][]bool                // Whether each layer should have a bias
	Activations [][]*network.Activation // Activation of each layer
	Solver      []*solver.Solver        // Solver for learning weights

	// Initialization algorithm for weights
	InitWFn []*initwfn.InitWFn

	Epsilon []*schedule.Schedule // Behaviour policy epsilon

	// Experience replay parameters
	ExpReplay []expreplay.Config

	// Target net updates
	Tau                  []float64 // Polyak averaging constant
	TargetUpdateInterval []int     // Number of updates between target updates

	Double []bool // Whether to use double Q-learning targets
}

// NewConfigList returns a new ConfigList as an agent.TypedConfigList.
// Because the returned value is a TypedList, it can safely be JSON
// serialized and deserialized without specifying what the type of
// the ConfigList is.
func NewConfigList(
	Layers [][]int,
	Biases [][]bool,
	Activations [][]*network.Activation,
	Solver []*solver.Solver,
	InitWFn []*initwfn.InitWFn,
	Epsilon []*schedule.Schedule,
	ExpReplay []expreplay.Config,
	Tau []float64,
	TargetUpdateInterval []int,
	Double []bool,
) agent.TypedConfigList {
	configs := ConfigList{
		Layers:               Layers,
		Biases:               Biases,
		Activations:          Activations,
		Solver:               Solver,
		InitWFn:              InitWFn,
		Epsilon:              Epsilon,
		ExpReplay:            ExpReplay,
		Tau:                  Tau,
		TargetUpdateInterval: TargetUpdateInterval,
		Double:               Double,
	}

	return agent.NewTypedConfigList(configs)
}

// Type returns the type of Config stored in the list
func (c ConfigList) Type() agent.Type {
	return agent.EGreedyDeepQMLP
}

// Config returns an empty Config of the same type as that stored
// by the ConfigList
func (c ConfigList) Config() agent.Config {
	return Config{}
}

// Len returns the number of Config's in the list
func (c ConfigList) Len() int {
	return agent.ListLen(c)
}

// Config implements a configuration for a DeepQ agent
type Config struct {
	Layers      []int                 // Layer sizes in neural net
	Biases      []bool                // Whether each layer should have a bias
	Activations []*network.Activation // Activation of each layer
	Solver      *solver.Solver        `validate:"required"`

	// Initialization algorithm for weights
	InitWFn *initwfn.InitWFn `validate:"required"`

	// Schedule of the behaviour policy's ε over environment steps
	Epsilon *schedule.Schedule `validate:"required"`

	// Experience replay parameters
	ExpReplay expreplay.Config

	// Target net updates
	Tau                  float64 `validate:"gt=0,lte=1"` // Polyak averaging constant
	TargetUpdateInterval int     `validate:"gt=0"`       // Updates between target updates

	// Double selects next actions with the learned network and
	// evaluates them with the target network
	Double bool
}

// BatchSize returns the batch size of the agent constructed using this
// Config
func (c Config) BatchSize() int {
	return c.ExpReplay.SampleSize
}

// Type returns the type of the configuration
func (c Config) Type() agent.Type {
	return agent.EGreedyDeepQMLP
}

// Validate checks a Config to ensure it is a valid configuration of a
// DeepQ agent.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate: %v", err)
	}

	if len(c.Layers) != len(c.Biases) {
		return fmt.Errorf("validate: invalid number of biases\n\twant(%v)"+
			"\n\thave(%v)", len(c.Layers), len(c.Biases))
	}
	if len(c.Layers) != len(c.Activations) {
		return fmt.Errorf("validate: invalid number of activations"+
			"\n\twant(%v)\n\thave(%v)", len(c.Layers), len(c.Activations))
	}

	if err := c.ExpReplay.Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	return nil
}

// ValidAgent returns whether the agent is valid for the configuration.
// That is, whether Agent a can be constructed with Config c.
func (c Config) ValidAgent(a agent.Agent) bool {
	_, ok := a.(*DeepQ)
	return ok
}

// CreateAgent creates a new DeepQ agent based on the configuration
func (c Config) CreateAgent(e env.Environment, seed uint64,
	log logger.Logger) (agent.Agent, error) {
	a, err := New(e, c, seed, log)
	if err != nil {
		return nil, err
	}
	return a, nil
}
