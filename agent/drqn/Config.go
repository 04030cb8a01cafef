package drqn

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
	agent.Register(agent.EGreedyDRQNRecurrent, ConfigList{})
}

var validate = validator.New()

// ConfigList implements a list of Config's, one slice of values per
// Config field
type ConfigList struct {
	EncoderLayers      [][]int
	EncoderBiases      [][]bool
	EncoderActivations [][]*network.Activation

	Cell       []network.CellType
	HiddenSize []int

	Solver  []*solver.Solver
	InitWFn []*initwfn.InitWFn
	Epsilon []*schedule.Schedule

	ExpReplay []expreplay.SequenceConfig
	BurnIn    []int

	Tau                  []float64
	TargetUpdateInterval []int
	Double               []bool
}

// NewConfigList returns a ConfigList as an agent.TypedConfigList
func NewConfigList(
	EncoderLayers [][]int,
	EncoderBiases [][]bool,
	EncoderActivations [][]*network.Activation,
	Cell []network.CellType,
	HiddenSize []int,
	Solver []*solver.Solver,
	InitWFn []*initwfn.InitWFn,
	Epsilon []*schedule.Schedule,
	ExpReplay []expreplay.SequenceConfig,
	BurnIn []int,
	Tau []float64,
	TargetUpdateInterval []int,
	Double []bool,
) agent.TypedConfigList {
	return agent.NewTypedConfigList(ConfigList{
		EncoderLayers:        EncoderLayers,
		EncoderBiases:        EncoderBiases,
		EncoderActivations:   EncoderActivations,
		Cell:                 Cell,
		HiddenSize:           HiddenSize,
		Solver:               Solver,
		InitWFn:              InitWFn,
		Epsilon:              Epsilon,
		ExpReplay:            ExpReplay,
		BurnIn:               BurnIn,
		Tau:                  Tau,
		TargetUpdateInterval: TargetUpdateInterval,
		Double:               Double,
	})
}

// Type returns the type of Config stored in the list
func (c ConfigList) Type() agent.Type {
	return agent.EGreedyDRQNRecurrent
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

// Config implements a configuration for a DRQN agent
type Config struct {
	// Fully connected layers applied to each observation before the
	// recurrent cell
	EncoderLayers      []int
	EncoderBiases      []bool
	EncoderActivations []*network.Activation

	Cell       network.CellType `validate:"oneof=LSTM GRU"`
	HiddenSize int              `validate:"gt=0"`

	Solver  *solver.Solver     `validate:"required"`
	InitWFn *initwfn.InitWFn   `validate:"required"`
	Epsilon *schedule.Schedule `validate:"required"`

	// ExpReplay describes the sequences the network is trained on
	ExpReplay expreplay.SequenceConfig

	// BurnIn is the number of steps at the start of each sequence which
	// only warm up the recurrent state and are excluded from the loss
	BurnIn int `validate:"gte=0"`

	Tau                  float64 `validate:"gt=0,lte=1"`
	TargetUpdateInterval int     `validate:"gt=0"`
	Double               bool
}

// BatchSize returns the number of sequences in each update
func (c Config) BatchSize() int {
	return c.ExpReplay.BatchSize
}

// Type returns the type of the configuration
func (c Config) Type() agent.Type {
	return agent.EGreedyDRQNRecurrent
}

// Validate checks a Config to ensure it is a valid configuration of a
// DRQN agent.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate: %v", err)
	}

	if len(c.EncoderLayers) != len(c.EncoderBiases) {
		return fmt.Errorf("validate: invalid number of biases\n\twant(%v)"+
			"\n\thave(%v)", len(c.EncoderLayers), len(c.EncoderBiases))
	}
	if len(c.EncoderLayers) != len(c.EncoderActivations) {
		return fmt.Errorf("validate: invalid number of activations"+
			"\n\twant(%v)\n\thave(%v)", len(c.EncoderLayers),
			len(c.EncoderActivations))
	}

	if err := c.ExpReplay.Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if c.BurnIn >= c.ExpReplay.SequenceLength {
		return fmt.Errorf("validate: burn in (%v) must be shorter than the "+
			"sequence length (%v)", c.BurnIn, c.ExpReplay.SequenceLength)
	}
	return nil
}

// ValidAgent returns whether the agent is valid for the configuration
func (c Config) ValidAgent(a agent.Agent) bool {
	_, ok := a.(*DRQN)
	return ok
}

// CreateAgent creates a new DRQN agent based on the configuration
func (c Config) CreateAgent(e env.Environment, seed uint64,
	log logger.Logger) (agent.Agent, error) {
	a, err := New(e, c, seed, log)
	if err != nil {
		return nil, err
	}
	return a, nil
}
