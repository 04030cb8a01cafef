// Package schedule implements schedules of hyperparameters, such as
// the exploration rate of an ε-greedy policy, as a function of the
// number of environment steps taken.
package schedule

import (
	"fmt"
	"math"
	"reflect"

	"github.com/samuelfneumann/qnet/utils/jsonutils"
)

// Type is the type of a Schedule
type Type string

const (
	Constant    Type = "Constant"
	Linear      Type = "Linear"
	Exponential Type = "Exponential"
)

var registered = map[string]reflect.Type{
	string(Constant):    reflect.TypeOf(ConstantConfig{}),
	string(Linear):      reflect.TypeOf(LinearConfig{}),
	string(Exponential): reflect.TypeOf(ExponentialConfig{}),
}

// Config describes a schedule
type Config interface {
	// Value returns the value of the schedule after step steps
	Value(step int) float64
	Type() Type
	Validate() error
}

// Schedule wraps a schedule Config so that it can be JSON marshalled
// and unmarshalled
type Schedule struct {
	Config
}

// New returns a new Schedule described by c
func New(c Config) (*Schedule, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	return &Schedule{c}, nil
}

// String implements the fmt.Stringer interface
func (s *Schedule) String() string {
	return fmt.Sprintf("{%v Schedule: %+v}", s.Type(), s.Config)
}

// MarshalJSON implements the json.Marshaler interface
func (s *Schedule) MarshalJSON() ([]byte, error) {
	return jsonutils.MarshalTagged(string(s.Type()), s.Config)
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (s *Schedule) UnmarshalJSON(data []byte) error {
	value, _, err := jsonutils.UnmarshalTagged(data, registered)
	if err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}

	schedule, err := New(value.(Config))
	if err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}
	*s = *schedule
	return nil
}

// ConstantConfig is a schedule whose value never changes
type ConstantConfig struct {
	Level float64
}

// NewConstant returns a constant schedule
func NewConstant(level float64) (*Schedule, error) {
	return New(ConstantConfig{level})
}

func (c ConstantConfig) Value(int) float64 { return c.Level }
func (c ConstantConfig) Type() Type        { return Constant }
func (c ConstantConfig) Validate() error   { return nil }

// LinearConfig is a schedule which moves linearly from Start to End
// over Steps steps and stays at End afterwards
type LinearConfig struct {
	Start float64
	End   float64
	Steps int
}

// NewLinear returns a linear schedule
func NewLinear(start, end float64, steps int) (*Schedule, error) {
	return New(LinearConfig{start, end, steps})
}

// Value returns the value of the schedule after step steps
func (l LinearConfig) Value(step int) float64 {
	if step >= l.Steps {
		return l.End
	} else if step <= 0 {
		return l.Start
	}
	frac := float64(step) / float64(l.Steps)
	return l.Start + frac*(l.End-l.Start)
}

func (l LinearConfig) Type() Type { return Linear }

// Validate checks that the schedule has a positive number of steps
func (l LinearConfig) Validate() error {
	if l.Steps <= 0 {
		return fmt.Errorf("linear schedule must have positive steps but "+
			"got %v", l.Steps)
	}
	return nil
}

// ExponentialConfig is a schedule which decays geometrically from
// Start towards End by a factor of Decay per step:
//
//	value(t) = End + (Start - End) * Decay^t
type ExponentialConfig struct {
	Start float64
	End   float64
	Decay float64
}

// NewExponential returns an exponentially decaying schedule
func NewExponential(start, end, decay float64) (*Schedule, error) {
	return New(ExponentialConfig{start, end, decay})
}

// Value returns the value of the schedule after step steps
func (e ExponentialConfig) Value(step int) float64 {
	if step <= 0 {
		return e.Start
	}
	return e.End + (e.Start-e.End)*math.Pow(e.Decay, float64(step))
}

func (e ExponentialConfig) Type() Type { return Exponential }

// Validate checks that the decay rate is in (0, 1]
func (e ExponentialConfig) Validate() error {
	if e.Decay <= 0 || e.Decay > 1 {
		return fmt.Errorf("exponential decay must be in (0, 1] but got %v",
			e.Decay)
	}
	return nil
}
