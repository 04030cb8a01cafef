// Package solver implements functionality to wrap Gorgonia Solvers
// so that they can be JSON serialized into configuration files.
package solver

import (
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/samuelfneumann/qnet/utils/jsonutils"
	G "gorgonia.org/gorgonia"
)

// Type describes different types of solvers that are available
type Type string

// Available solver types
const (
	Adam    Type = "Adam"
	RMSProp Type = "RMSProp"
	Vanilla Type = "Vanilla"
)

var registered = map[string]reflect.Type{
	string(Adam):    reflect.TypeOf(AdamConfig{}),
	string(RMSProp): reflect.TypeOf(RMSPropConfig{}),
	string(Vanilla): reflect.TypeOf(VanillaConfig{}),
}

var validate = validator.New()

// Config describes a Gorgonia Solver and can be used to create it
type Config interface {
	Create() G.Solver
	Type() Type
}

// Solver wraps Gorgonia Solvers so that they can be JSON marshalled
// and unmarshalled.
type Solver struct {
	G.Solver
	Config
}

// New returns a new Solver described by c. The fields of c are
// validated using their validate struct tags.
func New(c Config) (*Solver, error) {
	if err := validate.Struct(c); err != nil {
		return nil, fmt.Errorf("new: invalid %v config: %v", c.Type(), err)
	}
	return &Solver{Solver: c.Create(), Config: c}, nil
}

// String implements the fmt.Stringer interface
func (s *Solver) String() string {
	return fmt.Sprintf("{%v Solver: %+v}", s.Type(), s.Config)
}

// MarshalJSON implements the json.Marshaler interface
func (s *Solver) MarshalJSON() ([]byte, error) {
	return jsonutils.MarshalTagged(string(s.Type()), s.Config)
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (s *Solver) UnmarshalJSON(data []byte) error {
	value, _, err := jsonutils.UnmarshalTagged(data, registered)
	if err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}

	solver, err := New(value.(Config))
	if err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}
	*s = *solver
	return nil
}

// Reset returns a new Solver with the same configuration but none of
// the accumulated state of s, such as Adam's moment estimates
func (s *Solver) Reset() *Solver {
	return &Solver{Solver: s.Config.Create(), Config: s.Config}
}
