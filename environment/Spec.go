package environment

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SpecType determines what kind of specification a Spec is. A Spec can
// specify the layout of an acion, an observation, a discount, or a reward
type SpecType int

const (
	Action SpecType = iota
	Observation
	Discount
	Reward
)

func (s SpecType) String() string {
	switch s {
	case Action:
		return "Action"
	case Observation:
		return "Observation"
	case Discount:
		return "Discount"
	default:
		return "Reward"
	}
}

// Cardinality determines the cardinality of a number (discrete or continuous)
type Cardinality string

const (
	Continuous Cardinality = "Continuous"
	Discrete   Cardinality = "Discrete"
)

// Spec implements an environment specification, which tells the type,
// shape, and bounds of an action, observation, discount, or reward in
// an environment
type Spec struct {
	Shape      mat.Vector
	Type       SpecType
	LowerBound mat.Vector
	UpperBound mat.Vector
	Cardinality
}

// NewSpec constructs a new environment specification
// The shape argument outlines the shape of the data described by the
// specification. The argument t outlines what the specification is
// describing (e.g. actions, observations, etc.). The cardinality
// arguments describes whether the values that the spec describes are
// continuous or discrete.
func NewSpec(shape mat.Vector, t SpecType, lowerBound,
	upperBound mat.Vector, cardinality Cardinality) Spec {
	if shape.Len() != lowerBound.Len() {
		panic(fmt.Sprintf("newSpec: shape length %v must match lower bounds "+
			"length %v", shape.Len(), lowerBound.Len()))
	}
	if shape.Len() != upperBound.Len() {
		panic(fmt.Sprintf("newSpec: shape length %v must match upper bounds "+
			"length %v", shape.Len(), upperBound.Len()))
	}
	return Spec{shape, t, lowerBound, upperBound, cardinality}
}

// NumActions returns the number of actions in a discrete action Spec.
// Discrete actions must be a single integer enumerated from 0, so any
// other Spec results in an error.
func NumActions(spec Spec) (int, error) {
	if spec.Type != Action {
		return 0, fmt.Errorf("numActions: spec of type %v is not an action "+
			"spec", spec.Type)
	}
	if spec.Cardinality != Discrete {
		return 0, fmt.Errorf("numActions: actions must be discrete")
	}
	if spec.Shape.Len() != 1 {
		return 0, fmt.Errorf("numActions: actions must be 1-dimensional "+
			"but got %v dimensions", spec.Shape.Len())
	}
	if spec.LowerBound.AtVec(0) != 0 {
		return 0, fmt.Errorf("numActions: actions must be enumerated "+
			"from 0 but got lower bound %v", spec.LowerBound.AtVec(0))
	}

	return int(spec.UpperBound.AtVec(0)) + 1, nil
}

// NumFeatures returns the number of features in an observation Spec
func NumFeatures(spec Spec) int {
	return spec.Shape.Len()
}
