package environment

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	ts "github.com/samuelfneumann/qnet/timestep"
)

// IntervalLimit ends episodes whenever any one of a chosen set of
// observation features leaves its interval
type IntervalLimit struct {
	intervals []r1.Interval
	indices   []int
	endType   ts.EndType
}

// NewIntervalLimit returns an Ender that ends episodes with end type
// endType whenever observation feature obsIndices[i] leaves limits[i].
func NewIntervalLimit(limits []r1.Interval, obsIndices []int,
	endType ts.EndType) *IntervalLimit {
	if len(limits) != len(obsIndices) {
		panic(fmt.Sprintf("newIntervalLimit: %v limits given for %v "+
			"indices", len(limits), len(obsIndices)))
	}

	return &IntervalLimit{limits, obsIndices, endType}
}

// End ends the episode if any tracked feature is out of bounds
func (i *IntervalLimit) End(t *ts.TimeStep) bool {
	for j, feature := range i.indices {
		v := t.Observation.AtVec(feature)
		if v > i.intervals[j].Max || v < i.intervals[j].Min {
			t.StepType = ts.Last
			t.SetEnd(i.endType)
			return true
		}
	}
	return false
}

// FunctionEnder ends an episode whenever a function of a vector
// (usually the underlying environment state) returns true.
type FunctionEnder struct {
	end     func(*mat.VecDense) bool
	endType ts.EndType
}

// NewFunctionEnder returns a new FunctionEnder which ends episodes with
// end type endType when f returns true.
func NewFunctionEnder(f func(*mat.VecDense) bool,
	endType ts.EndType) *FunctionEnder {
	return &FunctionEnder{f, endType}
}

// End ends the episode if the function of the observation is true
func (f *FunctionEnder) End(t *ts.TimeStep) bool {
	if f.end(t.Observation) {
		t.StepType = ts.Last
		t.SetEnd(f.endType)
		return true
	}
	return false
}

// MultiEnder ends an episode as soon as any of its Enders does. Enders
// are checked in order, so the first to end the episode decides the
// EndType.
type MultiEnder struct {
	enders []Ender
}

// NewMultiEnder returns a new MultiEnder
func NewMultiEnder(enders ...Ender) *MultiEnder {
	return &MultiEnder{enders}
}

// End ends the episode if any of the Enders ends it
func (m *MultiEnder) End(t *ts.TimeStep) bool {
	for _, e := range m.enders {
		if e.End(t) {
			return true
		}
	}
	return false
}
