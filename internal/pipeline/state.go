package pipeline

import (
	"aqpanel/internal/cleaning"
	"aqpanel/internal/collinearity"
	"aqpanel/internal/panel"
	"aqpanel/internal/report"
)

// State carries the values produced by each step to the next
type State struct {
	RunID  string
	Source string

	Raw      *panel.Table
	Cleaning *cleaning.Result
	Prune    *collinearity.PruneResult
	VIF      *collinearity.VIFResult
	// Final holds the normalized values of the features kept by the
	// VIF reducer, with the response, in the original row order.
	Final *panel.Table

	Artifacts []report.Artifact

	steps map[string]*StepState
	order []string
}

// NewState creates the state of a run reading source
func NewState(runID, source string) *State {
	return &State{
		RunID:  runID,
		Source: source,
		steps:  make(map[string]*StepState),
	}
}

// Step returns the runtime state of the step with id, creating it on
// first use
func (s *State) Step(id, name string) *StepState {
	if st, ok := s.steps[id]; ok {
		return st
	}
	st := NewStepState(id, name)
	s.steps[id] = st
	s.order = append(s.order, id)
	return st
}

// Steps returns the step states in the order they were first seen
func (s *State) Steps() []*StepState {
	out := make([]*StepState, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.steps[id])
	}
	return out
}
