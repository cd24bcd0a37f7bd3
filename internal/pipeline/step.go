package pipeline

import (
	"context"
	"time"
)

// Step IDs in execution order
const (
	StepLoad   = "load"
	StepClean  = "clean"
	StepPrune  = "prune"
	StepVIF    = "vif"
	StepReport = "report"
)

// Step is a single stage of a run
type Step interface {
	// ID returns the unique identifier for this Step
	ID() string

	// Name returns the human-readable name for this Step
	Name() string

	// Execute runs the Step, reading its inputs from state and storing
	// its outputs there
	Execute(ctx context.Context, state *State) error
}

// StepStatus represents the current status of a Step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// StepState represents the runtime state of a Step
type StepState struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Status    StepStatus             `json:"status"`
	StartTime *time.Time             `json:"start_time,omitempty"`
	EndTime   *time.Time             `json:"end_time,omitempty"`
	Duration  string                 `json:"duration,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewStepState creates a pending step state
func NewStepState(id, name string) *StepState {
	return &StepState{
		ID:       id,
		Name:     name,
		Status:   StepStatusPending,
		Metadata: make(map[string]interface{}),
	}
}

// Start marks the Step as active and sets the start time
func (s *StepState) Start() {
	now := time.Now()
	s.StartTime = &now
	s.Status = StepStatusActive
}

// Complete marks the Step as completed and sets the end time
func (s *StepState) Complete() {
	s.finish()
	s.Status = StepStatusCompleted
}

// Fail marks the Step as failed with the given error
func (s *StepState) Fail(err error) {
	s.finish()
	s.Status = StepStatusFailed
	if err != nil {
		s.Error = err.Error()
	}
}

// Elapsed returns the step's run time, zero until it has finished
func (s *StepState) Elapsed() time.Duration {
	if s.StartTime == nil || s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(*s.StartTime)
}

func (s *StepState) finish() {
	now := time.Now()
	s.EndTime = &now
	if s.StartTime != nil {
		s.Duration = now.Sub(*s.StartTime).String()
	}
}

// SetMetadata stores a value describing the step's outcome
func (s *StepState) SetMetadata(key string, value interface{}) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]interface{})
	}
	s.Metadata[key] = value
}
