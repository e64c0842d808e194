package tasks

import (
	"context"
)

// StepStatus has status about a step, to be reported as part of the overall task.
type StepStatus struct {
	Step    string `json:"step"`
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewStepStatus will create a new step status struct
func NewStepStatus(stepName string, state State, details string, err error) *StepStatus {
	status := &StepStatus{
		Step:    stepName,
		Status:  string(state),
		Details: details,
	}

	if err != nil {
		status.Error = err.Error()
	}

	return status
}

func (s *StepStatus) AsLogFields() []any {
	return []any{
		"step", s.Step,
		"status", s.Status,
		"details", s.Details,
		"error", s.Error,
	}
}

// Step is a unit of work. Multiple steps accomplish a task.
type Step interface {
	// Name of this step
	Name() string
	// Run will execute the code to accomplish this step, returning details
	// to be reported in the step status.
	Run(ctx context.Context) (string, error)
}

type funcStep struct {
	name string
	fn   func(ctx context.Context) (string, error)
}

// NewStep wraps fn as a named Step.
func NewStep(name string, fn func(ctx context.Context) (string, error)) Step {
	return &funcStep{
		name: name,
		fn:   fn,
	}
}

func (s *funcStep) Name() string {
	return s.name
}

func (s *funcStep) Run(ctx context.Context) (string, error) {
	return s.fn(ctx)
}
