package models

import (
	"slices"
	"time"
)

// Checkpoint is a durable snapshot of a run: the workflow state plus the
// ordered names of steps that finished. A step name appears in
// CompletedSteps only after its side effects are reflected in State.
type Checkpoint struct {
	RunID          string        `json:"run_id"` // Stable identifier for one logical run
	State          WorkflowState `json:"state"`  // State as of the last completed step
	CompletedSteps []string      `json:"completed_steps"`
	SavedAt        time.Time     `json:"saved_at"`
}

// StepCompleted reports whether the named step finished in a previous run.
func (c *Checkpoint) StepCompleted(name string) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.CompletedSteps, name)
}

// LastStep returns the most recently completed step name, or "" for a fresh
// checkpoint.
func (c *Checkpoint) LastStep() string {
	if c == nil || len(c.CompletedSteps) == 0 {
		return ""
	}
	return c.CompletedSteps[len(c.CompletedSteps)-1]
}
