package models

import "context"

// StepFunc performs the work of a single workflow step.
type StepFunc func(ctx context.Context) error

// StepDefinition describes one entry in the fixed step sequence. Resumable
// steps are skipped when a loaded checkpoint already lists them as
// completed; non-resumable steps (token acquisition) always execute because
// their results expire between runs.
type StepDefinition struct {
	Name      string
	Run       StepFunc
	Resumable bool
}
