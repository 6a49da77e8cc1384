package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps bounds RunToCompletion so that scripts ending in an
// unbounded repeat block still return.
const DefaultMaxSteps = 100000

// StepBudget counts the steps of one continuous run against a limit.
type StepBudget struct {
	maxSteps int
	current  int
}

// NewStepBudget creates a budget of maxSteps steps. A non-positive maxSteps
// selects DefaultMaxSteps.
func NewStepBudget(maxSteps int) *StepBudget {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &StepBudget{maxSteps: maxSteps}
}

// Spend records one step and fails once the limit is passed.
func (b *StepBudget) Spend(runID string) error {
	b.current++
	if b.current > b.maxSteps {
		return &BudgetExceededError{
			RunID: runID,
			Steps: b.current,
			Limit: b.maxSteps,
		}
	}
	return nil
}

// Current returns the number of steps spent.
func (b *StepBudget) Current() int {
	return b.current
}

// MaxSteps returns the limit.
func (b *StepBudget) MaxSteps() int {
	return b.maxSteps
}

// BudgetExceededError is returned when a continuous run uses up its budget.
// The run itself is left in its current state and may be resumed.
type BudgetExceededError struct {
	RunID string
	Steps int
	Limit int
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("run %s exceeded max steps: %d steps > %d limit",
		e.RunID, e.Steps, e.Limit)
}

// IsBudgetExceeded returns true if err is a BudgetExceededError.
func IsBudgetExceeded(err error) bool {
	var be *BudgetExceededError
	return errors.As(err, &be)
}
