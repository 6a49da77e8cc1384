package ir

// RunState is the lifecycle state of a test run.
type RunState string

const (
	// RunIdle means no script is compiled.
	RunIdle RunState = "idle"
	// RunReady means a script is compiled and the cursor is at 0.
	RunReady RunState = "ready"
	// RunRunning means at least one step has executed.
	RunRunning RunState = "running"
	// RunCompleted means the script was exhausted.
	RunCompleted RunState = "completed"
	// RunInvalid means the last compile failed.
	RunInvalid RunState = "invalid"
	// RunFaulted means a step failed at runtime.
	RunFaulted RunState = "faulted"
)

// Terminal reports whether no further steps may execute in this state.
func (s RunState) Terminal() bool {
	switch s {
	case RunCompleted, RunInvalid, RunFaulted:
		return true
	}
	return false
}

// Steppable reports whether step() is legal in this state.
func (s RunState) Steppable() bool {
	return s == RunReady || s == RunRunning
}
