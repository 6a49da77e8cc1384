// Package engine implements the CPU test execution engine.
//
// A TestRun owns one compiled test script and the Simulation it drives. Each
// call to Step executes exactly one simple statement through the
// StepExecutor, expanding repeat and while blocks as the cursor reaches them.
//
// ARCHITECTURE:
//
// Single owner:
// A TestRun and its Simulation are never shared. The store calls every
// method from its command loop goroutine, and observers only ever see the
// copies returned by View.
//
// State machine:
// Idle -> Ready -> Running -> Completed | Faulted, with Invalid after a
// failed compile. Completed, Faulted and Invalid are terminal until the next
// Compile or Reset.
//
// I/O:
// Steps that read files (load, compare-to) go through the IO interface, so a
// step never touches the file system directly. A failed read leaves the
// simulation unchanged and faults the run with FILE_NOT_FOUND.
//
// Comparison:
// When the script is exhausted and compare text is present, the output log
// is compared line by line (see Compare). The result is reported with the
// completion outcome; a mismatch does not fault the run.
package engine
