// Package harness runs YAML test suites against a cpustore.Store.
//
// # Scenario Format
//
//	name: add
//	description: "Add.hack passes its compare file"
//	image: add/Add.hack      # relative to the scenario file
//	test: Add.tst            # optional; defaults to the image's first .tst
//	script: |                # optional inline script instead of test
//	  ticktock;
//	compare: |               # compare text for an inline script
//	  ...
//	animate: false
//	max_steps: 1000          # bound for run-to-completion
//	steps: 3                 # step exactly this many times instead
//	assertions:
//	  - type: outcome
//	    outcome: completed
//	  - type: comparison
//	    passed: true
//	  - type: ram
//	    address: 0
//	    value: 8
//
// # Assertion Types
//
//   - outcome: final run state (ready, running, completed, faulted,
//     invalid, idle) or "paused" / "budget"
//   - comparison: the comparison passed or failed, optionally at line
//   - no_comparison: the run finished without a comparison
//   - register: A, D or PC holds value
//   - ram: RAM[address] holds value
//   - status_contains: some status message contains text
//   - output: the output log equals text
//   - event_count: count events of kind event were published
//   - error_code: the last reported error had code
//   - journal: the journal holds count runs, the last with outcome
//
// # Deterministic Testing
//
// Every scenario runs in a fresh store with testutil.DeterministicClock
// event seqs, testutil.SequentialIDs run ids and an in-memory SQLite
// journal, so the trace is identical across runs and can be compared with
// golden files.
package harness
