// Package harness runs protocol conformance scenarios.
//
// A scenario names a protocol descriptor and a list of steps. Each step sends
// a typed command line, optionally supplies the device answer, and either
// expects the exchange to be journaled or expects it to be rejected by the
// schema. Assertions then check the journaled trace.
//
// # Scenario Format
//
//	name: worker_frequency
//	description: "Set and read back the frequency"
//	protocol: mvp_worker/v1.0.0/release
//	token: tx-golden-001
//	steps:
//	  - send: "!f=1000000"
//	    answer:
//	      fields: { freq: 1000000 }
//	  - send: "!g=200"
//	    reject: validation_failed
//	  - send: "?temp"
//	    answer:
//	      error: E_COMMAND_NOT_PERMITTED
//	      fields: { error_message: busy }
//	assertions:
//	  - type: trace_contains
//	    command: SET_FREQ
//	    args: { freq: 1000000 }
//	  - type: error_count
//	    count: 1
//
// Instead of an exact protocol key a scenario may give device, version and
// a lookup policy ("exact" or "same-major"). A tables directory of CUE
// protocol tables, relative to the scenario file, replaces the built-in
// tables.
//
// # Assertion Types
//
//   - trace_contains: a call with the command and a subset of the args exists
//   - trace_order: the commands were called in this order
//   - trace_count: the command was called exactly count times
//   - error_count: exactly count answers carry an error code
//   - pending_count: exactly count calls have no answer
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory journal, a fixed transaction token and a
// deterministic clock, so identical scenarios produce byte-identical traces
// for golden comparison.
package harness
