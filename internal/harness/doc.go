// Package harness runs store scenarios as executable contract tests.
//
// A scenario compiles slice specs, builds a store, applies a list of steps
// and checks assertions against the resulting trace and final state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	specs:
//	  - ../specs/counter          # directories or .cue files, relative to this file
//	session: test-session-001     # optional fixed session ID
//	preloaded: { count: 5 }       # optional preloaded state
//	steps:
//	  - dispatch: { type: INCREMENT, by: 2 }
//	  - dispatch: { type: HALVE }
//	    expect_error: RULE_EVAL
//	  - replace_specs: [../specs/counter_v2]
//	assertions:
//	  - type: trace_contains
//	    action: INCREMENT
//	    fields: { by: 2 }
//	  - type: final_state
//	    path: count
//	    expect: 7
//
// # Assertion Types
//
//   - trace_contains: a successful dispatch of action whose fields include fields
//   - trace_order: the first successful dispatch of each action appears in order
//   - trace_count: action was dispatched successfully exactly count times
//   - final_state: the value at path (dotted, empty for the whole state) equals expect
//   - unchanged: step left the state reference untouched
//
// # Deterministic Testing
//
// Every run uses an in-memory journal, a fixed session ID and logical
// clocks, so the same scenario always produces byte-identical traces for
// golden comparison. Scenarios that never replace their specs are also
// replayed from the journal and must reproduce every recorded state.
package harness
