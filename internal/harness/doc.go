// Package harness runs reconciliation scenarios end to end.
//
// A scenario seeds an in-memory host with commits, drives it through
// steps, and asserts on the completions and the final ledger. Every step
// goes through the same pipeline a live host uses: the host publishes a
// trigger, the scheduler debounces and merges it, and the resync engine
// realigns the ledger.
//
// # Scenario Format
//
//	name: delete_middle
//	description: "Deleting a commit rolls back its writes"
//	commits:
//	  - role: assistant
//	    id: b0
//	    content: "<insert>\nhp: 10\n</insert>"
//	steps:
//	  - trigger: chat_changed
//	  - action: append
//	    role: assistant
//	    content: "<update>\nhp: 7\n</update>"
//	  - action: swipe
//	    position: 1
//	    content: "<update>\nhp: 3\n</update>"
//	    with:
//	      - trigger: generation_started
//	  - action: mutate
//	    mutation: { op: insert, path: bag, value: [rope] }
//	assertions:
//	  - type: document
//	    expect: { hp: 10 }
//	  - type: positions
//	    ids: [b0, gen-1]
//	  - type: completion
//	    at: -1
//	    phases: [resync]
//
// Host actions (append, edit, delete, swipe, switch, echo) submit the
// trigger the host publishes. Steps under "with" run while the step's
// debounce window is open, so their jobs are merged into its batch.
//
// # Assertion Types
//
//   - document: the stripped document, or the value at path, equals expect
//   - positions: the final position sequence
//   - log: the ops recorded for a commit id
//   - snapshot: the document as of an id or position
//   - completion: phases, positions, last id or document of one completion
//   - completion_count: the number of completions
//
// # Deterministic Testing
//
// Generated ids come from a sequence ("gen-1", "gen-2", ...) and the
// scheduler runs on an auto-advancing clock, so traces are identical
// across runs and can be compared against golden files.
package harness
