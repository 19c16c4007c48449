// Package harness runs YAML scenarios against a real orchestrator.
//
// Each scenario runs in a fresh in-memory store with a stepping clock and
// sequential ids, so the event trail it produces is reproducible and can be
// compared against a golden file.
//
// A scenario is a list of steps against one household:
//
//	name: book-cleaner
//	description: Book the default cleaner in the second window.
//	steps:
//	  - submit: book cleaner next week
//	    expect:
//	      card: DRAFT
//	      body: {selected_time_window_index: 0}
//	  - modify: {selected_time_window_index: 1}
//	  - confirm: true
//	    expect:
//	      card: DONE
//	assertions:
//	  - type: event_count
//	    event: DRAFT_MODIFIED
//	    count: 1
//
// modify, confirm and get_draft act on the draft created by the most recent
// submit step. Expectations on card bodies are subset matches: only the keys
// named in the scenario are compared.
//
// reorder_failures scripts adapter failures for the reorder vendor. Each
// confirm that reaches the adapter consumes one entry; once the list is
// exhausted executions succeed.
package harness
