// Package memory implements the post-turn curation pipeline over the
// bounded, tiered conversation memory: fact extraction and merge, level-0
// summarization, and hierarchical re-summarization.
//
// The pipeline is best-effort by contract. Each stage's outcome is an
// explicit success/failure result merged independently into the memory
// state; a failed stage is logged and leaves its slice of the state
// unchanged while the turn itself still completes. Turn-fatal faults never
// originate here.
package memory
