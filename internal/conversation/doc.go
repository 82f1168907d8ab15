// Package conversation owns the conversation lifecycle: the transition
// table between automated and human handling, and the service that applies
// transitions, assignments and agent sends against the store.
//
// Lifecycle transitions are deliberately not optimistic. The status controls
// whether the automated assistant replies, so the UI waits for store
// confirmation before reflecting a new status.
package conversation
