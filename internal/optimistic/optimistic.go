// ABOUTME: Snapshot/apply/confirm helper for optimistic UI mutations
// ABOUTME: Applies the local change first, then rolls back wholesale if the server call fails

package optimistic

// Run executes one optimistic mutation over *state:
//
//  1. snapshot the current state with clone
//  2. apply the local change
//  3. run the server call
//  4. on failure, restore the snapshot and return the error
//
// clone must return a deep copy; a shallow copy would let the rollback alias
// mutated internals. On success the locally applied state stands until the
// next confirmed refresh replaces it.
func Run[S any](state *S, clone func(S) S, apply func(*S), call func() error) error {
	snapshot := clone(*state)
	apply(state)
	if err := call(); err != nil {
		*state = snapshot
		return err
	}
	return nil
}
