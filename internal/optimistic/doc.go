// Package optimistic implements the apply-first mutation pattern used for
// low-risk edits: the local state changes immediately, and a failed server
// write rolls the whole state back to the pre-mutation snapshot.
package optimistic
