// Package inbox merges realtime events into per-conversation views.
//
// Events may arrive duplicated or out of order: the initial history fetch
// overlaps the live stream, and an optimistic local append is later echoed
// by the channel. The view guarantees each message ID appears exactly once
// and that a conversation row never moves backwards in time.
package inbox
