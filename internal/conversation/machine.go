// ABOUTME: Lifecycle state machine for conversations
// ABOUTME: Pure transition table; no I/O, evaluated before any store write

package conversation

import (
	"errors"
	"fmt"

	"github.com/impulsalab/crm-core/internal/store"
)

// ErrInvalidTransition is returned when a transition is not allowed from the
// conversation's current status. The status is left untouched.
var ErrInvalidTransition = errors.New("invalid transition")

// Transition names a lifecycle operation. The string values are the action
// names used by the channel integrations and audit trail.
type Transition string

const (
	TransitionPause     Transition = "pausar"
	TransitionResume    Transition = "reanudar"
	TransitionArchive   Transition = "archivar"
	TransitionUnarchive Transition = "desarchivar"
)

// transitionTable maps each transition to its allowed source statuses and
// single target status.
//
//   - pausar: a human takes over; suppresses the automated assistant.
//   - reanudar: hands the conversation back to automation.
//   - archivar: allowed from every non-terminal status. The prior status is
//     not recorded, so desarchivar cannot restore it.
//   - desarchivar: always re-enters en_espera_agente, the default re-entry
//     state, regardless of the status before archiving.
//
// `cerrada` appears in no source set: it is terminal.
var transitionTable = map[Transition]struct {
	from   []store.ConversationStatus
	target store.ConversationStatus
}{
	TransitionPause: {
		from:   []store.ConversationStatus{store.StatusAutomated, store.StatusAwaitingAgent},
		target: store.StatusHITLActive,
	},
	TransitionResume: {
		from:   []store.ConversationStatus{store.StatusHITLActive},
		target: store.StatusAutomated,
	},
	TransitionArchive: {
		from: []store.ConversationStatus{
			store.StatusAutomated,
			store.StatusHITLActive,
			store.StatusAwaitingAgent,
			store.StatusArchived,
		},
		target: store.StatusArchived,
	},
	TransitionUnarchive: {
		from:   []store.ConversationStatus{store.StatusArchived},
		target: store.StatusAwaitingAgent,
	},
}

// Next returns the status a conversation in `current` moves to under `tr`.
// Returns ErrInvalidTransition if the table does not allow it; in particular
// every transition from `cerrada` is rejected.
func Next(current store.ConversationStatus, tr Transition) (store.ConversationStatus, error) {
	entry, ok := transitionTable[tr]
	if !ok {
		return "", fmt.Errorf("%w: unknown transition %q", ErrInvalidTransition, tr)
	}

	for _, from := range entry.from {
		if current == from {
			return entry.target, nil
		}
	}

	return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, tr, current)
}

// CanTransition reports whether tr is allowed from current.
func CanTransition(current store.ConversationStatus, tr Transition) bool {
	_, err := Next(current, tr)
	return err == nil
}
