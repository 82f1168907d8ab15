// ABOUTME: Tests for the lifecycle transition table
// ABOUTME: Every allowed edge plus rejection of everything from cerrada

package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impulsalab/crm-core/internal/store"
)

func TestNext_AllowedTransitions(t *testing.T) {
	cases := []struct {
		name string
		from store.ConversationStatus
		tr   Transition
		want store.ConversationStatus
	}{
		{"pause from automated", store.StatusAutomated, TransitionPause, store.StatusHITLActive},
		{"pause from awaiting agent", store.StatusAwaitingAgent, TransitionPause, store.StatusHITLActive},
		{"resume from hitl", store.StatusHITLActive, TransitionResume, store.StatusAutomated},
		{"archive from automated", store.StatusAutomated, TransitionArchive, store.StatusArchived},
		{"archive from hitl", store.StatusHITLActive, TransitionArchive, store.StatusArchived},
		{"archive from awaiting agent", store.StatusAwaitingAgent, TransitionArchive, store.StatusArchived},
		{"archive already archived", store.StatusArchived, TransitionArchive, store.StatusArchived},
		{"unarchive to default re-entry", store.StatusArchived, TransitionUnarchive, store.StatusAwaitingAgent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Next(tc.from, tc.tr)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNext_RejectedTransitions(t *testing.T) {
	cases := []struct {
		name string
		from store.ConversationStatus
		tr   Transition
	}{
		{"pause while already hitl", store.StatusHITLActive, TransitionPause},
		{"pause from archived", store.StatusArchived, TransitionPause},
		{"resume from automated", store.StatusAutomated, TransitionResume},
		{"resume from archived", store.StatusArchived, TransitionResume},
		{"resume from awaiting agent", store.StatusAwaitingAgent, TransitionResume},
		{"unarchive from automated", store.StatusAutomated, TransitionUnarchive},
		{"unarchive from hitl", store.StatusHITLActive, TransitionUnarchive},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Next(tc.from, tc.tr)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestNext_ClosedIsTerminal(t *testing.T) {
	for _, tr := range []Transition{TransitionPause, TransitionResume, TransitionArchive, TransitionUnarchive} {
		_, err := Next(store.StatusClosed, tr)
		assert.ErrorIs(t, err, ErrInvalidTransition, "transition %s must be rejected from cerrada", tr)
	}
}

func TestNext_UnknownTransition(t *testing.T) {
	_, err := Next(store.StatusAutomated, Transition("explotar"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(store.StatusAutomated, TransitionPause))
	assert.False(t, CanTransition(store.StatusClosed, TransitionArchive))
}
