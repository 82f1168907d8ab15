// ABOUTME: Tests for the conversation panel
// ABOUTME: Local gating, optimistic send and tag rollback, confirmed transitions, live merge

package panel

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impulsalab/crm-core/internal/auth"
	"github.com/impulsalab/crm-core/internal/conversation"
	"github.com/impulsalab/crm-core/internal/realtime"
	"github.com/impulsalab/crm-core/internal/store"
)

type fixture struct {
	orch  *Orchestrator
	mock  *store.MockStore
	bus   *realtime.Broadcaster
	agent *auth.ActorContext
	none  *auth.ActorContext
}

func newFixture(t *testing.T, status store.ConversationStatus) *fixture {
	t.Helper()
	ctx := context.Background()
	mock := store.NewMockStore()

	require.NoError(t, mock.CreateBusiness(ctx, &store.Business{
		ID:          "biz-1",
		OwnerUserID: "user-owner",
		Name:        "Estudio Impulsa",
		CreatedAt:   time.Now(),
	}))
	require.NoError(t, mock.CreateAgent(ctx, &store.Agent{
		ID:          "agent-1",
		UserID:      "user-carla",
		BusinessID:  "biz-1",
		DisplayName: "Carla",
		CreatedAt:   time.Now(),
	}))
	require.NoError(t, mock.CreateLead(ctx, &store.Lead{
		ID:         "lead-1",
		BusinessID: "biz-1",
		Name:       "Ana",
		Phone:      "+5215510000001",
		PipelineID: "col-nuevo",
		Tags:       []string{"urgente"},
		CreatedAt:  time.Now(),
	}))
	require.NoError(t, mock.CreateConversation(ctx, &store.Conversation{
		ID:         "conv-1",
		BusinessID: "biz-1",
		LeadID:     "lead-1",
		Channel:    store.ChannelWhatsApp,
		Status:     status,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}))
	require.NoError(t, mock.SaveMessage(ctx, &store.Message{
		ID:             "msg-hist-1",
		ConversationID: "conv-1",
		Role:           store.RoleUser,
		PartType:       store.PartText,
		Payload:        "hola, vi el anuncio",
		CreatedAt:      time.Now().Add(-time.Minute),
	}))

	bus := realtime.NewBroadcaster(nil)
	t.Cleanup(bus.Close)
	resolver := auth.NewResolver(mock, nil)
	svc := conversation.New(mock, resolver, bus, nil)

	return &fixture{
		orch:  NewOrchestrator(mock, svc, resolver, nil),
		mock:  mock,
		bus:   bus,
		agent: &auth.ActorContext{UserID: "user-carla", Role: auth.RoleAgent},
		none:  &auth.ActorContext{UserID: "user-stranger", Role: auth.RoleNone},
	}
}

func transcriptIDs(p *Panel) []string {
	entries := p.Entries()
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Message.ID
	}
	return ids
}

func TestOpen_SeedsSnapshotHistoryAndLead(t *testing.T) {
	f := newFixture(t, store.StatusHITLActive)

	p, err := f.orch.Open(t.Context(), f.agent, "conv-1")
	require.NoError(t, err)

	assert.Equal(t, store.StatusHITLActive, p.Conversation().Status)
	assert.Equal(t, []string{"msg-hist-1"}, transcriptIDs(p))
	assert.Equal(t, "Ana", p.Lead().Name)
	assert.Equal(t, []string{"urgente"}, p.Lead().Tags)
}

func TestOpen_UnknownConversation(t *testing.T) {
	f := newFixture(t, store.StatusAutomated)

	_, err := f.orch.Open(t.Context(), f.agent, "conv-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCanSend_Gating(t *testing.T) {
	f := newFixture(t, store.StatusHITLActive)

	p, err := f.orch.Open(t.Context(), f.agent, "conv-1")
	require.NoError(t, err)
	assert.True(t, p.CanSend().Enabled)
	assert.True(t, p.CanManage().Enabled)

	stranger, err := f.orch.Open(t.Context(), f.none, "conv-1")
	require.NoError(t, err)
	assert.False(t, stranger.CanSend().Enabled)
	assert.Contains(t, stranger.CanSend().Reason, "no access")
	assert.False(t, stranger.CanManage().Enabled)
}

func TestCanSend_ClosedWinsOverPermission(t *testing.T) {
	f := newFixture(t, store.StatusClosed)

	for _, actor := range []*auth.ActorContext{f.agent, f.none} {
		p, err := f.orch.Open(t.Context(), actor, "conv-1")
		require.NoError(t, err)
		avail := p.CanSend()
		assert.False(t, avail.Enabled)
		assert.Contains(t, avail.Reason, "closed", "actor %s", actor.UserID)
	}
}

func TestSendText_ConfirmedReplacesPending(t *testing.T) {
	f := newFixture(t, store.StatusHITLActive)

	p, err := f.orch.Open(t.Context(), f.agent, "conv-1")
	require.NoError(t, err)

	msg, err := p.SendText(t.Context(), "buenas, soy Carla")
	require.NoError(t, err)

	ids := transcriptIDs(p)
	require.Len(t, ids, 2)
	assert.Equal(t, msg.ID, ids[1])
	for _, id := range ids {
		assert.False(t, strings.HasPrefix(id, "pending-"), "placeholder %s survived confirmation", id)
	}

	// Persisted server-side
	saved, err := f.mock.GetMessage(t.Context(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "buenas, soy Carla", saved.Payload)
}

func TestSendText_RejectionRollsBackTranscript(t *testing.T) {
	f := newFixture(t, store.StatusHITLActive)

	p, err := f.orch.Open(t.Context(), f.agent, "conv-1")
	require.NoError(t, err)
	before := transcriptIDs(p)

	f.mock.FailSaveMessage = errors.New("write rejected")
	_, err = p.SendText(t.Context(), "este no llega")
	require.Error(t, err)

	assert.Equal(t, before, transcriptIDs(p))
}

func TestSendText_GatedLocallyBeforeAnyCall(t *testing.T) {
	f := newFixture(t, store.StatusHITLActive)

	p, err := f.orch.Open(t.Context(), f.none, "conv-1")
	require.NoError(t, err)

	_, err = p.SendText(t.Context(), "hola")
	assert.ErrorIs(t, err, ErrActionUnavailable)
	assert.Equal(t, []string{"msg-hist-1"}, transcriptIDs(p))
}

func TestUpdateTags_OptimisticWithRollback(t *testing.T) {
	f := newFixture(t, store.StatusHITLActive)

	p, err := f.orch.Open(t.Context(), f.agent, "conv-1")
	require.NoError(t, err)

	require.NoError(t, p.UpdateTags(t.Context(), []string{"urgente", "visita"}))
	assert.Equal(t, []string{"urgente", "visita"}, p.Lead().Tags)

	lead, err := f.mock.GetLead(t.Context(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"urgente", "visita"}, lead.Tags)

	// A rejected edit rolls the displayed tags back
	f.mock.FailUpdateLeadTags = errors.New("tags rejected")
	err = p.UpdateTags(t.Context(), []string{"otro"})
	require.Error(t, err)
	assert.Equal(t, []string{"urgente", "visita"}, p.Lead().Tags)
}

func TestTransitions_AdoptConfirmedSnapshot(t *testing.T) {
	f := newFixture(t, store.StatusAutomated)

	p, err := f.orch.Open(t.Context(), f.agent, "conv-1")
	require.NoError(t, err)

	conv, err := p.Pause(t.Context())
	require.NoError(t, err)
	assert.Equal(t, store.StatusHITLActive, conv.Status)
	assert.Equal(t, store.StatusHITLActive, p.Conversation().Status)

	_, err = p.Resume(t.Context())
	require.NoError(t, err)
	assert.Equal(t, store.StatusAutomated, p.Conversation().Status)

	// A rejected transition leaves the view untouched
	_, err = p.Resume(t.Context())
	assert.ErrorIs(t, err, conversation.ErrInvalidTransition)
	assert.Equal(t, store.StatusAutomated, p.Conversation().Status)
}

func TestAssignAgent_UpdatesView(t *testing.T) {
	f := newFixture(t, store.StatusAwaitingAgent)

	p, err := f.orch.Open(t.Context(), f.agent, "conv-1")
	require.NoError(t, err)

	agentID := "agent-1"
	_, err = p.AssignAgent(t.Context(), &agentID)
	require.NoError(t, err)

	conv := p.Conversation()
	require.NotNil(t, conv.AssignedAgentID)
	assert.Equal(t, "agent-1", *conv.AssignedAgentID)
}

func TestPanel_LiveEventsMergeIntoTranscript(t *testing.T) {
	f := newFixture(t, store.StatusAutomated)

	p, err := f.orch.Open(t.Context(), f.agent, "conv-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go p.Run(ctx, f.bus)

	incoming := &store.Message{
		ID:             "msg-live-1",
		ConversationID: "conv-1",
		Role:           store.RoleUser,
		PartType:       store.PartText,
		Payload:        "¿sigue disponible?",
		CreatedAt:      time.Now(),
	}
	require.Eventually(t, func() bool {
		f.bus.Publish(realtime.MessageTopic("conv-1"), realtime.Event{
			Kind:    realtime.KindMessage,
			Message: incoming,
		}, "")
		return p.view.Len() == 2
	}, time.Second, 10*time.Millisecond)

	ids := transcriptIDs(p)
	assert.Contains(t, ids, "msg-live-1")
}
