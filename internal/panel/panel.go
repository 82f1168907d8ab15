// ABOUTME: Panel is the live per-conversation surface an agent works in
// ABOUTME: Capability-gated actions, optimistic sends and tag edits, confirmed lifecycle transitions

package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/impulsalab/crm-core/internal/auth"
	"github.com/impulsalab/crm-core/internal/conversation"
	"github.com/impulsalab/crm-core/internal/inbox"
	"github.com/impulsalab/crm-core/internal/optimistic"
	"github.com/impulsalab/crm-core/internal/store"
)

// ErrActionUnavailable is returned when a gated action is invoked anyway.
// Gating happens before any server call; a disabled action never produces
// network traffic.
var ErrActionUnavailable = errors.New("action unavailable")

// Availability tells the UI whether an action is enabled, and when it is not,
// the reason to surface next to the disabled control.
type Availability struct {
	Enabled bool
	Reason  string
}

// Panel is one agent's open view of a conversation: the merged transcript,
// the row snapshot, the lead card, and the actions the actor may take.
type Panel struct {
	mu     sync.Mutex
	actor  *auth.ActorContext
	caps   auth.Capabilities
	svc    *conversation.Service
	store  PanelStore
	view   *inbox.View
	merger *inbox.Merger
	lead   store.Lead
	logger *slog.Logger
}

// Run pumps realtime events into the panel's view until ctx ends.
func (p *Panel) Run(ctx context.Context, sub inbox.Subscriber) {
	p.merger.Run(ctx, sub)
}

// Conversation returns the current row snapshot.
func (p *Panel) Conversation() store.Conversation {
	return p.view.Conversation()
}

// Entries returns the merged transcript.
func (p *Panel) Entries() []inbox.Entry {
	return p.view.Entries()
}

// Lead returns the lead card as currently displayed, optimistic edits
// included.
func (p *Panel) Lead() store.Lead {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.lead
	out.Tags = append([]string(nil), p.lead.Tags...)
	return out
}

// CanSend reports whether the composer is enabled. Closure wins over
// permission as the displayed reason: a closed conversation reads the same
// for everyone.
func (p *Panel) CanSend() Availability {
	if p.view.Conversation().Status.Terminal() {
		return Availability{Reason: "conversation is closed"}
	}
	if !p.caps.CanManageConversation {
		return Availability{Reason: "no access to this conversation"}
	}
	return Availability{Enabled: true}
}

// CanManage reports whether lifecycle and assignment controls are enabled.
func (p *Panel) CanManage() Availability {
	if !p.caps.CanManageConversation {
		return Availability{Reason: "no access to this conversation"}
	}
	return Availability{Enabled: true}
}

// SendText sends an agent message optimistically: the pending entry shows in
// the transcript immediately and is replaced by the confirmed message, or
// removed when the server rejects the send.
func (p *Panel) SendText(ctx context.Context, text string) (*store.Message, error) {
	if avail := p.CanSend(); !avail.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrActionUnavailable, avail.Reason)
	}

	conv := p.view.Conversation()
	pending := &store.Message{
		ID:             "pending-" + uuid.New().String(),
		ConversationID: conv.ID,
		Role:           store.RoleAgent,
		PartType:       store.PartText,
		Payload:        text,
		CreatedAt:      time.Now().UTC(),
	}
	p.view.ApplyMessage(pending)

	msg, err := p.svc.SendMessage(ctx, p.actor, conv.ID, text)
	if err != nil {
		p.view.RemoveMessage(pending.ID)
		return nil, err
	}

	// Swap the placeholder for the confirmed message. The realtime echo of
	// the same ID is absorbed by the view's dedup.
	p.view.RemoveMessage(pending.ID)
	p.view.ApplyMessage(msg)
	return msg, nil
}

// UpdateTags replaces the lead's tags optimistically. On rejection the
// displayed tags roll back to the pre-edit set.
func (p *Panel) UpdateTags(ctx context.Context, tags []string) error {
	if avail := p.CanManage(); !avail.Enabled {
		return fmt.Errorf("%w: %s", ErrActionUnavailable, avail.Reason)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	leadID := p.lead.ID
	return optimistic.Run(&p.lead,
		func(l store.Lead) store.Lead { return cloneLead(&l) },
		func(l *store.Lead) { l.Tags = append([]string(nil), tags...) },
		func() error { return p.store.UpdateLeadTags(ctx, leadID, tags) },
	)
}

// Pause suspends automation. The view adopts the confirmed snapshot.
func (p *Panel) Pause(ctx context.Context) (*store.Conversation, error) {
	return p.transition(ctx, p.svc.Pause)
}

// Resume hands the conversation back to the assistant.
func (p *Panel) Resume(ctx context.Context) (*store.Conversation, error) {
	return p.transition(ctx, p.svc.Resume)
}

// Archive moves the conversation out of the inbox.
func (p *Panel) Archive(ctx context.Context) (*store.Conversation, error) {
	return p.transition(ctx, p.svc.Archive)
}

// Unarchive restores the conversation to the inbox.
func (p *Panel) Unarchive(ctx context.Context) (*store.Conversation, error) {
	return p.transition(ctx, p.svc.Unarchive)
}

// AssignAgent sets or clears the assigned agent.
func (p *Panel) AssignAgent(ctx context.Context, agentID *string) (*store.Conversation, error) {
	if avail := p.CanManage(); !avail.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrActionUnavailable, avail.Reason)
	}
	conv, err := p.svc.AssignAgent(ctx, p.actor, p.view.Conversation().ID, agentID)
	if err != nil {
		return nil, err
	}
	p.view.SetConversation(conv)
	return conv, nil
}

// transition runs one lifecycle action. These are never optimistic: the view
// keeps showing the old status until the store confirms the new one.
func (p *Panel) transition(ctx context.Context, action func(context.Context, *auth.ActorContext, string) (*store.Conversation, error)) (*store.Conversation, error) {
	if avail := p.CanManage(); !avail.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrActionUnavailable, avail.Reason)
	}
	conv, err := action(ctx, p.actor, p.view.Conversation().ID)
	if err != nil {
		return nil, err
	}
	p.view.SetConversation(conv)
	return conv, nil
}
