// ABOUTME: Orchestrator assembles the conversation panel: snapshot, transcript, capabilities
// ABOUTME: One Open call resolves permissions and seeds the merged live view

package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/impulsalab/crm-core/internal/auth"
	"github.com/impulsalab/crm-core/internal/conversation"
	"github.com/impulsalab/crm-core/internal/inbox"
	"github.com/impulsalab/crm-core/internal/store"
)

// historyPageSize is the transcript page loaded when a panel opens.
const historyPageSize = 50

// PanelStore defines what the orchestrator needs from storage beyond the
// conversation service.
type PanelStore interface {
	GetBusiness(ctx context.Context, id string) (*store.Business, error)
	GetLead(ctx context.Context, id string) (*store.Lead, error)
	UpdateLeadTags(ctx context.Context, leadID string, tags []string) error
}

// Orchestrator builds conversation panels. It owns no per-conversation state;
// each Open returns an independent Panel.
type Orchestrator struct {
	store    PanelStore
	svc      *conversation.Service
	resolver *auth.Resolver
	logger   *slog.Logger
}

// NewOrchestrator wires the panel factory.
func NewOrchestrator(st PanelStore, svc *conversation.Service, resolver *auth.Resolver, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:    st,
		svc:      svc,
		resolver: resolver,
		logger:   logger.With("component", "panel"),
	}
}

// Open loads everything a panel needs in one pass: the conversation snapshot,
// the actor's capabilities over it, the lead card, and the first transcript
// page. The returned panel is ready for live events via Run.
func (o *Orchestrator) Open(ctx context.Context, actor *auth.ActorContext, conversationID string) (*Panel, error) {
	if actor == nil {
		return nil, errors.New("actor required")
	}

	conv, err := o.svc.Get(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	biz, err := o.store.GetBusiness(ctx, conv.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("loading business: %w", err)
	}
	caps, err := o.resolver.Resolve(ctx, actor, conv, biz.OwnerUserID)
	if err != nil {
		return nil, fmt.Errorf("resolving capabilities: %w", err)
	}

	history, err := o.svc.History(ctx, conversationID, historyPageSize, "")
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	lead, err := o.store.GetLead(ctx, conv.LeadID)
	if err != nil {
		// A panel without a lead card is still usable
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("loading lead: %w", err)
		}
		o.logger.Warn("conversation has no lead record", "conversation_id", conversationID, "lead_id", conv.LeadID)
		lead = &store.Lead{ID: conv.LeadID, BusinessID: conv.BusinessID, Tags: []string{}}
	}

	view := inbox.NewView(conv, history.Messages, o.logger)
	p := &Panel{
		actor:  actor,
		caps:   caps,
		svc:    o.svc,
		store:  o.store,
		view:   view,
		merger: inbox.NewMerger(view, o.logger),
		lead:   cloneLead(lead),
		logger: o.logger.With("conversation_id", conversationID),
	}
	return p, nil
}

func cloneLead(lead *store.Lead) store.Lead {
	out := *lead
	out.Tags = append([]string(nil), lead.Tags...)
	return out
}
