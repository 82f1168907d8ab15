// ABOUTME: Merger pumps realtime events from the broadcaster into a View
// ABOUTME: Runs until the context ends; malformed events are logged and skipped

package inbox

import (
	"context"
	"log/slog"

	"github.com/impulsalab/crm-core/internal/realtime"
)

// Subscriber is the slice of the broadcaster the merger consumes.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan realtime.Event, string)
}

// Merger subscribes to a conversation's message and row topics and folds
// every event into the view.
type Merger struct {
	view   *View
	logger *slog.Logger
}

// NewMerger wraps a view for realtime consumption.
func NewMerger(view *View, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{
		view:   view,
		logger: logger.With("component", "merger"),
	}
}

// Run consumes both topics until ctx is done. Subscriptions are cleaned up
// by the broadcaster when the context ends.
func (m *Merger) Run(ctx context.Context, sub Subscriber) {
	convID := m.view.Conversation().ID
	messages, _ := sub.Subscribe(ctx, realtime.MessageTopic(convID))
	rows, _ := sub.Subscribe(ctx, realtime.RowTopic(convID))

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-messages:
			if !ok {
				return
			}
			m.apply(event)
		case event, ok := <-rows:
			if !ok {
				return
			}
			m.apply(event)
		}
	}
}

// apply dispatches one event by kind. An event whose payload does not match
// its kind is dropped; one bad frame must not stall the stream.
func (m *Merger) apply(event realtime.Event) {
	switch event.Kind {
	case realtime.KindMessage:
		if event.Message == nil {
			m.logger.Warn("message event without message")
			return
		}
		m.view.ApplyMessage(event.Message)
	case realtime.KindRowUpdate:
		if event.Conversation == nil {
			m.logger.Warn("row update event without conversation")
			return
		}
		m.view.ApplyRowUpdate(event.Conversation)
	default:
		m.logger.Warn("unknown event kind", "kind", event.Kind)
	}
}
