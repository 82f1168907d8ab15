// ABOUTME: Merged live view of one conversation - transcript plus row snapshot
// ABOUTME: Set-based dedup keeps each message ID exactly once regardless of delivery order or echo

package inbox

import (
	"log/slog"
	"sync"

	"github.com/impulsalab/crm-core/internal/store"
)

// Entry is one transcript line: the stored message plus its decoded part.
type Entry struct {
	Message *store.Message
	Part    Part
}

// View is the merged, mutation-safe state of one open conversation. It holds
// the transcript in arrival order and the latest conversation row snapshot.
//
// Messages are deduplicated by ID with an exact set, not a TTL cache: a live
// view must suppress an echo no matter how long ago the original arrived, and
// the set is bounded by the transcript itself.
type View struct {
	mu           sync.Mutex
	logger       *slog.Logger
	conversation store.Conversation
	entries      []Entry
	seen         map[string]struct{}
}

// NewView builds a view from an initial snapshot and transcript page. The
// history may already overlap events in flight; the seen set absorbs that.
func NewView(conv *store.Conversation, history []*store.Message, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	v := &View{
		logger:       logger.With("component", "inbox", "conversation_id", conv.ID),
		conversation: *conv,
		seen:         make(map[string]struct{}),
	}
	for _, msg := range history {
		v.ApplyMessage(msg)
	}
	return v
}

// ApplyMessage merges one incoming message into the transcript. Returns false
// when the message was dropped: missing ID, wrong conversation, or already
// present. Payload decode failures do not drop the message; the entry carries
// a degraded part instead.
func (v *View) ApplyMessage(msg *store.Message) bool {
	if msg == nil || msg.ID == "" {
		v.logger.Warn("dropping message without id")
		return false
	}
	if msg.ConversationID != v.conversation.ID {
		v.logger.Warn("dropping message for other conversation", "message_id", msg.ID, "got", msg.ConversationID)
		return false
	}

	part := DecodePart(msg)
	if part.IsDegraded() {
		v.logger.Warn("payload degraded", "message_id", msg.ID, "error", part.Degraded.Err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, dup := v.seen[msg.ID]; dup {
		return false
	}
	v.seen[msg.ID] = struct{}{}

	copied := *msg
	v.entries = append(v.entries, Entry{Message: &copied, Part: part})
	return true
}

// RemoveMessage deletes a message from the transcript, freeing its ID for
// re-insertion. This backs rollback of an optimistic send that the server
// rejected.
func (v *View) RemoveMessage(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.seen[id]; !ok {
		return false
	}
	delete(v.seen, id)

	for i, e := range v.entries {
		if e.Message.ID == id {
			v.entries = append(v.entries[:i], v.entries[i+1:]...)
			break
		}
	}
	return true
}

// ApplyRowUpdate merges an incoming conversation snapshot. The update is
// applied only when it carries new information: the status differs, or the
// incoming updatedAt is strictly later. Stale or duplicate snapshots are
// ignored so an out-of-order delivery cannot roll the row backwards.
func (v *View) ApplyRowUpdate(conv *store.Conversation) bool {
	if conv == nil || conv.ID == "" {
		v.logger.Warn("dropping row update without id")
		return false
	}
	if conv.ID != v.conversation.ID {
		v.logger.Warn("dropping row update for other conversation", "got", conv.ID)
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if conv.Status == v.conversation.Status && !conv.UpdatedAt.After(v.conversation.UpdatedAt) {
		return false
	}
	v.conversation = *conv
	return true
}

// SetConversation replaces the row snapshot unconditionally. Used after a
// server-confirmed action, where the returned snapshot is authoritative.
func (v *View) SetConversation(conv *store.Conversation) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.conversation = *conv
}

// Conversation returns a copy of the current row snapshot.
func (v *View) Conversation() store.Conversation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conversation
}

// Entries returns a copy of the transcript in arrival order.
func (v *View) Entries() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Len returns the transcript length.
func (v *View) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}
