// ABOUTME: Template data types and rendering for the admin UI
// ABOUTME: Message text is rendered as markdown via goldmark

package webadmin

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/impulsalab/crm-core/internal/inbox"
	"github.com/impulsalab/crm-core/internal/pipeline"
	"github.com/impulsalab/crm-core/internal/store"
)

type inboxRow struct {
	Conversation *store.Conversation
	LeadName     string
}

type inboxData struct {
	Title    string
	Business *store.Business
	Status   string
	Rows     []inboxRow
}

type transcriptEntry struct {
	Message *store.Message
	Part    inbox.Part
}

// TextHTML renders the entry's text as sanitized markdown. Non-text parts
// return empty; the template shows their structured form instead.
func (e transcriptEntry) TextHTML() template.HTML {
	if e.Part.Type != store.PartText || e.Part.IsDegraded() {
		return ""
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(e.Part.Text), &buf); err != nil {
		// Fall back to the escaped raw text
		return template.HTML(template.HTMLEscapeString(e.Part.Text))
	}
	return template.HTML(buf.String())
}

type conversationData struct {
	Title        string
	Business     *store.Business
	Conversation *store.Conversation
	LeadName     string
	Entries      []transcriptEntry
	HasMore      bool
}

type boardData struct {
	Title    string
	Business *store.Business
	Board    pipeline.Board
}

func (a *Admin) renderInbox(w http.ResponseWriter, data inboxData) {
	a.render(w, data, "templates/base.html", "templates/inbox.html")
}

func (a *Admin) renderConversation(w http.ResponseWriter, data conversationData) {
	a.render(w, data, "templates/base.html", "templates/conversation.html")
}

func (a *Admin) renderBoard(w http.ResponseWriter, data boardData) {
	a.render(w, data, "templates/base.html", "templates/board.html")
}

func (a *Admin) render(w http.ResponseWriter, data any, files ...string) {
	tmpl := template.Must(template.ParseFS(templateFS, files...))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		a.logger.Error("failed to render template", "error", err)
	}
}
