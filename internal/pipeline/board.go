// ABOUTME: In-memory kanban board view built from pipeline columns and leads
// ABOUTME: Deep clone and card move primitives back the drag reconciler's snapshot/rollback

package pipeline

import (
	"github.com/impulsalab/crm-core/internal/store"
)

// Card is one lead rendered on the board.
type Card struct {
	LeadID string
	Name   string
	Phone  string
	Tags   []string
}

// Column is one pipeline stage with its cards in display order.
type Column struct {
	ID       string
	Name     string
	Position int
	Cards    []Card
}

// Board is the full kanban view for a business.
type Board struct {
	BusinessID string
	Columns    []Column
}

// BuildBoard assembles a board from stored columns and leads. Columns arrive
// in board order; leads land in their column in listing order. A lead whose
// column no longer exists is left off the board.
func BuildBoard(businessID string, columns []*store.PipelineColumn, leads []*store.Lead) Board {
	board := Board{
		BusinessID: businessID,
		Columns:    make([]Column, 0, len(columns)),
	}
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		index[col.ID] = i
		board.Columns = append(board.Columns, Column{
			ID:       col.ID,
			Name:     col.Name,
			Position: col.Position,
			Cards:    []Card{},
		})
	}
	for _, lead := range leads {
		i, ok := index[lead.PipelineID]
		if !ok {
			continue
		}
		board.Columns[i].Cards = append(board.Columns[i].Cards, Card{
			LeadID: lead.ID,
			Name:   lead.Name,
			Phone:  lead.Phone,
			Tags:   append([]string(nil), lead.Tags...),
		})
	}
	return board
}

// Clone returns a deep copy. The rollback snapshot must not alias any card
// slice of the live board.
func (b Board) Clone() Board {
	out := Board{
		BusinessID: b.BusinessID,
		Columns:    make([]Column, len(b.Columns)),
	}
	for i, col := range b.Columns {
		cards := make([]Card, len(col.Cards))
		for j, card := range col.Cards {
			cards[j] = Card{
				LeadID: card.LeadID,
				Name:   card.Name,
				Phone:  card.Phone,
				Tags:   append([]string(nil), card.Tags...),
			}
		}
		out.Columns[i] = Column{ID: col.ID, Name: col.Name, Position: col.Position, Cards: cards}
	}
	return out
}

// locate returns the column and card index of a lead.
func (b *Board) locate(leadID string) (colIdx, cardIdx int, ok bool) {
	for i := range b.Columns {
		for j := range b.Columns[i].Cards {
			if b.Columns[i].Cards[j].LeadID == leadID {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// columnIndex returns the index of a column by ID.
func (b *Board) columnIndex(columnID string) (int, bool) {
	for i := range b.Columns {
		if b.Columns[i].ID == columnID {
			return i, true
		}
	}
	return 0, false
}

// moveCard removes the lead's card from wherever it sits and inserts it into
// the target column at the given index. Out-of-range indexes clamp to the
// column bounds.
func (b *Board) moveCard(leadID string, targetCol, targetIdx int) {
	fromCol, fromIdx, ok := b.locate(leadID)
	if !ok {
		return
	}
	card := b.Columns[fromCol].Cards[fromIdx]
	b.Columns[fromCol].Cards = append(
		b.Columns[fromCol].Cards[:fromIdx],
		b.Columns[fromCol].Cards[fromIdx+1:]...)

	cards := b.Columns[targetCol].Cards
	if targetIdx < 0 {
		targetIdx = 0
	}
	if targetIdx > len(cards) {
		targetIdx = len(cards)
	}
	cards = append(cards, Card{})
	copy(cards[targetIdx+1:], cards[targetIdx:])
	cards[targetIdx] = card
	b.Columns[targetCol].Cards = cards
}
