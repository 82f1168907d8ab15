// ABOUTME: Drag reconciler for the kanban board - optimistic cross-column moves
// ABOUTME: Snapshot before apply, persist stage change, wholesale rollback on rejection

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/impulsalab/crm-core/internal/optimistic"
	"github.com/impulsalab/crm-core/internal/store"
)

// Reconciler errors
var (
	ErrNoDrag         = errors.New("no drag in progress")
	ErrDragInProgress = errors.New("drag already in progress")
	ErrLeadNotOnBoard = errors.New("lead not on board")
	ErrUnknownColumn  = errors.New("unknown target column")
)

// BoardStore defines what the reconciler needs from storage.
type BoardStore interface {
	ListPipelineColumns(ctx context.Context, businessID string) ([]*store.PipelineColumn, error)
	ListLeads(ctx context.Context, businessID string) ([]*store.Lead, error)
	UpdateLeadStage(ctx context.Context, leadID, pipelineID string) error
}

// DropResult describes how a drop was settled.
type DropResult struct {
	// Persisted is true when the drop crossed columns and the stage change
	// was written. Same-column reorders are visual only and never persisted.
	Persisted bool
	Board     Board
}

// Reconciler drives one kanban board through drag-and-drop cycles. Only the
// lead's column membership is stored; ordering inside a column is ephemeral
// display state. Cross-column drops are applied optimistically and rolled
// back wholesale if the stage write is rejected.
type Reconciler struct {
	mu     sync.Mutex
	store  BoardStore
	logger *slog.Logger

	board      Board
	dragging   bool
	dragLeadID string
	dragFrom   int // column index at drag start
}

// NewReconciler loads the board and returns a reconciler in the idle state.
func NewReconciler(ctx context.Context, st BoardStore, businessID string, logger *slog.Logger) (*Reconciler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reconciler{
		store:  st,
		logger: logger.With("component", "pipeline", "business_id", businessID),
		board:  Board{BusinessID: businessID},
	}
	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Refresh rebuilds the board from storage. An in-flight drag is cancelled,
// since its source position may no longer exist.
func (r *Reconciler) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.refreshLocked(ctx); err != nil {
		return err
	}
	r.dragging = false
	r.dragLeadID = ""
	return nil
}

func (r *Reconciler) refreshLocked(ctx context.Context) error {
	businessID := r.board.BusinessID
	columns, err := r.store.ListPipelineColumns(ctx, businessID)
	if err != nil {
		return fmt.Errorf("loading pipeline columns: %w", err)
	}
	leads, err := r.store.ListLeads(ctx, businessID)
	if err != nil {
		return fmt.Errorf("loading leads: %w", err)
	}
	r.board = BuildBoard(businessID, columns, leads)
	return nil
}

// Board returns a deep copy of the current board.
func (r *Reconciler) Board() Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.board.Clone()
}

// Dragging reports whether a drag cycle is open.
func (r *Reconciler) Dragging() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dragging
}

// BeginDrag opens a drag cycle for a lead. One drag at a time.
func (r *Reconciler) BeginDrag(leadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dragging {
		return ErrDragInProgress
	}
	colIdx, _, ok := r.board.locate(leadID)
	if !ok {
		return ErrLeadNotOnBoard
	}
	r.dragging = true
	r.dragLeadID = leadID
	r.dragFrom = colIdx
	return nil
}

// CancelDrag abandons the drag cycle. The board is untouched.
func (r *Reconciler) CancelDrag() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dragging = false
	r.dragLeadID = ""
}

// Drop settles the open drag cycle onto a target column and position.
//
// Same-column drops reorder cards locally and write nothing. Cross-column
// drops apply the move optimistically, persist the lead's stage change, and
// reload the board from storage; on rejection they restore the exact
// pre-drag board instead. The reconciler returns to idle in every outcome,
// including errors.
func (r *Reconciler) Drop(ctx context.Context, targetColumnID string, targetIdx int) (*DropResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.dragging {
		return nil, ErrNoDrag
	}
	leadID := r.dragLeadID
	fromIdx := r.dragFrom
	r.dragging = false
	r.dragLeadID = ""

	targetCol, ok := r.board.columnIndex(targetColumnID)
	if !ok {
		return nil, ErrUnknownColumn
	}

	if targetCol == fromIdx {
		r.board.moveCard(leadID, targetCol, targetIdx)
		r.logger.Debug("same-column reorder, not persisted", "lead_id", leadID)
		return &DropResult{Persisted: false, Board: r.board.Clone()}, nil
	}

	err := optimistic.Run(&r.board,
		Board.Clone,
		func(b *Board) { b.moveCard(leadID, targetCol, targetIdx) },
		func() error { return r.store.UpdateLeadStage(ctx, leadID, targetColumnID) },
	)
	if err != nil {
		r.logger.Warn("stage change rejected, board rolled back",
			"lead_id", leadID,
			"target_column", targetColumnID,
			"error", err)
		return nil, fmt.Errorf("moving lead %s: %w", leadID, err)
	}

	// Reload so server-side derived state is reconciled. If the reload
	// fails the optimistic board stands; the write already succeeded.
	if err := r.refreshLocked(ctx); err != nil {
		r.logger.Warn("board reload after move failed, keeping optimistic state", "error", err)
	}

	r.logger.Debug("lead moved",
		"lead_id", leadID,
		"target_column", targetColumnID)
	return &DropResult{Persisted: true, Board: r.board.Clone()}, nil
}
