package services

import (
	"context"

	"canvas-sync/application/ports"
	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/core/valueobjects"
	"canvas-sync/domain/reconcile"

	"go.uber.org/zap"
)

// History implements undo/redo as a state machine over the transaction
// log: revoking a transaction excludes it from replay while keeping it
// available for redo. No separate undo stack exists; eligibility is derived
// from the flags.
type History struct {
	store    ports.StateStore
	renderer ports.Renderer
	logger   *zap.Logger
}

// NewHistory creates a new history service
func NewHistory(store ports.StateStore, renderer ports.Renderer, logger *zap.Logger) *History {
	return &History{
		store:    store,
		renderer: renderer,
		logger:   logger,
	}
}

// Undo revokes the most recent non-revoked transaction. Clearing SyncedAt
// makes the revocation itself eligible for the next push cycle. No-op when
// everything is already revoked.
func (h *History) Undo(ctx context.Context, canvasID valueobjects.CanvasID) error {
	return h.toggle(ctx, canvasID, true)
}

// Redo restores the earliest revoked transaction. No-op when nothing is
// revoked.
func (h *History) Redo(ctx context.Context, canvasID valueobjects.CanvasID) error {
	return h.toggle(ctx, canvasID, false)
}

func (h *History) toggle(ctx context.Context, canvasID valueobjects.CanvasID, revoke bool) error {
	changed := false
	var materialized aggregates.Graph

	err := h.store.Update(ctx, canvasID, func(state *aggregates.CanvasState) (*aggregates.CanvasState, error) {
		if state == nil || len(state.Transactions) == 0 {
			return state, nil
		}
		state.SortTransactions()

		if revoke {
			// Most recent live transaction, scanning backwards
			for i := len(state.Transactions) - 1; i >= 0; i-- {
				tx := &state.Transactions[i]
				if tx.Deleted || tx.Revoked {
					continue
				}
				tx.Revoked = true
				tx.SyncedAt = 0
				changed = true
				break
			}
		} else {
			// Earliest revoked transaction, scanning forwards
			for i := range state.Transactions {
				tx := &state.Transactions[i]
				if tx.Deleted || !tx.Revoked {
					continue
				}
				tx.Revoked = false
				tx.SyncedAt = 0
				changed = true
				break
			}
		}

		if changed {
			materialized = reconcile.Materialize(state)
		}
		return state, nil
	})
	if err != nil {
		return err
	}

	if changed {
		h.renderer.Apply(canvasID, materialized)
		h.logger.Debug("History toggled",
			zap.String("canvasID", canvasID.String()),
			zap.Bool("undo", revoke),
		)
	}
	return nil
}
