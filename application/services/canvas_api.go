package services

import (
	"context"

	"canvas-sync/application/ports"
	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/core/valueobjects"
	"canvas-sync/domain/reconcile"
	"canvas-sync/domain/versioning"
	apperrors "canvas-sync/pkg/errors"
	"canvas-sync/pkg/observability"
	"canvas-sync/pkg/utils"

	"go.uber.org/zap"
)

// CanvasAPIService is the server-side counterpart of the sync engine: it
// owns the authoritative state behind the canvas sync endpoints. Clients
// talk to it through the HTTP layer; the engine's RemoteClient port maps
// one-to-one onto its operations.
type CanvasAPIService struct {
	store   ports.StateStore
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewCanvasAPIService creates a new canvas API service
func NewCanvasAPIService(store ports.StateStore, metrics *observability.Collector, logger *zap.Logger) *CanvasAPIService {
	return &CanvasAPIService{
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// GetState returns the authoritative state of a canvas, creating an empty
// state under a fresh version on first access
func (s *CanvasAPIService) GetState(ctx context.Context, canvasID valueobjects.CanvasID) (*aggregates.CanvasState, error) {
	var result *aggregates.CanvasState
	err := s.store.Update(ctx, canvasID, func(state *aggregates.CanvasState) (*aggregates.CanvasState, error) {
		if state == nil {
			state = aggregates.NewCanvasState()
			s.logger.Info("Created canvas state",
				zap.String("canvasID", canvasID.String()),
				zap.String("version", state.Version.String()),
			)
		}
		result = state.Clone()
		return state, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TransactionsSince returns the non-deleted transactions created after
// since (unix millis). A version mismatch yields an empty slice: the
// client's lineage has moved on and its next full reconciliation will
// resolve the divergence, incremental polling cannot.
func (s *CanvasAPIService) TransactionsSince(ctx context.Context, canvasID valueobjects.CanvasID, version valueobjects.VersionID, since int64) ([]aggregates.Transaction, error) {
	state, err := s.store.Load(ctx, canvasID)
	if err != nil {
		return nil, err
	}
	if state == nil || !state.Version.Equals(version) {
		return []aggregates.Transaction{}, nil
	}

	recent := make([]aggregates.Transaction, 0)
	for _, tx := range state.Transactions {
		if tx.Deleted || tx.CreatedAt <= since {
			continue
		}
		recent = append(recent, tx)
	}
	return recent, nil
}

// ApplySync merges a client's pushed transactions into the authoritative
// log and stamps them acknowledged. Unknown transactions are appended;
// known ones have their flags replaced so that revocations propagate.
// A version mismatch is rejected as a conflict and the client is expected
// to reconcile before retrying.
func (s *CanvasAPIService) ApplySync(ctx context.Context, canvasID valueobjects.CanvasID, version valueobjects.VersionID, transactions []aggregates.Transaction) error {
	now := utils.NowMillis()
	applied := 0

	err := s.store.Update(ctx, canvasID, func(state *aggregates.CanvasState) (*aggregates.CanvasState, error) {
		if state == nil {
			return nil, apperrors.NewNotFoundError("canvas state")
		}
		if !state.Version.Equals(version) {
			return nil, apperrors.NewConflictError("canvas version mismatch").WithDetails(map[string]interface{}{
				"canvasId":      canvasID.String(),
				"serverVersion": state.Version.String(),
				"clientVersion": version.String(),
			})
		}

		index := make(map[string]int, len(state.Transactions))
		for i, tx := range state.Transactions {
			index[tx.TxID.String()] = i
		}

		for _, tx := range transactions {
			tx.SyncedAt = now
			if i, known := index[tx.TxID.String()]; known {
				state.Transactions[i] = tx
			} else {
				state.Transactions = append(state.Transactions, tx)
			}
			applied++
		}
		state.SortTransactions()
		state.UpdatedAt = now
		return state, nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("Applied pushed transactions",
		zap.String("canvasID", canvasID.String()),
		zap.Int("count", applied),
	)
	return nil
}

// CreateVersion folds the canvas log into a new version baseline. The
// client sends its current state; it is merged with the stored one before
// compaction so that transactions the server saw but the client did not
// (and vice versa) survive the fold. On an unresolvable merge the stored
// state wins.
func (s *CanvasAPIService) CreateVersion(ctx context.Context, canvasID valueobjects.CanvasID, client *aggregates.CanvasState) (*aggregates.CanvasState, error) {
	var compacted *aggregates.CanvasState

	err := s.store.Update(ctx, canvasID, func(state *aggregates.CanvasState) (*aggregates.CanvasState, error) {
		base := state
		if base == nil {
			base = aggregates.NewCanvasState()
		}

		if client != nil {
			if merged, err := reconcile.Merge(client, base); err == nil {
				base = merged
			} else {
				s.metrics.MergeConflicts.Inc()
				s.logger.Warn("Client state conflicts with stored state, compacting stored state only",
					zap.String("canvasID", canvasID.String()),
					zap.Error(err),
				)
			}
		}

		fresh, err := versioning.Compact(base)
		if err != nil {
			return nil, err
		}
		compacted = fresh
		return fresh.Clone(), nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Compactions.Inc()
	s.logger.Info("Created canvas version",
		zap.String("canvasID", canvasID.String()),
		zap.String("version", compacted.Version.String()),
		zap.String("checksum", compacted.Checksum),
	)
	return compacted, nil
}

// Snapshot materializes the authoritative graph of a canvas. Read-only
// consumers use this instead of replaying the log themselves.
func (s *CanvasAPIService) Snapshot(ctx context.Context, canvasID valueobjects.CanvasID) (*aggregates.Graph, error) {
	state, err := s.store.Load(ctx, canvasID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, apperrors.NewNotFoundError("canvas state")
	}
	graph := reconcile.Materialize(state)
	return &graph, nil
}
