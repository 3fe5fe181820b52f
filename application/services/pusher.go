package services

import (
	"context"

	"canvas-sync/application/ports"
	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/core/valueobjects"
	"canvas-sync/infrastructure/config"
	"canvas-sync/pkg/observability"
	"canvas-sync/pkg/utils"

	"go.uber.org/zap"
)

// PushSynchronizer delivers locally recorded transactions to the server on
// a fixed interval and marks them acknowledged. There is no backoff: a
// failed push leaves the transactions unsynced and the next tick retries.
//
// Revocation policy: undo/redo clear SyncedAt on the affected transaction,
// and pushes include revoked transactions, so flag changes propagate as
// first-class sync events. Only Deleted transactions are excluded.
type PushSynchronizer struct {
	store     ports.StateStore
	remote    ports.RemoteClient
	notifier  ports.Notifier
	compactor *VersionCompactor
	policy    config.PolicyProvider
	metrics   *observability.Collector
	logger    *zap.Logger
}

// NewPushSynchronizer creates a new push synchronizer
func NewPushSynchronizer(
	store ports.StateStore,
	remote ports.RemoteClient,
	notifier ports.Notifier,
	compactor *VersionCompactor,
	policy config.PolicyProvider,
	metrics *observability.Collector,
	logger *zap.Logger,
) *PushSynchronizer {
	return &PushSynchronizer{
		store:     store,
		remote:    remote,
		notifier:  notifier,
		compactor: compactor,
		policy:    policy,
		metrics:   metrics,
		logger:    logger,
	}
}

// SyncOnce performs one push cycle for a canvas
func (p *PushSynchronizer) SyncOnce(ctx context.Context, canvasID valueobjects.CanvasID) error {
	state, err := p.store.Load(ctx, canvasID)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	// A log at or over the threshold is compacted instead of pushed this
	// cycle
	if len(state.Transactions) >= p.policy.Policy().CompactionMaxTransactions {
		p.logger.Info("Transaction log over threshold, requesting compaction instead of push",
			zap.String("canvasID", canvasID.String()),
			zap.Int("transactions", len(state.Transactions)),
		)
		return p.compactor.Compact(ctx, canvasID)
	}

	unsynced := state.UnsyncedTransactions()
	if len(unsynced) == 0 {
		return nil
	}

	if err := p.remote.SyncTransactions(ctx, canvasID, state.Version, unsynced); err != nil {
		p.metrics.PushFailures.Inc()
		p.notifier.NotifySyncFailure(canvasID, err)
		p.logger.Warn("Push sync failed, will retry on next interval",
			zap.String("canvasID", canvasID.String()),
			zap.Int("transactions", len(unsynced)),
			zap.Error(err),
		)
		return err
	}

	// Acknowledge against the pushed copies, not bare IDs: an undo that
	// landed during the round trip must keep its cleared SyncedAt
	now := utils.NowMillis()
	err = p.store.Update(ctx, canvasID, func(current *aggregates.CanvasState) (*aggregates.CanvasState, error) {
		if current == nil {
			return current, nil
		}
		current.AcknowledgeSynced(unsynced, now)
		return current, nil
	})
	if err != nil {
		return err
	}

	p.metrics.PushBatches.Inc()
	p.logger.Debug("Pushed canvas transactions",
		zap.String("canvasID", canvasID.String()),
		zap.Int("count", len(unsynced)),
	)
	return nil
}
