package services

import (
	"context"
	"time"

	"canvas-sync/application/ports"
	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/core/valueobjects"
	"canvas-sync/domain/reconcile"
	"canvas-sync/infrastructure/config"
	"canvas-sync/pkg/observability"
	"canvas-sync/pkg/utils"

	"go.uber.org/zap"
)

// PullSynchronizer brings server-side progress into the local log: a full
// reconciliation when a canvas is opened, then incremental polling, plus
// the age/size compaction check.
type PullSynchronizer struct {
	store     ports.StateStore
	remote    ports.RemoteClient
	renderer  ports.Renderer
	compactor *VersionCompactor
	policy    config.PolicyProvider
	metrics   *observability.Collector
	logger    *zap.Logger
}

// NewPullSynchronizer creates a new pull synchronizer
func NewPullSynchronizer(
	store ports.StateStore,
	remote ports.RemoteClient,
	renderer ports.Renderer,
	compactor *VersionCompactor,
	policy config.PolicyProvider,
	metrics *observability.Collector,
	logger *zap.Logger,
) *PullSynchronizer {
	return &PullSynchronizer{
		store:     store,
		remote:    remote,
		renderer:  renderer,
		compactor: compactor,
		policy:    policy,
		metrics:   metrics,
		logger:    logger,
	}
}

// InitialReconcile merges local and remote state when a canvas is opened,
// compacts if the merged log is oversized or stale, persists the result
// and materializes it into the renderer. The engine marks the canvas
// initialized only after this returns nil.
//
// When the remote cannot be reached but a local state exists, the local
// state is materialized and reconciliation succeeds: the canvas stays
// editable offline and the push/poll cycles pick up once the server is
// reachable again.
func (p *PullSynchronizer) InitialReconcile(ctx context.Context, canvasID valueobjects.CanvasID) error {
	local, err := p.store.Load(ctx, canvasID)
	if err != nil {
		return err
	}

	remote, err := p.remote.GetCanvasState(ctx, canvasID)
	if err != nil {
		if local == nil {
			return err
		}
		p.logger.Warn("Remote unreachable on canvas open, starting from local state",
			zap.String("canvasID", canvasID.String()),
			zap.Error(err),
		)
		p.renderer.Apply(canvasID, reconcile.Materialize(local))
		return nil
	}

	merged := p.mergeOrRemoteWins(canvasID, local, remote)

	if p.policy.Policy().Compaction().ShouldCompact(merged, time.Now()) {
		if fresh, err := p.remote.CreateVersion(ctx, canvasID, merged); err == nil {
			p.metrics.Compactions.Inc()
			merged = fresh
		} else {
			p.logger.Warn("Compaction on canvas open failed, keeping merged log",
				zap.String("canvasID", canvasID.String()),
				zap.Error(err),
			)
		}
	}

	if err := p.store.Save(ctx, canvasID, merged); err != nil {
		return err
	}

	p.renderer.Apply(canvasID, reconcile.Materialize(merged))
	p.logger.Info("Canvas reconciled",
		zap.String("canvasID", canvasID.String()),
		zap.String("version", merged.Version.String()),
		zap.Int("transactions", len(merged.Transactions)),
	)
	return nil
}

// PollOnce fetches transactions created inside the recent poll window and
// merges the genuinely new ones into the local log
func (p *PullSynchronizer) PollOnce(ctx context.Context, canvasID valueobjects.CanvasID) error {
	state, err := p.store.Load(ctx, canvasID)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	policy := p.policy.Policy()
	since := utils.NowMillis() - policy.PollWindow.Milliseconds()

	incoming, err := p.remote.GetTransactionsSince(ctx, canvasID, state.Version, since)
	if err != nil {
		p.logger.Debug("Poll failed, will retry on next interval",
			zap.String("canvasID", canvasID.String()),
			zap.Error(err),
		)
		return err
	}

	merged := 0
	var materialized aggregates.Graph
	err = p.store.Update(ctx, canvasID, func(current *aggregates.CanvasState) (*aggregates.CanvasState, error) {
		if current == nil {
			return current, nil
		}
		known := current.TransactionIDs()
		for _, tx := range incoming {
			if _, present := known[tx.TxID.String()]; present {
				continue
			}
			current.Transactions = append(current.Transactions, tx)
			merged++
		}
		if merged == 0 {
			return current, nil
		}
		current.SortTransactions()
		current.UpdatedAt = utils.NowMillis()
		materialized = reconcile.Materialize(current)
		return current, nil
	})
	if err != nil {
		return err
	}

	if merged > 0 {
		p.metrics.PulledTransactions.Add(float64(merged))
		p.renderer.Apply(canvasID, materialized)
		p.logger.Debug("Merged polled transactions",
			zap.String("canvasID", canvasID.String()),
			zap.Int("count", merged),
		)
	}

	// Age/size check on the pull side
	if state, err := p.store.Load(ctx, canvasID); err == nil && state != nil {
		if policy.Compaction().ShouldCompact(state, time.Now()) {
			if err := p.compactor.Compact(ctx, canvasID); err != nil {
				p.logger.Debug("Pull-side compaction failed, will retry",
					zap.String("canvasID", canvasID.String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// mergeOrRemoteWins merges local into remote, degrading to the remote
// state wholesale when no safe merge order exists. The degradation is
// deliberate: remote-wins beats blocking the canvas on an unresolvable
// conflict.
func (p *PullSynchronizer) mergeOrRemoteWins(canvasID valueobjects.CanvasID, local, remote *aggregates.CanvasState) *aggregates.CanvasState {
	if local == nil {
		return remote.Clone()
	}

	merged, err := reconcile.Merge(local, remote)
	if err != nil {
		p.metrics.MergeConflicts.Inc()
		p.logger.Warn("Merge conflict, accepting remote state",
			zap.String("canvasID", canvasID.String()),
			zap.String("localVersion", local.Version.String()),
			zap.String("remoteVersion", remote.Version.String()),
			zap.Error(err),
		)
		return remote.Clone()
	}
	return merged
}
