package services

import (
	"context"

	"canvas-sync/application/ports"
	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/core/entities"
	"canvas-sync/domain/core/valueobjects"
	"canvas-sync/domain/reconcile"
	"canvas-sync/infrastructure/config"
	"canvas-sync/pkg/observability"

	"go.uber.org/zap"
)

// MutationRecorder turns live graph edits into unsynced transactions. It is
// invoked through the engine's per-canvas debouncer, so bursts of edits
// coalesce into a single diff; a running invocation for a canvas is skipped
// by the engine, never queued.
type MutationRecorder struct {
	store   ports.StateStore
	source  ports.GraphSource
	policy  config.PolicyProvider
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewMutationRecorder creates a new mutation recorder
func NewMutationRecorder(
	store ports.StateStore,
	source ports.GraphSource,
	policy config.PolicyProvider,
	metrics *observability.Collector,
	logger *zap.Logger,
) *MutationRecorder {
	return &MutationRecorder{
		store:   store,
		source:  source,
		policy:  policy,
		metrics: metrics,
		logger:  logger,
	}
}

// Record snapshots the live graph, diffs it against the replayed baseline
// of the persisted state and appends the diff as a new unsynced
// transaction. No diff, no transaction.
func (r *MutationRecorder) Record(ctx context.Context, canvasID valueobjects.CanvasID) error {
	r.metrics.RecorderRuns.Inc()

	live, ok := r.source.Snapshot(canvasID)
	if !ok {
		r.logger.Debug("Canvas not open in renderer, skipping record",
			zap.String("canvasID", canvasID.String()),
		)
		return nil
	}

	live = r.sanitize(live)

	recorded := false
	err := r.store.Update(ctx, canvasID, func(state *aggregates.CanvasState) (*aggregates.CanvasState, error) {
		fresh := state == nil
		if fresh {
			state = aggregates.NewCanvasState()
		}

		// Revoked transactions are already excluded from the baseline by
		// replay, so the diff naturally captures their disappearance
		baseline := reconcile.Materialize(state)

		diff := reconcile.ComputeDiff(baseline, live)
		if diff == nil {
			if fresh {
				// Nothing to record; don't seed a new version lineage
				return nil, nil
			}
			return state, nil
		}

		state.AppendTransaction(aggregates.NewTransaction(*diff))
		recorded = true
		return state, nil
	})
	if err != nil {
		// The live graph stays authoritative in memory; a failed persist
		// only risks loss if the process dies before the next success
		r.logger.Error("Failed to record canvas mutation",
			zap.String("canvasID", canvasID.String()),
			zap.Error(err),
		)
		return err
	}

	if recorded {
		r.metrics.TransactionsRecorded.Inc()
		r.logger.Debug("Recorded canvas transaction",
			zap.String("canvasID", canvasID.String()),
		)
	}
	return nil
}

// sanitize purges context items from every node before the graph is
// compared or persisted
func (r *MutationRecorder) sanitize(graph aggregates.Graph) aggregates.Graph {
	maxBytes := r.policy.Policy().MaxContextItemBytes

	nodes := make([]entities.Node, len(graph.Nodes))
	for i, node := range graph.Nodes {
		nodes[i] = node.Sanitized(maxBytes)
	}
	graph.Nodes = nodes
	return graph
}
