package services

import (
	"context"

	"canvas-sync/application/ports"
	"canvas-sync/domain/core/valueobjects"
	"canvas-sync/pkg/observability"

	"go.uber.org/zap"
)

// VersionCompactor asks the server to fold the current log into a new
// version and replaces the local state with the returned baseline. Both
// the push and pull synchronizers trigger it from their threshold checks.
type VersionCompactor struct {
	store   ports.StateStore
	remote  ports.RemoteClient
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewVersionCompactor creates a new version compactor
func NewVersionCompactor(
	store ports.StateStore,
	remote ports.RemoteClient,
	metrics *observability.Collector,
	logger *zap.Logger,
) *VersionCompactor {
	return &VersionCompactor{
		store:   store,
		remote:  remote,
		metrics: metrics,
		logger:  logger,
	}
}

// Compact sends the current local state to the version endpoint and adopts
// the returned baseline. On failure the oversized log stays in place and
// the next threshold check retries.
func (c *VersionCompactor) Compact(ctx context.Context, canvasID valueobjects.CanvasID) error {
	state, err := c.store.Load(ctx, canvasID)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	fresh, err := c.remote.CreateVersion(ctx, canvasID, state)
	if err != nil {
		c.logger.Warn("Version compaction failed, keeping current log",
			zap.String("canvasID", canvasID.String()),
			zap.Int("transactions", len(state.Transactions)),
			zap.Error(err),
		)
		return err
	}

	if err := c.store.Save(ctx, canvasID, fresh); err != nil {
		return err
	}

	c.metrics.Compactions.Inc()
	c.logger.Info("Canvas log compacted",
		zap.String("canvasID", canvasID.String()),
		zap.String("version", fresh.Version.String()),
		zap.Int("before", len(state.Transactions)),
		zap.Int("after", len(fresh.Transactions)),
	)
	return nil
}
