package ports

import (
	"context"

	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/core/valueobjects"
)

// RemoteClient is the collaborator-owned sync API the engine consumes.
// Failures surface as network errors from pkg/errors; the engine never
// retries inside a call, retry is the scheduler's job.
type RemoteClient interface {
	// GetCanvasState fetches the full authoritative state of a canvas
	GetCanvasState(ctx context.Context, canvasID valueobjects.CanvasID) (*aggregates.CanvasState, error)

	// GetTransactionsSince fetches transactions created after since
	// (unix millis), relative to the given version
	GetTransactionsSince(ctx context.Context, canvasID valueobjects.CanvasID, version valueobjects.VersionID, since int64) ([]aggregates.Transaction, error)

	// SyncTransactions pushes locally recorded transactions
	SyncTransactions(ctx context.Context, canvasID valueobjects.CanvasID, version valueobjects.VersionID, transactions []aggregates.Transaction) error

	// CreateVersion asks the server to compact the given state into a new
	// version and returns the fresh baseline
	CreateVersion(ctx context.Context, canvasID valueobjects.CanvasID, state *aggregates.CanvasState) (*aggregates.CanvasState, error)

	// GetSnapshot fetches the materialized shareable graph, bypassing the
	// transaction log (read-only canvases)
	GetSnapshot(ctx context.Context, canvasID valueobjects.CanvasID) (*aggregates.Graph, error)
}
