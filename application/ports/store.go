package ports

import (
	"context"

	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/core/valueobjects"
)

// UpdateFunc transforms a canvas state inside a serialized update. The
// input is nil when no state exists yet for the canvas; returning the input
// unchanged makes the update a no-op.
type UpdateFunc func(*aggregates.CanvasState) (*aggregates.CanvasState, error)

// StateStore is the durable, canvas-scoped persistence port for canvas
// states. Implementations perform no network access.
//
// Update calls for the same canvas ID must be serialized: the engine's push
// and pull routines may run concurrently against the same canvas, making
// read-modify-write on the stored state the critical section.
type StateStore interface {
	// Load returns the persisted state, or (nil, nil) when absent
	Load(ctx context.Context, canvasID valueobjects.CanvasID) (*aggregates.CanvasState, error)

	// Save persists the state, replacing any previous value
	Save(ctx context.Context, canvasID valueobjects.CanvasID, state *aggregates.CanvasState) error

	// Update applies fn in a read-modify-write cycle serialized per canvas
	Update(ctx context.Context, canvasID valueobjects.CanvasID, fn UpdateFunc) error
}
