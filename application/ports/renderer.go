package ports

import (
	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/core/valueobjects"
)

// Renderer is the write side of the rendering layer: the engine pushes a
// freshly materialized graph into it after every merge, poll or undo/redo.
// Last materialization wins; the renderer holds no authority over state.
type Renderer interface {
	Apply(canvasID valueobjects.CanvasID, graph aggregates.Graph)
}

// GraphSource is the read side of the rendering layer: the mutation
// recorder snapshots the live graph from it. ok is false when the canvas
// is not open in the renderer.
type GraphSource interface {
	Snapshot(canvasID valueobjects.CanvasID) (graph aggregates.Graph, ok bool)
}

// Notifier surfaces user-visible sync events. Only actionable failures are
// notified; everything else is silent retry.
type Notifier interface {
	NotifySyncFailure(canvasID valueobjects.CanvasID, err error)
}
