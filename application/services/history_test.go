package services

import (
	"context"
	"testing"

	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/core/entities"
	"canvas-sync/infrastructure/persistence/memory"
	"canvas-sync/tests/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newHistoryFixture() (*History, *memory.StateStore, *mocks.FakeRenderer) {
	store := memory.NewStateStore()
	renderer := mocks.NewFakeRenderer()
	history := NewHistory(store, renderer, zap.NewNop())
	return history, store, renderer
}

func TestHistory_UndoRevokesNewestLiveTransaction(t *testing.T) {
	// Arrange
	history, store, renderer := newHistoryFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	state.AppendTransaction(txAt(100, aggregates.GraphDiff{AddedNodes: []entities.Node{testNode("a")}}))
	newest := txAt(200, aggregates.GraphDiff{AddedNodes: []entities.Node{testNode("b")}})
	newest.SyncedAt = newest.CreatedAt + 1
	state.AppendTransaction(newest)
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	// Act
	err := history.Undo(context.Background(), canvasID)

	// Assert
	require.NoError(t, err)
	stored, err := store.Load(context.Background(), canvasID)
	require.NoError(t, err)
	stored.SortTransactions()
	undone := stored.Transactions[1]
	assert.True(t, undone.Revoked)
	// Clearing SyncedAt makes the revocation push-eligible
	assert.False(t, undone.Synced())
	assert.False(t, stored.Transactions[0].Revoked)

	graph, ok := renderer.Last(canvasID)
	require.True(t, ok)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, "a", graph.Nodes[0].ID)
}

func TestHistory_RedoRestoresEarliestRevokedTransaction(t *testing.T) {
	history, store, renderer := newHistoryFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	first := txAt(100, aggregates.GraphDiff{AddedNodes: []entities.Node{testNode("a")}})
	first.Revoked = true
	second := txAt(200, aggregates.GraphDiff{AddedNodes: []entities.Node{testNode("b")}})
	second.Revoked = true
	state.AppendTransaction(first)
	state.AppendTransaction(second)
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	require.NoError(t, history.Redo(context.Background(), canvasID))

	stored, err := store.Load(context.Background(), canvasID)
	require.NoError(t, err)
	stored.SortTransactions()
	assert.False(t, stored.Transactions[0].Revoked)
	assert.True(t, stored.Transactions[1].Revoked)

	graph, ok := renderer.Last(canvasID)
	require.True(t, ok)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, "a", graph.Nodes[0].ID)
}

func TestHistory_UndoRedoRoundTripRestoresGraph(t *testing.T) {
	history, store, renderer := newHistoryFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	state.AppendTransaction(txAt(100, aggregates.GraphDiff{AddedNodes: []entities.Node{testNode("a")}}))
	state.AppendTransaction(txAt(200, aggregates.GraphDiff{AddedNodes: []entities.Node{testNode("b")}}))
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	require.NoError(t, history.Undo(context.Background(), canvasID))
	require.NoError(t, history.Redo(context.Background(), canvasID))

	graph, ok := renderer.Last(canvasID)
	require.True(t, ok)
	assert.Len(t, graph.Nodes, 2)

	stored, err := store.Load(context.Background(), canvasID)
	require.NoError(t, err)
	for _, tx := range stored.Transactions {
		assert.False(t, tx.Revoked)
	}
}

func TestHistory_UndoWithEverythingRevokedIsNoOp(t *testing.T) {
	history, store, renderer := newHistoryFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	revoked := txAt(100, aggregates.GraphDiff{AddedNodes: []entities.Node{testNode("a")}})
	revoked.Revoked = true
	state.AppendTransaction(revoked)
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	require.NoError(t, history.Undo(context.Background(), canvasID))

	assert.Empty(t, renderer.Applied(canvasID))
	stored, err := store.Load(context.Background(), canvasID)
	require.NoError(t, err)
	assert.True(t, stored.Transactions[0].Revoked)
}

func TestHistory_RedoWithNothingRevokedIsNoOp(t *testing.T) {
	history, store, renderer := newHistoryFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	state.AppendTransaction(txAt(100, aggregates.GraphDiff{AddedNodes: []entities.Node{testNode("a")}}))
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	require.NoError(t, history.Redo(context.Background(), canvasID))

	assert.Empty(t, renderer.Applied(canvasID))
}

func TestHistory_EmptyCanvasIsNoOp(t *testing.T) {
	history, _, renderer := newHistoryFixture()
	canvasID := testCanvas(t, "canvas-absent")

	require.NoError(t, history.Undo(context.Background(), canvasID))
	require.NoError(t, history.Redo(context.Background(), canvasID))

	assert.Empty(t, renderer.Applied(canvasID))
}
