package services

import (
	"context"
	"testing"

	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/core/entities"
	"canvas-sync/infrastructure/persistence/memory"
	apperrors "canvas-sync/pkg/errors"
	"canvas-sync/tests/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPullerFixture() (*PullSynchronizer, *memory.StateStore, *mocks.MockRemoteClient, *mocks.FakeRenderer) {
	store := memory.NewStateStore()
	remote := new(mocks.MockRemoteClient)
	renderer := mocks.NewFakeRenderer()
	compactor := NewVersionCompactor(store, remote, testMetrics(), zap.NewNop())
	puller := NewPullSynchronizer(store, remote, renderer, compactor, testPolicy(), testMetrics(), zap.NewNop())
	return puller, store, remote, renderer
}

func TestPullSynchronizer_InitialReconcile_AdoptsRemoteWhenNoLocal(t *testing.T) {
	// Arrange
	puller, store, remote, renderer := newPullerFixture()
	canvasID := testCanvas(t, "canvas-1")

	remoteState := aggregates.NewCanvasState()
	remoteState.AppendTransaction(txAt(100, aggregates.GraphDiff{
		AddedNodes: []entities.Node{testNode("a")},
	}))
	remote.On("GetCanvasState", mock.Anything, canvasID).Return(remoteState, nil)

	// Act
	err := puller.InitialReconcile(context.Background(), canvasID)

	// Assert
	require.NoError(t, err)
	stored, err := store.Load(context.Background(), canvasID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Version.Equals(remoteState.Version))

	graph, ok := renderer.Last(canvasID)
	require.True(t, ok)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, "a", graph.Nodes[0].ID)
}

func TestPullSynchronizer_InitialReconcile_MergesLocalUnsynced(t *testing.T) {
	puller, store, remote, renderer := newPullerFixture()
	canvasID := testCanvas(t, "canvas-1")

	remoteState := aggregates.NewCanvasState()
	acked := txAt(100, aggregates.GraphDiff{
		AddedNodes: []entities.Node{testNode("a")},
	})
	acked.SyncedAt = acked.CreatedAt + 50
	remoteState.AppendTransaction(acked)

	// Same version lineage, plus one unsynced local edit
	local := remoteState.Clone()
	local.AppendTransaction(txAt(200, aggregates.GraphDiff{
		AddedNodes: []entities.Node{testNode("b")},
	}))
	require.NoError(t, store.Save(context.Background(), canvasID, local))

	remote.On("GetCanvasState", mock.Anything, canvasID).Return(remoteState, nil)

	require.NoError(t, puller.InitialReconcile(context.Background(), canvasID))

	graph, ok := renderer.Last(canvasID)
	require.True(t, ok)
	assert.Len(t, graph.Nodes, 2)

	stored, err := store.Load(context.Background(), canvasID)
	require.NoError(t, err)
	assert.Len(t, stored.Transactions, 2)
	assert.Len(t, stored.UnsyncedTransactions(), 1)
}

func TestPullSynchronizer_InitialReconcile_RemoteWinsOnConflict(t *testing.T) {
	puller, store, remote, renderer := newPullerFixture()
	canvasID := testCanvas(t, "canvas-1")

	// Local holds an acknowledged transaction under a version the remote
	// has moved past; no safe merge order exists
	local := aggregates.NewCanvasState()
	acked := txAt(100, aggregates.GraphDiff{AddedNodes: []entities.Node{testNode("stale")}})
	acked.SyncedAt = 150
	local.AppendTransaction(acked)
	require.NoError(t, store.Save(context.Background(), canvasID, local))

	remoteState := aggregates.NewCanvasState()
	remoteState.AppendTransaction(txAt(300, aggregates.GraphDiff{
		AddedNodes: []entities.Node{testNode("fresh")},
	}))
	remote.On("GetCanvasState", mock.Anything, canvasID).Return(remoteState, nil)

	require.NoError(t, puller.InitialReconcile(context.Background(), canvasID))

	// Degraded to the remote state wholesale
	stored, err := store.Load(context.Background(), canvasID)
	require.NoError(t, err)
	assert.True(t, stored.Version.Equals(remoteState.Version))
	require.Len(t, stored.Transactions, 1)

	graph, ok := renderer.Last(canvasID)
	require.True(t, ok)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, "fresh", graph.Nodes[0].ID)
}

func TestPullSynchronizer_InitialReconcile_OfflineFallsBackToLocal(t *testing.T) {
	puller, store, remote, renderer := newPullerFixture()
	canvasID := testCanvas(t, "canvas-1")

	local := aggregates.NewCanvasState()
	local.AppendTransaction(txAt(100, aggregates.GraphDiff{
		AddedNodes: []entities.Node{testNode("offline")},
	}))
	require.NoError(t, store.Save(context.Background(), canvasID, local))

	remote.On("GetCanvasState", mock.Anything, canvasID).
		Return(nil, apperrors.NewNetworkError("server unreachable", nil))

	err := puller.InitialReconcile(context.Background(), canvasID)

	// The canvas opens against the local state; sync resumes later
	require.NoError(t, err)
	graph, ok := renderer.Last(canvasID)
	require.True(t, ok)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, "offline", graph.Nodes[0].ID)
}

func TestPullSynchronizer_InitialReconcile_OfflineWithoutLocalFails(t *testing.T) {
	puller, _, remote, _ := newPullerFixture()
	canvasID := testCanvas(t, "canvas-1")

	remote.On("GetCanvasState", mock.Anything, canvasID).
		Return(nil, apperrors.NewNetworkError("server unreachable", nil))

	err := puller.InitialReconcile(context.Background(), canvasID)

	require.Error(t, err)
	assert.True(t, apperrors.IsNetwork(err))
}

func TestPullSynchronizer_PollOnce_MergesOnlyUnknownTransactions(t *testing.T) {
	puller, store, remote, renderer := newPullerFixture()
	canvasID := testCanvas(t, "canvas-1")

	known := txAt(100, aggregates.GraphDiff{AddedNodes: []entities.Node{testNode("a")}})
	state := aggregates.NewCanvasState()
	state.AppendTransaction(known)
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	incoming := txAt(200, aggregates.GraphDiff{AddedNodes: []entities.Node{testNode("b")}})
	remote.On("GetTransactionsSince", mock.Anything, canvasID, state.Version, mock.Anything).
		Return([]aggregates.Transaction{known, incoming}, nil)

	require.NoError(t, puller.PollOnce(context.Background(), canvasID))

	stored, err := store.Load(context.Background(), canvasID)
	require.NoError(t, err)
	// The known transaction is deduplicated by ID
	require.Len(t, stored.Transactions, 2)

	graph, ok := renderer.Last(canvasID)
	require.True(t, ok)
	assert.Len(t, graph.Nodes, 2)
}

func TestPullSynchronizer_PollOnce_NothingNewNoRender(t *testing.T) {
	puller, store, remote, renderer := newPullerFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	state.AppendTransaction(txAt(100, aggregates.GraphDiff{}))
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	remote.On("GetTransactionsSince", mock.Anything, canvasID, state.Version, mock.Anything).
		Return([]aggregates.Transaction{}, nil)

	require.NoError(t, puller.PollOnce(context.Background(), canvasID))

	assert.Empty(t, renderer.Applied(canvasID))
}

func TestPullSynchronizer_PollOnce_NoLocalStateIsNoOp(t *testing.T) {
	puller, _, remote, _ := newPullerFixture()
	canvasID := testCanvas(t, "canvas-absent")

	err := puller.PollOnce(context.Background(), canvasID)

	require.NoError(t, err)
	remote.AssertNotCalled(t, "GetTransactionsSince", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
