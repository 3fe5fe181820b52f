package services

import (
	"context"
	"testing"

	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/core/entities"
	"canvas-sync/infrastructure/persistence/memory"
	apperrors "canvas-sync/pkg/errors"
	"canvas-sync/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAPIFixture() (*CanvasAPIService, *memory.StateStore) {
	store := memory.NewStateStore()
	service := NewCanvasAPIService(store, testMetrics(), zap.NewNop())
	return service, store
}

func TestCanvasAPIService_GetState_CreatesOnFirstAccess(t *testing.T) {
	service, _ := newAPIFixture()
	canvasID := testCanvas(t, "canvas-1")

	first, err := service.GetState(context.Background(), canvasID)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Empty(t, first.Transactions)

	// A second access returns the same lineage, not a fresh one
	second, err := service.GetState(context.Background(), canvasID)
	require.NoError(t, err)
	assert.True(t, second.Version.Equals(first.Version))
}

func TestCanvasAPIService_TransactionsSince_FiltersByTimestamp(t *testing.T) {
	service, store := newAPIFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	old := txAt(100, aggregates.GraphDiff{})
	recent := txAt(5000, aggregates.GraphDiff{})
	deleted := txAt(6000, aggregates.GraphDiff{})
	deleted.Deleted = true
	state.AppendTransaction(old)
	state.AppendTransaction(recent)
	state.AppendTransaction(deleted)
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	txs, err := service.TransactionsSince(context.Background(), canvasID, state.Version, old.CreatedAt)

	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].TxID.Equals(recent.TxID))
}

func TestCanvasAPIService_TransactionsSince_VersionMismatchReturnsEmpty(t *testing.T) {
	service, store := newAPIFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	state.AppendTransaction(txAt(100, aggregates.GraphDiff{}))
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	stale := aggregates.NewCanvasState().Version
	txs, err := service.TransactionsSince(context.Background(), canvasID, stale, 0)

	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestCanvasAPIService_ApplySync_StampsAndDedups(t *testing.T) {
	service, store := newAPIFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	existing := txAt(100, aggregates.GraphDiff{})
	state.AppendTransaction(existing)
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	// The client re-pushes the known transaction with its undo flag set,
	// plus one new transaction
	revokedCopy := existing
	revokedCopy.Revoked = true
	revokedCopy.SyncedAt = 0
	fresh := txAt(200, aggregates.GraphDiff{})

	err := service.ApplySync(context.Background(), canvasID, state.Version, []aggregates.Transaction{revokedCopy, fresh})

	require.NoError(t, err)
	stored, err := store.Load(context.Background(), canvasID)
	require.NoError(t, err)
	require.Len(t, stored.Transactions, 2)
	for _, tx := range stored.Transactions {
		assert.True(t, tx.Synced())
	}
	stored.SortTransactions()
	// The flag change on the known transaction propagated
	assert.True(t, stored.Transactions[0].Revoked)
}

func TestCanvasAPIService_ApplySync_VersionMismatchConflicts(t *testing.T) {
	service, store := newAPIFixture()
	canvasID := testCanvas(t, "canvas-1")
	require.NoError(t, store.Save(context.Background(), canvasID, aggregates.NewCanvasState()))

	stale := aggregates.NewCanvasState().Version
	err := service.ApplySync(context.Background(), canvasID, stale, []aggregates.Transaction{txAt(100, aggregates.GraphDiff{})})

	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestCanvasAPIService_ApplySync_UnknownCanvasIsNotFound(t *testing.T) {
	service, _ := newAPIFixture()
	canvasID := testCanvas(t, "canvas-absent")

	err := service.ApplySync(context.Background(), canvasID, aggregates.NewCanvasState().Version, nil)

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCanvasAPIService_CreateVersion_FoldsLogIntoBaseline(t *testing.T) {
	service, store := newAPIFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	state.AppendTransaction(txAt(100, aggregates.GraphDiff{AddedNodes: []entities.Node{testNode("a")}}))
	state.AppendTransaction(txAt(200, aggregates.GraphDiff{AddedNodes: []entities.Node{testNode("b")}}))
	state.AppendTransaction(txAt(300, aggregates.GraphDiff{RemovedNodes: []string{"a"}}))
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	fresh, err := service.CreateVersion(context.Background(), canvasID, nil)

	require.NoError(t, err)
	assert.False(t, fresh.Version.Equals(state.Version))
	assert.NotEmpty(t, fresh.Checksum)
	// One synced baseline transaction carrying the surviving node
	require.Len(t, fresh.Transactions, 1)
	baseline := fresh.Transactions[0]
	assert.True(t, baseline.Synced())
	require.Len(t, baseline.Diff.AddedNodes, 1)
	assert.Equal(t, "b", baseline.Diff.AddedNodes[0].ID)

	// The fold is persisted as the new authoritative state
	stored, err := store.Load(context.Background(), canvasID)
	require.NoError(t, err)
	assert.True(t, stored.Version.Equals(fresh.Version))
}

func TestCanvasAPIService_CreateVersion_MergesClientTransactions(t *testing.T) {
	service, store := newAPIFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	state.AppendTransaction(txAt(100, aggregates.GraphDiff{AddedNodes: []entities.Node{testNode("server")}}))
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	// Client sends the shared lineage plus an edit the server has not seen
	client := state.Clone()
	client.AppendTransaction(txAt(200, aggregates.GraphDiff{AddedNodes: []entities.Node{testNode("client")}}))

	fresh, err := service.CreateVersion(context.Background(), canvasID, client)

	require.NoError(t, err)
	require.Len(t, fresh.Transactions, 1)
	nodes := fresh.Transactions[0].Diff.AddedNodes
	require.Len(t, nodes, 2)
}

func TestCanvasAPIService_Snapshot_MaterializesGraph(t *testing.T) {
	service, store := newAPIFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	state.AppendTransaction(txAt(100, aggregates.GraphDiff{
		AddedNodes: []entities.Node{testNode("a")},
		AddedEdges: []entities.Edge{},
	}))
	revoked := txAt(200, aggregates.GraphDiff{AddedNodes: []entities.Node{testNode("hidden")}})
	revoked.Revoked = true
	state.AppendTransaction(revoked)
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	graph, err := service.Snapshot(context.Background(), canvasID)

	require.NoError(t, err)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, "a", graph.Nodes[0].ID)
}

func TestCanvasAPIService_Snapshot_UnknownCanvasIsNotFound(t *testing.T) {
	service, _ := newAPIFixture()
	canvasID := testCanvas(t, "canvas-absent")

	_, err := service.Snapshot(context.Background(), canvasID)

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCanvasAPIService_ApplySyncStampIsRecent(t *testing.T) {
	service, store := newAPIFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	before := utils.NowMillis()
	require.NoError(t, service.ApplySync(context.Background(), canvasID, state.Version, []aggregates.Transaction{txAt(100, aggregates.GraphDiff{})}))

	stored, err := store.Load(context.Background(), canvasID)
	require.NoError(t, err)
	require.Len(t, stored.Transactions, 1)
	assert.GreaterOrEqual(t, stored.Transactions[0].SyncedAt, before)
}
