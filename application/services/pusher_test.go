package services

import (
	"context"
	"testing"

	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/versioning"
	"canvas-sync/infrastructure/persistence/memory"
	apperrors "canvas-sync/pkg/errors"
	"canvas-sync/tests/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPusherFixture() (*PushSynchronizer, *memory.StateStore, *mocks.MockRemoteClient, *mocks.MockNotifier) {
	store := memory.NewStateStore()
	remote := new(mocks.MockRemoteClient)
	notifier := new(mocks.MockNotifier)
	compactor := NewVersionCompactor(store, remote, testMetrics(), zap.NewNop())
	pusher := NewPushSynchronizer(store, remote, notifier, compactor, testPolicy(), testMetrics(), zap.NewNop())
	return pusher, store, remote, notifier
}

func TestPushSynchronizer_PushesUnsyncedAndMarksSynced(t *testing.T) {
	// Arrange
	pusher, store, remote, _ := newPusherFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	state.AppendTransaction(txAt(100, aggregates.GraphDiff{RemovedNodes: []string{"x"}}))
	state.AppendTransaction(txAt(200, aggregates.GraphDiff{RemovedNodes: []string{"y"}}))
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	remote.On("SyncTransactions", mock.Anything, canvasID, state.Version, mock.MatchedBy(func(txs []aggregates.Transaction) bool {
		return len(txs) == 2
	})).Return(nil)

	// Act
	err := pusher.SyncOnce(context.Background(), canvasID)

	// Assert
	require.NoError(t, err)
	remote.AssertExpectations(t)
	after, err := store.Load(context.Background(), canvasID)
	require.NoError(t, err)
	for _, tx := range after.Transactions {
		assert.True(t, tx.Synced())
	}
}

func TestPushSynchronizer_NothingUnsyncedNoCall(t *testing.T) {
	pusher, store, remote, _ := newPusherFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	tx := txAt(100, aggregates.GraphDiff{})
	tx.SyncedAt = 150
	state.AppendTransaction(tx)
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	err := pusher.SyncOnce(context.Background(), canvasID)

	require.NoError(t, err)
	remote.AssertNotCalled(t, "SyncTransactions", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPushSynchronizer_MissingStateIsNoOp(t *testing.T) {
	pusher, _, remote, _ := newPusherFixture()
	canvasID := testCanvas(t, "canvas-absent")

	err := pusher.SyncOnce(context.Background(), canvasID)

	require.NoError(t, err)
	remote.AssertNotCalled(t, "SyncTransactions", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPushSynchronizer_FailureNotifiesAndKeepsUnsynced(t *testing.T) {
	pusher, store, remote, notifier := newPusherFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	state.AppendTransaction(txAt(100, aggregates.GraphDiff{}))
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	pushErr := apperrors.NewNetworkError("server unreachable", nil)
	remote.On("SyncTransactions", mock.Anything, canvasID, state.Version, mock.Anything).Return(pushErr)
	notifier.On("NotifySyncFailure", canvasID, pushErr).Return()

	err := pusher.SyncOnce(context.Background(), canvasID)

	require.Error(t, err)
	notifier.AssertExpectations(t)
	after, loadErr := store.Load(context.Background(), canvasID)
	require.NoError(t, loadErr)
	// Still unsynced; the next interval retries
	assert.Len(t, after.UnsyncedTransactions(), 1)
}

func TestPushSynchronizer_RevokedTransactionsArePushed(t *testing.T) {
	pusher, store, remote, _ := newPusherFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	revoked := txAt(100, aggregates.GraphDiff{})
	revoked.Revoked = true
	state.AppendTransaction(revoked)
	deleted := txAt(200, aggregates.GraphDiff{})
	deleted.Deleted = true
	state.AppendTransaction(deleted)
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	remote.On("SyncTransactions", mock.Anything, canvasID, state.Version, mock.MatchedBy(func(txs []aggregates.Transaction) bool {
		return len(txs) == 1 && txs[0].Revoked
	})).Return(nil)

	err := pusher.SyncOnce(context.Background(), canvasID)

	require.NoError(t, err)
	remote.AssertExpectations(t)
}

func TestPushSynchronizer_UndoDuringPushKeepsRevocationUnsynced(t *testing.T) {
	// Arrange: one unsynced transaction about to be pushed
	pusher, store, remote, _ := newPusherFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	state.AppendTransaction(txAt(100, aggregates.GraphDiff{}))
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	history := NewHistory(store, mocks.NewFakeRenderer(), zap.NewNop())
	remote.On("SyncTransactions", mock.Anything, canvasID, state.Version, mock.Anything).
		Run(func(mock.Arguments) {
			// The user undoes while the round trip is in flight
			require.NoError(t, history.Undo(context.Background(), canvasID))
		}).Return(nil)

	// Act
	require.NoError(t, pusher.SyncOnce(context.Background(), canvasID))

	// Assert: the revocation stays unsynced and is delivered next cycle
	after, err := store.Load(context.Background(), canvasID)
	require.NoError(t, err)
	require.Len(t, after.Transactions, 1)
	assert.True(t, after.Transactions[0].Revoked)
	assert.False(t, after.Transactions[0].Synced())
	assert.Len(t, after.UnsyncedTransactions(), 1)
}

func TestPushSynchronizer_ThresholdLogCompactsInsteadOfPushing(t *testing.T) {
	// Arrange: the log sits exactly at the compaction threshold
	pusher, store, remote, _ := newPusherFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	for i := 0; i < 100; i++ {
		state.AppendTransaction(txAt(int64(i+1), aggregates.GraphDiff{
			RemovedNodes: []string{"n"},
		}))
	}
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	fresh, err := versioning.Compact(state)
	require.NoError(t, err)
	remote.On("CreateVersion", mock.Anything, canvasID, mock.Anything).Return(fresh, nil)

	// Act
	err = pusher.SyncOnce(context.Background(), canvasID)

	// Assert
	require.NoError(t, err)
	remote.AssertNotCalled(t, "SyncTransactions", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	remote.AssertCalled(t, "CreateVersion", mock.Anything, canvasID, mock.Anything)
}

func TestPushSynchronizer_OversizedLogCompactsInsteadOfPushing(t *testing.T) {
	// Arrange: one more transaction than the compaction threshold
	pusher, store, remote, _ := newPusherFixture()
	canvasID := testCanvas(t, "canvas-1")

	state := aggregates.NewCanvasState()
	for i := 0; i < 101; i++ {
		state.AppendTransaction(txAt(int64(i+1), aggregates.GraphDiff{
			RemovedNodes: []string{"n"},
		}))
	}
	require.NoError(t, store.Save(context.Background(), canvasID, state))

	fresh, err := versioning.Compact(state)
	require.NoError(t, err)
	remote.On("CreateVersion", mock.Anything, canvasID, mock.Anything).Return(fresh, nil)

	// Act
	err = pusher.SyncOnce(context.Background(), canvasID)

	// Assert
	require.NoError(t, err)
	remote.AssertNotCalled(t, "SyncTransactions", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	remote.AssertCalled(t, "CreateVersion", mock.Anything, canvasID, mock.Anything)

	after, err := store.Load(context.Background(), canvasID)
	require.NoError(t, err)
	assert.True(t, after.Version.Equals(fresh.Version))
	assert.LessOrEqual(t, len(after.Transactions), 1)
}
