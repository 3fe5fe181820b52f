package reconcile

import (
	"canvas-sync/domain/core/aggregates"
	apperrors "canvas-sync/pkg/errors"
	"canvas-sync/pkg/utils"
)

// Merge reconciles two independently evolved transaction logs sharing a
// common version ancestor.
//
// Matching versions: the merged log is the union of both logs deduplicated
// by transaction ID and re-sorted by CreatedAt. For a shared ID the
// unsynced copy wins, so locally recorded flag changes (undo/redo) survive
// the merge until they are pushed.
//
// Diverged versions: when the remote has compacted past the local baseline
// the remote becomes the base and local-only unsynced transactions are
// replayed on top. If the local log holds acknowledged transactions the
// remote no longer knows about, the lineages are incompatible and a
// conflict error (apperrors.ErrorTypeConflict) is returned; callers degrade
// to remote-wins.
//
// This is deliberately a heuristic version-lineage reconciliation, not a
// CRDT or operational transform.
func Merge(local, remote *aggregates.CanvasState) (*aggregates.CanvasState, error) {
	if remote == nil {
		return nil, apperrors.NewConflictError("cannot merge against a nil remote state")
	}
	if local == nil {
		return remote.Clone(), nil
	}

	if local.Version.Equals(remote.Version) {
		return mergeSameVersion(local, remote), nil
	}
	return mergeDivergedVersions(local, remote)
}

func mergeSameVersion(local, remote *aggregates.CanvasState) *aggregates.CanvasState {
	merged := remote.Clone()
	remoteIDs := merged.TransactionIDs()

	// Local unsynced copies override the remote copy for shared IDs
	for i := range merged.Transactions {
		remoteTx := &merged.Transactions[i]
		for _, localTx := range local.Transactions {
			if localTx.TxID.Equals(remoteTx.TxID) && !localTx.Synced() {
				*remoteTx = localTx
				break
			}
		}
	}

	for _, tx := range local.Transactions {
		if _, present := remoteIDs[tx.TxID.String()]; !present {
			merged.Transactions = append(merged.Transactions, tx)
		}
	}

	merged.SortTransactions()
	merged.UpdatedAt = utils.NowMillis()
	return merged
}

func mergeDivergedVersions(local, remote *aggregates.CanvasState) (*aggregates.CanvasState, error) {
	remoteIDs := remote.TransactionIDs()

	// Acknowledged local transactions missing from a different remote
	// lineage mean both sides claim authoritative history
	for _, tx := range local.Transactions {
		if _, present := remoteIDs[tx.TxID.String()]; !present && tx.Synced() {
			return nil, apperrors.NewConflictError(
				"local log contains acknowledged transactions unknown to remote version " + remote.Version.String(),
			)
		}
	}

	merged := remote.Clone()
	for _, tx := range local.Transactions {
		if _, present := remoteIDs[tx.TxID.String()]; !present {
			merged.Transactions = append(merged.Transactions, tx)
		}
	}

	merged.SortTransactions()
	merged.UpdatedAt = utils.NowMillis()
	return merged, nil
}

// LastTransaction returns the most recent non-deleted transaction by
// CreatedAt, or nil for an empty log. Used to decide age-based compaction.
func LastTransaction(state *aggregates.CanvasState) *aggregates.Transaction {
	if state == nil {
		return nil
	}
	var last *aggregates.Transaction
	for i := range state.Transactions {
		tx := &state.Transactions[i]
		if tx.Deleted {
			continue
		}
		if last == nil || tx.CreatedAt > last.CreatedAt {
			last = tx
		}
	}
	return last
}
