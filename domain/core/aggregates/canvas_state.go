package aggregates

import (
	"encoding/json"
	"sort"

	"canvas-sync/domain/core/entities"
	"canvas-sync/domain/core/valueobjects"
	"canvas-sync/pkg/utils"
)

// Graph is the materialized {nodes, edges} view consumed by the rendering
// layer. It is transient: the transaction log is authoritative, a graph is
// always reconstructable by replay.
type Graph struct {
	Nodes []entities.Node `json:"nodes"`
	Edges []entities.Edge `json:"edges"`
}

// NodeIndex returns a lookup map from node ID to node
func (g Graph) NodeIndex() map[string]entities.Node {
	index := make(map[string]entities.Node, len(g.Nodes))
	for _, node := range g.Nodes {
		index[node.ID] = node
	}
	return index
}

// EdgeIndex returns a lookup map from edge ID to edge
func (g Graph) EdgeIndex() map[string]entities.Edge {
	index := make(map[string]entities.Edge, len(g.Edges))
	for _, edge := range g.Edges {
		index[edge.ID] = edge
	}
	return index
}

// IsEmpty reports whether the graph has no elements
func (g Graph) IsEmpty() bool {
	return len(g.Nodes) == 0 && len(g.Edges) == 0
}

// GraphDiff describes one atomic set of changes against a graph: element
// additions, removals and full-element updates.
type GraphDiff struct {
	AddedNodes   []entities.Node `json:"addedNodes,omitempty"`
	UpdatedNodes []entities.Node `json:"updatedNodes,omitempty"`
	RemovedNodes []string        `json:"removedNodes,omitempty"`
	AddedEdges   []entities.Edge `json:"addedEdges,omitempty"`
	UpdatedEdges []entities.Edge `json:"updatedEdges,omitempty"`
	RemovedEdges []string        `json:"removedEdges,omitempty"`
}

// IsEmpty reports whether the diff carries no changes
func (d GraphDiff) IsEmpty() bool {
	return len(d.AddedNodes) == 0 &&
		len(d.UpdatedNodes) == 0 &&
		len(d.RemovedNodes) == 0 &&
		len(d.AddedEdges) == 0 &&
		len(d.UpdatedEdges) == 0 &&
		len(d.RemovedEdges) == 0
}

// Transaction is one atomic recorded diff against the canvas graph.
// A SyncedAt of zero means the transaction has not been acknowledged by the
// server yet. Revoked transactions are excluded from replay but retained
// for redo; Deleted marks a transaction as superseded on the pull path.
type Transaction struct {
	TxID      valueobjects.TransactionID `json:"txId"`
	CreatedAt int64                      `json:"createdAt"`
	SyncedAt  int64                      `json:"syncedAt,omitempty"`
	Revoked   bool                       `json:"revoked,omitempty"`
	Deleted   bool                       `json:"deleted,omitempty"`
	Diff      GraphDiff                  `json:"diff"`
}

// NewTransaction creates an unsynced transaction for the given diff
func NewTransaction(diff GraphDiff) Transaction {
	return Transaction{
		TxID:      valueobjects.NewTransactionID(),
		CreatedAt: utils.NowMillis(),
		Diff:      diff,
	}
}

// Synced reports whether the server has acknowledged this transaction
func (t Transaction) Synced() bool {
	return t.SyncedAt != 0
}

// CanvasState is the authoritative persisted document for one canvas: an
// opaque version baseline plus the ordered transaction log recorded against
// it. Transactions are ordered by CreatedAt, never by arrival order.
type CanvasState struct {
	Version      valueobjects.VersionID `json:"version"`
	Checksum     string                 `json:"checksum,omitempty"`
	Transactions []Transaction          `json:"transactions"`
	UpdatedAt    int64                  `json:"updatedAt,omitempty"`
}

// NewCanvasState creates an empty state under a fresh version baseline
func NewCanvasState() *CanvasState {
	return &CanvasState{
		Version:      valueobjects.NewVersionID(),
		Transactions: []Transaction{},
		UpdatedAt:    utils.NowMillis(),
	}
}

// SortTransactions orders the log by CreatedAt. The sort is stable so that
// transactions stamped in the same millisecond keep their relative order.
func (s *CanvasState) SortTransactions() {
	sort.SliceStable(s.Transactions, func(i, j int) bool {
		return s.Transactions[i].CreatedAt < s.Transactions[j].CreatedAt
	})
}

// HasTransaction reports whether the log contains the given transaction ID
func (s *CanvasState) HasTransaction(id valueobjects.TransactionID) bool {
	for _, tx := range s.Transactions {
		if tx.TxID.Equals(id) {
			return true
		}
	}
	return false
}

// TransactionIDs returns the set of transaction IDs present in the log
func (s *CanvasState) TransactionIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Transactions))
	for _, tx := range s.Transactions {
		ids[tx.TxID.String()] = struct{}{}
	}
	return ids
}

// UnsyncedTransactions returns transactions awaiting server acknowledgment.
// Deleted transactions are never pushed; revoked ones are included so that
// revocations propagate (see push synchronizer).
func (s *CanvasState) UnsyncedTransactions() []Transaction {
	var unsynced []Transaction
	for _, tx := range s.Transactions {
		if !tx.Synced() && !tx.Deleted {
			unsynced = append(unsynced, tx)
		}
	}
	return unsynced
}

// AppendTransaction adds a transaction to the log and restores ordering
func (s *CanvasState) AppendTransaction(tx Transaction) {
	s.Transactions = append(s.Transactions, tx)
	s.SortTransactions()
	s.UpdatedAt = utils.NowMillis()
}

// AcknowledgeSynced stamps SyncedAt on the transactions the server just
// accepted. Each stored transaction is compared against the pushed copy
// first: if its flags drifted while the push was in flight (an undo or
// redo landed mid-round-trip), it stays unstamped so the flag change is
// delivered on the next push cycle instead of being silently lost.
func (s *CanvasState) AcknowledgeSynced(pushed []Transaction, syncedAt int64) {
	sent := make(map[string]Transaction, len(pushed))
	for _, tx := range pushed {
		sent[tx.TxID.String()] = tx
	}
	for i := range s.Transactions {
		snapshot, ok := sent[s.Transactions[i].TxID.String()]
		if !ok {
			continue
		}
		if s.Transactions[i].Revoked != snapshot.Revoked ||
			s.Transactions[i].SyncedAt != snapshot.SyncedAt {
			continue
		}
		s.Transactions[i].SyncedAt = syncedAt
	}
}

// Clone returns a deep copy of the state. The JSON round trip keeps clone
// semantics correct for nested metadata maps.
func (s *CanvasState) Clone() *CanvasState {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		// CanvasState is a closed set of JSON-serializable types; marshal
		// cannot fail for a well-formed state.
		panic("canvas state clone: " + err.Error())
	}
	var clone CanvasState
	if err := json.Unmarshal(data, &clone); err != nil {
		panic("canvas state clone: " + err.Error())
	}
	if clone.Transactions == nil {
		clone.Transactions = []Transaction{}
	}
	return &clone
}
