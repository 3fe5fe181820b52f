// Package versioning decides when and how a canvas transaction log is
// folded into a new, shorter version baseline.
package versioning

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/reconcile"
	"canvas-sync/pkg/utils"

	"lukechampine.com/blake3"
)

// CompactionPolicy defines when a log should be folded into a new version.
// The thresholds are policy knobs, surfaced through configuration.
type CompactionPolicy struct {
	// MaxTransactions is the log length above which compaction is requested
	MaxTransactions int `json:"max_transactions"`
	// MaxAge is the age of the newest transaction above which a settled
	// log is compacted
	MaxAge time.Duration `json:"max_age"`
}

// DefaultCompactionPolicy returns the default compaction policy
func DefaultCompactionPolicy() CompactionPolicy {
	return CompactionPolicy{
		MaxTransactions: 100,
		MaxAge:          time.Hour,
	}
}

// ShouldCompact determines if the state's log should be folded into a new
// version: either the log reached MaxTransactions or its newest entry is
// older than MaxAge.
func (p CompactionPolicy) ShouldCompact(state *aggregates.CanvasState, now time.Time) bool {
	if state == nil {
		return false
	}
	if p.MaxTransactions > 0 && len(state.Transactions) >= p.MaxTransactions {
		return true
	}
	if p.MaxAge > 0 {
		if last := reconcile.LastTransaction(state); last != nil {
			if now.Sub(utils.MillisToTime(last.CreatedAt)) > p.MaxAge {
				return true
			}
		}
	}
	return false
}

// Checksum calculates a BLAKE3 content hash over the canonical JSON
// encoding of a materialized graph. Equal graphs hash equally regardless of
// the transaction history that produced them.
func Checksum(graph aggregates.Graph) (string, error) {
	data, err := json.Marshal(graph)
	if err != nil {
		return "", fmt.Errorf("failed to encode graph for checksum: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Compact folds a state's settled log into a fresh version: the current
// materialized graph becomes a single acknowledged baseline transaction
// under a new version ID, so replay-from-empty still reconstructs the
// graph. An empty graph compacts to an empty log.
func Compact(state *aggregates.CanvasState) (*aggregates.CanvasState, error) {
	graph := reconcile.Materialize(state)

	checksum, err := Checksum(graph)
	if err != nil {
		return nil, err
	}

	compacted := aggregates.NewCanvasState()
	compacted.Checksum = checksum

	if !graph.IsEmpty() {
		baseline := aggregates.NewTransaction(aggregates.GraphDiff{
			AddedNodes: graph.Nodes,
			AddedEdges: graph.Edges,
		})
		baseline.SyncedAt = utils.NowMillis()
		compacted.Transactions = []aggregates.Transaction{baseline}
	}

	return compacted, nil
}
