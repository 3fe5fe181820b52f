package services

// Shared fixtures for the service tests. The memory store stands in for
// persistence; the remote API and notifier are testify mocks.

import (
	"testing"
	"time"

	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/core/entities"
	"canvas-sync/domain/core/valueobjects"
	"canvas-sync/infrastructure/config"
	"canvas-sync/pkg/observability"
	"canvas-sync/pkg/utils"

	"github.com/stretchr/testify/require"
)

func testPolicy() config.PolicyProvider {
	return config.StaticPolicy{P: config.DefaultSyncPolicy()}
}

// fastPolicy shrinks every interval so scheduled behavior is observable
// within a test run
func fastPolicy() config.PolicyProvider {
	p := config.DefaultSyncPolicy()
	p.RecorderDebounce = 20 * time.Millisecond
	p.PushInterval = 30 * time.Millisecond
	p.PollInterval = 40 * time.Millisecond
	p.PollWindow = 500 * time.Millisecond
	return config.StaticPolicy{P: p}
}

func testMetrics() *observability.Collector {
	return observability.NewCollector("canvas_sync")
}

func testCanvas(t *testing.T, id string) valueobjects.CanvasID {
	t.Helper()
	canvasID, err := valueobjects.NewCanvasID(id)
	require.NoError(t, err)
	return canvasID
}

func testNode(id string) entities.Node {
	return entities.Node{
		ID:       id,
		Kind:     "card",
		Position: valueobjects.Position{X: 10, Y: 20},
		Data:     entities.NodeData{Title: "node " + id},
	}
}

func testEdge(id, source, target string) entities.Edge {
	return entities.Edge{ID: id, Source: source, Target: target, Kind: "arrow"}
}

// txAt creates a transaction ordered by offset within a recent window.
// Timestamps stay close to now so age-based compaction never kicks in.
func txAt(offsetMillis int64, diff aggregates.GraphDiff) aggregates.Transaction {
	tx := aggregates.NewTransaction(diff)
	tx.CreatedAt = utils.NowMillis() - 10_000 + offsetMillis
	return tx
}
