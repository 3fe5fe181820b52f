// Package reconcile holds the pure diff/replay/merge primitives of the
// canvas sync engine. Nothing in this package performs I/O; every function
// is deterministic given its inputs.
package reconcile

import (
	"sort"

	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/core/entities"
)

// Materialize replays all non-revoked, non-deleted transactions of a state
// in CreatedAt order, starting from an empty graph. Replaying the same log
// twice yields identical graphs.
func Materialize(state *aggregates.CanvasState) aggregates.Graph {
	graph := aggregates.Graph{
		Nodes: []entities.Node{},
		Edges: []entities.Edge{},
	}
	if state == nil {
		return graph
	}

	// Replay order is defined by CreatedAt, not by position in the log
	ordered := make([]aggregates.Transaction, len(state.Transactions))
	copy(ordered, state.Transactions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt < ordered[j].CreatedAt
	})

	for _, tx := range ordered {
		if tx.Revoked || tx.Deleted {
			continue
		}
		graph = ApplyDiff(graph, tx.Diff)
	}
	return graph
}

// ApplyDiff applies one diff to a graph and returns the resulting graph.
// The input graph is not mutated. Additions of an already-present element
// and updates of a missing element both degrade to upserts, so replay stays
// total over logs merged from different sources.
func ApplyDiff(graph aggregates.Graph, diff aggregates.GraphDiff) aggregates.Graph {
	nodes := make([]entities.Node, 0, len(graph.Nodes)+len(diff.AddedNodes))
	nodes = append(nodes, graph.Nodes...)
	edges := make([]entities.Edge, 0, len(graph.Edges)+len(diff.AddedEdges))
	edges = append(edges, graph.Edges...)

	nodes = upsertNodes(nodes, diff.AddedNodes)
	nodes = upsertNodes(nodes, diff.UpdatedNodes)
	nodes = removeNodes(nodes, diff.RemovedNodes)

	edges = upsertEdges(edges, diff.AddedEdges)
	edges = upsertEdges(edges, diff.UpdatedEdges)
	edges = removeEdges(edges, diff.RemovedEdges)

	return aggregates.Graph{Nodes: nodes, Edges: edges}
}

func upsertNodes(nodes []entities.Node, incoming []entities.Node) []entities.Node {
	for _, node := range incoming {
		replaced := false
		for i := range nodes {
			if nodes[i].ID == node.ID {
				nodes[i] = node
				replaced = true
				break
			}
		}
		if !replaced {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

func removeNodes(nodes []entities.Node, ids []string) []entities.Node {
	if len(ids) == 0 {
		return nodes
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := nodes[:0]
	for _, node := range nodes {
		if _, gone := drop[node.ID]; !gone {
			kept = append(kept, node)
		}
	}
	return kept
}

func upsertEdges(edges []entities.Edge, incoming []entities.Edge) []entities.Edge {
	for _, edge := range incoming {
		replaced := false
		for i := range edges {
			if edges[i].ID == edge.ID {
				edges[i] = edge
				replaced = true
				break
			}
		}
		if !replaced {
			edges = append(edges, edge)
		}
	}
	return edges
}

func removeEdges(edges []entities.Edge, ids []string) []entities.Edge {
	if len(ids) == 0 {
		return edges
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := edges[:0]
	for _, edge := range edges {
		if _, gone := drop[edge.ID]; !gone {
			kept = append(kept, edge)
		}
	}
	return kept
}
