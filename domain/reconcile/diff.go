package reconcile

import (
	"canvas-sync/domain/core/aggregates"
)

// ComputeDiff computes the minimal diff turning oldGraph into newGraph.
// Returns nil when the graphs are equivalent, so unchanged graphs never
// produce spurious transactions. Element order in the diff follows
// newGraph for additions/updates and oldGraph for removals, keeping the
// result deterministic.
func ComputeDiff(oldGraph, newGraph aggregates.Graph) *aggregates.GraphDiff {
	diff := aggregates.GraphDiff{}

	oldNodes := oldGraph.NodeIndex()
	newNodes := newGraph.NodeIndex()

	for _, node := range newGraph.Nodes {
		previous, existed := oldNodes[node.ID]
		switch {
		case !existed:
			diff.AddedNodes = append(diff.AddedNodes, node)
		case !previous.Equals(node):
			diff.UpdatedNodes = append(diff.UpdatedNodes, node)
		}
	}
	for _, node := range oldGraph.Nodes {
		if _, present := newNodes[node.ID]; !present {
			diff.RemovedNodes = append(diff.RemovedNodes, node.ID)
		}
	}

	oldEdges := oldGraph.EdgeIndex()
	newEdges := newGraph.EdgeIndex()

	for _, edge := range newGraph.Edges {
		previous, existed := oldEdges[edge.ID]
		switch {
		case !existed:
			diff.AddedEdges = append(diff.AddedEdges, edge)
		case !previous.Equals(edge):
			diff.UpdatedEdges = append(diff.UpdatedEdges, edge)
		}
	}
	for _, edge := range oldGraph.Edges {
		if _, present := newEdges[edge.ID]; !present {
			diff.RemovedEdges = append(diff.RemovedEdges, edge.ID)
		}
	}

	if diff.IsEmpty() {
		return nil
	}
	return &diff
}
