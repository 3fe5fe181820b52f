package entities

import (
	"reflect"

	"canvas-sync/domain/core/valueobjects"
)

// ContextItem is one entry of a node's context list. Items can reference
// large or ephemeral payloads that must never enter the transaction log.
type ContextItem struct {
	ID        string `json:"id"`
	Type      string `json:"type,omitempty"`
	Title     string `json:"title,omitempty"`
	Content   string `json:"content,omitempty"`
	Ephemeral bool   `json:"ephemeral,omitempty"`
}

// NodeMetadata is the metadata bag carried by a node's data payload
type NodeMetadata struct {
	Status       string                 `json:"status,omitempty"`
	ContextItems []ContextItem          `json:"contextItems,omitempty"`
	Properties   map[string]interface{} `json:"properties,omitempty"`
}

// NodeData is the renderer-facing payload of a node
type NodeData struct {
	Title    string       `json:"title,omitempty"`
	Metadata NodeMetadata `json:"metadata"`
}

// Node is one materialized canvas graph element. Node IDs are assigned by
// the rendering layer; the transaction log is the source of truth for the
// set of nodes, the materialized graph is transient.
type Node struct {
	ID       string                `json:"id"`
	Kind     string                `json:"kind,omitempty"`
	Position valueobjects.Position `json:"position"`
	Data     NodeData              `json:"data"`
}

// Equals reports whether two nodes are equivalent field by field
func (n Node) Equals(other Node) bool {
	return reflect.DeepEqual(n, other)
}

// Sanitized returns a copy of the node with its context items purged
// according to the persistence policy.
func (n Node) Sanitized(maxItemBytes int) Node {
	clean := n
	clean.Data.Metadata.ContextItems = PurgeContextItems(n.Data.Metadata.ContextItems, maxItemBytes)
	return clean
}

// PurgeContextItems strips context items that must not be persisted into a
// transaction: ephemeral entries and entries whose content exceeds
// maxItemBytes. Surviving items keep their relative order.
func PurgeContextItems(items []ContextItem, maxItemBytes int) []ContextItem {
	if len(items) == 0 {
		return nil
	}

	kept := make([]ContextItem, 0, len(items))
	for _, item := range items {
		if item.Ephemeral {
			continue
		}
		if maxItemBytes > 0 && len(item.Content) > maxItemBytes {
			// Keep the reference, drop the oversized blob
			item.Content = ""
		}
		kept = append(kept, item)
	}

	if len(kept) == 0 {
		return nil
	}
	return kept
}
