package entities

import "reflect"

// Edge connects two canvas nodes. Like nodes, edge IDs are assigned by the
// rendering layer.
type Edge struct {
	ID         string                 `json:"id"`
	Source     string                 `json:"source"`
	Target     string                 `json:"target"`
	Kind       string                 `json:"kind,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// Equals reports whether two edges are equivalent field by field
func (e Edge) Equals(other Edge) bool {
	return reflect.DeepEqual(e, other)
}
