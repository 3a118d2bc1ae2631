// Package workflow models the immutable campaign workflow document: a
// directed graph of action nodes connected by optionally delayed, optionally
// conditional edges. It also owns the pure delay and reset-boundary
// arithmetic the scheduler depends on.
package workflow

import (
	"encoding/json"
	"fmt"
)

// NodePlaceholder is the editor placeholder node kind. Placeholder nodes are
// filtered out everywhere: they never execute and never count as edge
// endpoints.
const NodePlaceholder = "addStep"

// Conditional edge outcomes.
const (
	OutcomeAccepted    = "accepted"
	OutcomeNotAccepted = "not_accepted"
)

// DelayData is an edge delay: an integer string plus a unit.
type DelayData struct {
	Delay string `json:"delay"`
	Unit  string `json:"unit"` // "s", "m", "h", "d", "w"
}

// EdgeData carries the optional branch and delay attributes of an edge.
type EdgeData struct {
	IsConditionalPath bool       `json:"isConditionalPath,omitempty"`
	IsPositive        bool       `json:"isPositive,omitempty"`
	DelayData         *DelayData `json:"delayData,omitempty"`
}

// Edge connects two nodes of the workflow graph.
type Edge struct {
	ID     string   `json:"id"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Data   EdgeData `json:"data"`
}

// NodeData holds the action kind and its free-form configuration.
type NodeData struct {
	Type   string                 `json:"type"`
	Config map[string]interface{} `json:"config,omitempty"`
}

// Node is a single workflow node. Type distinguishes real action nodes from
// editor placeholders; Data.Type is the action kind executed by the engine.
type Node struct {
	ID   string   `json:"id"`
	Type string   `json:"type"`
	Data NodeData `json:"data"`
}

// Workflow is the full parsed document.
type Workflow struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Parse decodes a workflow document.
func Parse(raw []byte) (*Workflow, error) {
	var wf Workflow
	if err := json.Unmarshal(raw, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	return &wf, nil
}

// ConfigString returns a string config value from a node, or "" if unset.
func (n *Node) ConfigString(key string) string {
	if n.Data.Config == nil {
		return ""
	}
	v, _ := n.Data.Config[key].(string)
	return v
}

// ConfigBool returns a bool config value from a node.
func (n *Node) ConfigBool(key string) bool {
	if n.Data.Config == nil {
		return false
	}
	v, _ := n.Data.Config[key].(bool)
	return v
}

// ConfigInt returns an integer config value from a node, tolerating the
// float64 representation JSON decoding produces.
func (n *Node) ConfigInt(key string) int {
	if n.Data.Config == nil {
		return 0
	}
	switch v := n.Data.Config[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
