package pipeline

import (
	"fmt"
	"strings"
)

// ValidationIssue captures a single validation failure with a stable code for metrics.
type ValidationIssue struct {
	Code    string
	Message string
}

// ValidationError aggregates graph validation failures.
type ValidationError struct {
	Issues []ValidationIssue
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "graph validation failed"
	}
	if len(e.Issues) == 1 {
		return e.Issues[0].Message
	}
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.Message
	}
	return fmt.Sprintf("%d validation errors: %s", len(e.Issues), strings.Join(msgs, "; "))
}

// HasIssues reports whether any validation problems were captured.
func (e *ValidationError) HasIssues() bool {
	return e != nil && len(e.Issues) > 0
}

var allowedKinds = map[NodeKind]struct{}{
	KindIdentity: {},
	KindTool:     {},
	KindIngress:  {},
	KindSink:     {},
}

// ValidateGraph performs structural checks and returns a ValidationError when
// problems exist. Field-level wiring mistakes (an edge naming a field its
// producer never emits) surface here rather than at execution time.
func ValidateGraph(g *Graph) error {
	verr := &ValidationError{}
	add := func(code, format string, args ...interface{}) {
		verr.Issues = append(verr.Issues, ValidationIssue{Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if g == nil {
		add("graph_nil", "graph is nil")
		return verr
	}
	if g.Name == "" {
		add("graph_name_missing", "graph name is required")
	}
	if len(g.Nodes) == 0 {
		add("graph_empty", "graph %q has no nodes", g.Name)
	}

	seen := make(map[string]struct{}, len(g.Nodes))
	for _, node := range g.Nodes {
		if node.ID == "" {
			add("node_id_missing", "graph %q contains a node without an ID", g.Name)
			continue
		}
		if _, dup := seen[node.ID]; dup {
			add("node_id_duplicate", "duplicate node ID %q", node.ID)
		}
		seen[node.ID] = struct{}{}

		if _, ok := allowedKinds[node.Kind]; !ok {
			add("node_kind_unknown", "node %q has unknown kind %q", node.ID, node.Kind)
		}
		switch node.Kind {
		case KindTool:
			if node.Tool == nil || node.Tool.Binary == "" {
				add("tool_missing", "tool node %q does not name a binary", node.ID)
			}
		case KindIdentity:
			if len(node.Fields) == 0 {
				add("identity_fields_missing", "identity node %q declares no fields", node.ID)
			}
		case KindIngress:
			if node.Ingress == nil || node.Ingress.Source == "" {
				add("ingress_missing", "ingress node %q does not name a source", node.ID)
			}
		case KindSink:
			if node.Sink == nil {
				add("sink_missing", "sink node %q has no sink spec", node.ID)
			}
		}
	}

	for _, edge := range g.Edges {
		if _, ok := seen[edge.From]; !ok {
			add("edge_from_unknown", "edge references unknown source node %q", edge.From)
		}
		if _, ok := seen[edge.To]; !ok {
			add("edge_to_unknown", "edge references unknown target node %q", edge.To)
		}
		if edge.FromField == "" || edge.ToField == "" {
			add("edge_field_missing", "edge %s->%s is missing a field name", edge.From, edge.To)
		}
		if from := g.NodeByID(edge.From); from != nil && (from.Kind == KindIdentity || from.Kind == KindIngress) {
			if !containsField(from.Fields, edge.FromField) {
				add("edge_field_unknown", "node %q does not carry field %q", edge.From, edge.FromField)
			}
		}
	}

	if verr.HasIssues() {
		return verr
	}
	return nil
}

func containsField(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}
