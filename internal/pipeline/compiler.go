package pipeline

import (
	"fmt"
	"sort"
)

// ExecutableNode represents a compiled graph node ready for execution.
type ExecutableNode struct {
	ID      string
	Kind    NodeKind
	Fields  []string
	Tool    *ToolSpec
	Ingress *IngressSpec
	Sink    *SinkSpec
	// Inputs maps this node's input field names to (node, field) producers.
	Inputs map[string]FieldRef
}

// FieldRef names the producer of a field value.
type FieldRef struct {
	Node  string
	Field string
}

// ExecutablePlan is a deterministic representation of a graph ready for
// workflow execution: validated, topologically ordered, cycle-free.
type ExecutablePlan struct {
	GraphName string
	Nodes     map[string]ExecutableNode
	Order     []string
	Adjacency map[string][]string
}

// Compile converts a validated graph into an ExecutablePlan.
func Compile(g *Graph) (*ExecutablePlan, error) {
	if g == nil {
		return nil, fmt.Errorf("graph is nil")
	}
	if err := ValidateGraph(g); err != nil {
		return nil, err
	}

	plan := &ExecutablePlan{
		GraphName: g.Name,
		Nodes:     make(map[string]ExecutableNode, len(g.Nodes)),
		Adjacency: make(map[string][]string, len(g.Nodes)),
	}

	for _, node := range g.Nodes {
		plan.Nodes[node.ID] = ExecutableNode{
			ID:      node.ID,
			Kind:    node.Kind,
			Fields:  append([]string(nil), node.Fields...),
			Tool:    cloneTool(node.Tool),
			Ingress: cloneIngress(node.Ingress),
			Sink:    cloneSink(node.Sink),
			Inputs:  make(map[string]FieldRef),
		}
		plan.Adjacency[node.ID] = nil
	}

	edgeSet := make(map[string]map[string]struct{}, len(plan.Nodes))
	for id := range plan.Nodes {
		edgeSet[id] = make(map[string]struct{})
	}
	indegree := make(map[string]int, len(plan.Nodes))

	addEdge := func(from, to string) {
		if from == "" || to == "" || from == to {
			return
		}
		if _, ok := edgeSet[from][to]; ok {
			return
		}
		edgeSet[from][to] = struct{}{}
		indegree[to]++
	}

	for _, edge := range g.Edges {
		addEdge(edge.From, edge.To)
		target := plan.Nodes[edge.To]
		if prev, ok := target.Inputs[edge.ToField]; ok && prev != (FieldRef{Node: edge.From, Field: edge.FromField}) {
			return nil, fmt.Errorf("field %q of node %q is wired from both %s.%s and %s.%s",
				edge.ToField, edge.To, prev.Node, prev.Field, edge.From, edge.FromField)
		}
		target.Inputs[edge.ToField] = FieldRef{Node: edge.From, Field: edge.FromField}
		plan.Nodes[edge.To] = target
	}

	for from, targets := range edgeSet {
		if len(targets) == 0 {
			continue
		}
		plan.Adjacency[from] = make([]string, 0, len(targets))
		for to := range targets {
			plan.Adjacency[from] = append(plan.Adjacency[from], to)
		}
		sort.Strings(plan.Adjacency[from])
	}

	for id := range plan.Nodes {
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
		}
	}

	order, err := topologicalOrder(plan.Adjacency, indegree)
	if err != nil {
		return nil, err
	}
	plan.Order = order

	return plan, nil
}

func topologicalOrder(adjacency map[string][]string, indegree map[string]int) ([]string, error) {
	zero := make([]string, 0, len(indegree))
	for id, d := range indegree {
		if d == 0 {
			zero = append(zero, id)
		}
	}
	sort.Strings(zero)

	order := make([]string, 0, len(indegree))
	for len(zero) > 0 {
		current := zero[0]
		zero = zero[1:]
		order = append(order, current)

		for _, next := range adjacency[current] {
			indegree[next]--
			if indegree[next] == 0 {
				zero = append(zero, next)
			}
		}
		sort.Strings(zero)
	}

	if len(order) != len(indegree) {
		return nil, fmt.Errorf("cycle detected in task graph")
	}
	return order, nil
}

func cloneTool(t *ToolSpec) *ToolSpec {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Args = append([]string(nil), t.Args...)
	if t.Outputs != nil {
		clone.Outputs = make(map[string]string, len(t.Outputs))
		for k, v := range t.Outputs {
			clone.Outputs[k] = v
		}
	}
	return &clone
}

func cloneIngress(s *IngressSpec) *IngressSpec {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

func cloneSink(s *SinkSpec) *SinkSpec {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}
