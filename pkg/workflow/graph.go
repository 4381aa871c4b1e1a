package workflow

import "fmt"

// Graph is the derived execution structure: an adjacency list plus a node
// lookup map. It is built once per run and never mutated during traversal.
type Graph struct {
	// Adjacency maps a node ID to its direct successors, in
	// edge-declaration order
	Adjacency map[string][]string

	// Nodes maps a node ID to its definition
	Nodes map[string]*Node

	// TriggerIDs lists every node whose kind is trigger, in node order
	TriggerIDs []string

	// edges keeps the original declaration order for predecessor lookups
	edges []Edge
}

// BuildGraph converts node and edge lists into an execution graph.
//
// Every node gets an adjacency entry, so isolated nodes resolve to an
// empty successor list rather than a missing key. Edge order is
// preserved: when a node has several successors they execute in the
// order their edges were declared. An edge referencing a node ID that
// does not exist is a build-time error. A graph with zero trigger nodes
// is legal; executing it simply runs nothing.
func BuildGraph(nodes []Node, edges []Edge) (*Graph, error) {
	g := &Graph{
		Adjacency: make(map[string][]string, len(nodes)),
		Nodes:     make(map[string]*Node, len(nodes)),
	}

	for i := range nodes {
		node := &nodes[i]
		if node.ID == "" {
			return nil, fmt.Errorf("node at index %d has no id", i)
		}
		if _, exists := g.Nodes[node.ID]; exists {
			return nil, fmt.Errorf("duplicate node id %q", node.ID)
		}
		g.Nodes[node.ID] = node
		g.Adjacency[node.ID] = nil
		if node.Kind == KindTrigger {
			g.TriggerIDs = append(g.TriggerIDs, node.ID)
		}
	}

	for _, edge := range edges {
		if _, ok := g.Nodes[edge.Source]; !ok {
			return nil, fmt.Errorf("edge references non-existent source node %q", edge.Source)
		}
		if _, ok := g.Nodes[edge.Target]; !ok {
			return nil, fmt.Errorf("edge %q -> %q references non-existent target node %q", edge.Source, edge.Target, edge.Target)
		}
		g.Adjacency[edge.Source] = append(g.Adjacency[edge.Source], edge.Target)
		g.edges = append(g.edges, edge)
	}

	return g, nil
}

// FindCycle looks for a cycle among the nodes reachable from the graph's
// triggers. It returns the first node with an edge back into the active
// traversal stack, visiting triggers in node order and successors in
// edge-declaration order, so the reported node is deterministic for a
// given definition.
func (g *Graph) FindCycle() (string, bool) {
	const (
		unvisited = iota
		inStack
		settled
	)
	state := make(map[string]int, len(g.Nodes))

	var visit func(nodeID string) (string, bool)
	visit = func(nodeID string) (string, bool) {
		state[nodeID] = inStack
		for _, successorID := range g.Adjacency[nodeID] {
			switch state[successorID] {
			case inStack:
				return successorID, true
			case unvisited:
				if id, found := visit(successorID); found {
					return id, true
				}
			}
		}
		state[nodeID] = settled
		return "", false
	}

	for _, triggerID := range g.TriggerIDs {
		if state[triggerID] != unvisited {
			continue
		}
		if id, found := visit(triggerID); found {
			return id, true
		}
	}
	return "", false
}

// Predecessors returns the IDs of every node with an edge into nodeID, in
// edge-declaration order. Merge nodes use this to find their inputs.
func (g *Graph) Predecessors(nodeID string) []string {
	var sources []string
	for _, edge := range g.edges {
		if edge.Target == nodeID {
			sources = append(sources, edge.Source)
		}
	}
	return sources
}

// Node returns the definition for nodeID, or nil when it is unknown
func (g *Graph) Node(nodeID string) *Node {
	return g.Nodes[nodeID]
}
