package domain

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultStartNode is the entry node used when a graph does not name one.
const DefaultStartNode = "start"

// Graph is the immutable mapping of node id to node definition.
// Dangling references are not detected eagerly; they surface as ErrNodeNotFound
// when traversal actually reaches them.
type Graph struct {
	Start string
	Nodes map[string]Node
}

// NewGraph builds a graph from nodes, starting at DefaultStartNode.
// A later node with a duplicate id replaces the earlier one.
func NewGraph(nodes ...Node) *Graph {
	g := &Graph{
		Start: DefaultStartNode,
		Nodes: make(map[string]Node, len(nodes)),
	}
	for _, n := range nodes {
		g.Nodes[n.ID] = cloneNode(n)
	}
	return g
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.Nodes[id]
	if !ok {
		return Node{}, false
	}
	return cloneNode(n), true
}

// StartNode returns the configured entry node id.
func (g *Graph) StartNode() string {
	if g.Start == "" {
		return DefaultStartNode
	}
	return g.Start
}

// IDs returns all node ids in lexical order.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate lints the graph: the start node and every static target must exist,
// and computed nodes must name a rule. The engine never calls this itself.
func (g *Graph) Validate() error {
	var errs []error
	if _, ok := g.Nodes[g.StartNode()]; !ok {
		errs = append(errs, fmt.Errorf("start node %q: %w", g.StartNode(), ErrNodeNotFound))
	}
	for _, id := range g.IDs() {
		n := g.Nodes[id]
		if n.ID != id {
			errs = append(errs, fmt.Errorf("node %q: id field is %q", id, n.ID))
		}
		switch n.Next.Kind {
		case NextStatic:
			if _, ok := g.Nodes[n.Next.Target]; !ok {
				errs = append(errs, fmt.Errorf("node %q: next %q: %w", id, n.Next.Target, ErrNodeNotFound))
			}
		case NextComputed:
			if n.Next.Rule == "" {
				errs = append(errs, fmt.Errorf("node %q: computed next without rule", id))
			}
		case "":
			if !n.IsEnd {
				errs = append(errs, fmt.Errorf("node %q: no next and not an end node", id))
			}
		default:
			errs = append(errs, fmt.Errorf("node %q: unknown next kind %q", id, n.Next.Kind))
		}
	}
	return errors.Join(errs...)
}

func cloneNode(n Node) Node {
	if n.Options != nil {
		n.Options = append([]string(nil), n.Options...)
	}
	return n
}
