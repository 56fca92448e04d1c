package dsl

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/chatflow/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	start string
	nodes map[string]*NodeBuilder
	order []string
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[string]*NodeBuilder),
	}
}

// Start overrides the entry node. The first added node is used otherwise.
func (b *Builder) Start(id string) *Builder {
	b.start = id
	return b
}

// Add creates a new node in the graph.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node: domain.Node{
			ID:   id,
			Kind: domain.KindInput,
		},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Build validates the nodes and returns the graph.
func (b *Builder) Build() (*domain.Graph, error) {
	if len(b.nodes) == 0 {
		return nil, errors.New("graph has no nodes")
	}

	ids := make([]string, 0, len(b.nodes))
	for id := range b.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	nodes := make([]domain.Node, 0, len(ids))
	for _, id := range ids {
		nb := b.nodes[id]
		if nb.err != nil {
			errs = append(errs, fmt.Errorf("node %q: %w", id, nb.err))
			continue
		}
		nodes = append(nodes, nb.Build())
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	g := domain.NewGraph(nodes...)
	g.Start = b.order[0]
	if b.start != "" {
		g.Start = b.start
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	return g, nil
}
