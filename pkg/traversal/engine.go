// Package traversal resolves positions and transitions over a flow graph.
// It is pure: no I/O, no mutation of the graph.
package traversal

import (
	"fmt"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/rules"
)

// Engine answers "where am I" and "where do I go next" for a graph.
type Engine struct {
	graph *domain.Graph
	rules *rules.Registry
}

// New creates a traversal engine. A nil registry means no computed rules.
func New(graph *domain.Graph, reg *rules.Registry) *Engine {
	if reg == nil {
		reg = rules.NewRegistry()
	}
	return &Engine{graph: graph, rules: reg}
}

// Graph returns the graph being traversed.
func (e *Engine) Graph() *domain.Graph {
	return e.graph
}

// GetCurrentNode returns the node for stepID.
// A missing node means the stored position and the graph disagree.
func (e *Engine) GetCurrentNode(stepID string) (domain.Node, error) {
	node, ok := e.graph.Node(stepID)
	if !ok {
		return domain.Node{}, fmt.Errorf("node %q: %w", stepID, domain.ErrNodeNotFound)
	}
	return node, nil
}

// GetNextStep resolves the destination of stepID for answer.
// The returned id is not checked against the graph; a dangling target
// surfaces on the next GetCurrentNode.
func (e *Engine) GetNextStep(stepID string, answer any) (string, error) {
	node, err := e.GetCurrentNode(stepID)
	if err != nil {
		return "", err
	}

	switch node.Next.Kind {
	case domain.NextStatic:
		return node.Next.Target, nil
	case domain.NextComputed:
		target, err := e.rules.Resolve(node.Next.Rule, answer)
		if err != nil {
			return "", fmt.Errorf("node %q: %w", stepID, err)
		}
		return target, nil
	default:
		if node.Next.Target != "" {
			return node.Next.Target, nil
		}
		return "", fmt.Errorf("node %q has no next: %w", stepID, domain.ErrNodeNotFound)
	}
}
