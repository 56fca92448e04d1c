package dsl

import (
	"errors"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/rules"
)

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
	err     error
}

// Question sets the prompt shown to the user.
func (n *NodeBuilder) Question(text string) *NodeBuilder {
	n.node.Question = text
	return n
}

// Buttons makes the node a button node with the given options.
func (n *NodeBuilder) Buttons(options ...string) *NodeBuilder {
	n.node.Kind = domain.KindButton
	n.node.Options = append([]string(nil), options...)
	return n
}

// Input makes the node collect free text. This is the default.
func (n *NodeBuilder) Input() *NodeBuilder {
	n.node.Kind = domain.KindInput
	n.node.Options = nil
	return n
}

// Go sets an unconditional transition to target.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.node.Next = domain.Static(target)
	return n
}

// Rule resolves the transition through a rule registered under name.
func (n *NodeBuilder) Rule(name string) *NodeBuilder {
	n.node.Next = domain.Computed(name)
	return n
}

// Expr resolves the transition with an expr-lang expression over `answer`.
func (n *NodeBuilder) Expr(expression string) *NodeBuilder {
	if strings.TrimSpace(expression) == "" {
		n.err = errors.New("empty expression")
		return n
	}
	n.node.Next = domain.Computed(rules.ExprPrefix + expression)
	return n
}

// Route maps answers to targets, falling back to fallback when set.
func (n *NodeBuilder) Route(table map[string]string, fallback string) *NodeBuilder {
	if len(table) == 0 {
		n.err = errors.New("empty route table")
		return n
	}
	return n.Expr(rules.MapExpression(table, fallback))
}

// End marks the node as terminal and clears its transition.
func (n *NodeBuilder) End() *NodeBuilder {
	n.node.IsEnd = true
	n.node.Next = domain.Next{}
	return n
}

// Add starts the next node on the same builder.
func (n *NodeBuilder) Add(id string) *NodeBuilder {
	return n.builder.Add(id)
}

// Build returns the underlying domain.Node.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build() domain.Node {
	node := n.node
	node.Options = append([]string(nil), n.node.Options...)
	if len(node.Options) == 0 {
		node.Options = nil
	}
	return node
}
