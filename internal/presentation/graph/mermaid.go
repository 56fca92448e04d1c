package graph

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/rules"
)

// GraphOverlay contains session data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFor marks the nodes answered in state and its current step.
func OverlayFor(state *domain.ChatState) *GraphOverlay {
	if state == nil {
		return nil
	}
	o := &GraphOverlay{CurrentNode: state.CurrentStep}
	for _, m := range state.Messages {
		o.VisitedNodes = append(o.VisitedNodes, m.NodeID)
	}
	return o
}

var quoted = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)

// GenerateMermaid produces a Mermaid flowchart for g.
// It applies semantic styling:
// - Start: ((Circle))
// - End: ([Stadium])
// - Button: {{Hexagon}}
// - Input: [/Parallelogram/]
// Computed transitions are dotted. Expression rules point at every node id
// they mention; named rules point at a rule diamond.
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(g *domain.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	ruleNodes := make(map[string]bool)
	for _, id := range g.IDs() {
		node := g.Nodes[id]
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case node.ID == g.StartNode():
			opener, closer = "((", "))"
		case node.IsEnd:
			opener, closer = "([", "])"
		case node.Kind == domain.KindButton:
			opener, closer = "{{", "}}"
		case node.Kind == domain.KindInput:
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, node.ID, closer)

		switch node.Next.Kind {
		case domain.NextStatic:
			fmt.Fprintf(&sb, "    %s --> %s\n", safeID, sanitizeMermaidID(node.Next.Target))
		case domain.NextComputed:
			if expr, ok := strings.CutPrefix(node.Next.Rule, rules.ExprPrefix); ok {
				for _, target := range mentionedNodes(g, expr) {
					fmt.Fprintf(&sb, "    %s -. \"expr\" .-> %s\n", safeID, sanitizeMermaidID(target))
				}
				continue
			}
			ruleID := "rule_" + sanitizeMermaidID(node.Next.Rule)
			if !ruleNodes[ruleID] {
				ruleNodes[ruleID] = true
				fmt.Fprintf(&sb, "    %s{\"%s\"}\n", ruleID, escape(node.Next.Rule))
			}
			fmt.Fprintf(&sb, "    %s -.-> %s\n", safeID, ruleID)
		}
	}

	// Apply Overlay Styles
	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

// Targets lists the nodes n may lead to. Opaque is true when n routes through
// a named rule whose targets cannot be read from the graph.
func Targets(g *domain.Graph, n domain.Node) (targets []string, opaque bool) {
	switch n.Next.Kind {
	case domain.NextStatic:
		return []string{n.Next.Target}, false
	case domain.NextComputed:
		if expr, ok := strings.CutPrefix(n.Next.Rule, rules.ExprPrefix); ok {
			return mentionedNodes(g, expr), false
		}
		return nil, true
	}
	return nil, false
}

// mentionedNodes returns the node ids appearing as string literals in expr,
// in order of first appearance.
func mentionedNodes(g *domain.Graph, expr string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, lit := range quoted.FindAllString(expr, -1) {
		s, err := strconv.Unquote(lit)
		if err != nil || seen[s] {
			continue
		}
		if _, ok := g.Nodes[s]; ok {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
